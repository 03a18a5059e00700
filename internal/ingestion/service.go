package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/spotwave/mediaops/internal/domain"
	"github.com/spotwave/mediaops/internal/repository"
	"github.com/spotwave/mediaops/internal/storage"
)

const unsupportedFormatSummary = "unsupported file type"

// Enqueuer hands an import off to the background task runner. The payload is
// only the import identifier; the worker re-reads everything else from the
// database and file store.
type Enqueuer interface {
	Enqueue(ctx context.Context, importID uuid.UUID) error
}

// Service owns the import lifecycle and runs the ingestion pipeline. The same
// Process procedure backs both the synchronous intake path and the background
// job; the inline-versus-deferred decision is a latency optimization only.
type Service struct {
	imports         repository.ImportRepository
	entries         repository.EntryRepository
	matcher         *Matcher
	store           storage.Store
	txRunner        repository.TxRunner
	queue           Enqueuer
	inlineThreshold int64
	log             *logrus.Logger
}

// NewService wires the ingestion service. inlineThreshold is the largest
// upload in bytes that is still processed inside the request.
func NewService(
	imports repository.ImportRepository,
	entries repository.EntryRepository,
	matcher *Matcher,
	store storage.Store,
	txRunner repository.TxRunner,
	queue Enqueuer,
	inlineThreshold int64,
	log *logrus.Logger,
) *Service {
	return &Service{
		imports:         imports,
		entries:         entries,
		matcher:         matcher,
		store:           store,
		txRunner:        txRunner,
		queue:           queue,
		inlineThreshold: inlineThreshold,
		log:             log,
	}
}

// IntakeRequest describes one uploaded monitoring file.
type IntakeRequest struct {
	TenantID uuid.UUID
	UserID   *uuid.UUID
	FileName string
	Size     int64
	Data     io.Reader
}

// IntakeResult reports what the intake did with the upload. Deferred means
// the import was handed to the background worker and is still processing.
type IntakeResult struct {
	ImportID uuid.UUID
	Deferred bool
	Parsed   int
	Matched  int
}

// Intake stores the upload, creates the pending import record, and either
// runs the pipeline inline or enqueues a background job depending on size.
func (s *Service) Intake(ctx context.Context, req IntakeRequest) (IntakeResult, error) {
	if req.TenantID == uuid.Nil {
		return IntakeResult{}, errors.New("tenant id is required")
	}
	if req.FileName == "" {
		return IntakeResult{}, errors.New("file name is required")
	}
	if req.Data == nil {
		return IntakeResult{}, errors.New("data reader is required")
	}

	fileKey, err := s.store.Save(ctx, req.FileName, req.Data)
	if err != nil {
		return IntakeResult{}, fmt.Errorf("failed to store upload: %w", err)
	}

	imp, err := s.imports.Create(ctx, domain.NewImport(req.TenantID, req.UserID, fileKey, req.FileName))
	if err != nil {
		return IntakeResult{}, fmt.Errorf("failed to create import record: %w", err)
	}
	result := IntakeResult{ImportID: imp.ID}

	// Format rejection happens before the dispatch decision; the record is
	// left behind in failed state for auditability.
	if _, err := DetectFormat(req.FileName); err != nil {
		s.finishFailed(ctx, imp.ID, unsupportedFormatSummary)
		return result, err
	}

	if req.Size > s.inlineThreshold {
		if err := s.queue.Enqueue(ctx, imp.ID); err != nil {
			s.finishFailed(ctx, imp.ID, err.Error())
			return result, fmt.Errorf("failed to enqueue import job: %w", err)
		}
		if err := s.imports.SetStatus(ctx, imp.ID, domain.ImportStatusProcessing); err != nil {
			s.log.WithError(err).WithField("import_id", imp.ID).Warn("failed to mark import processing")
		}
		result.Deferred = true
		return result, nil
	}

	processed, err := s.Process(ctx, imp.ID)
	if err != nil {
		return result, err
	}
	result.Parsed = processed.Parsed
	result.Matched = processed.Matched
	return result, nil
}

// ProcessStatus is the terminal outcome of one pipeline invocation, shaped
// for the background job contract.
type ProcessStatus string

const (
	ProcessOK       ProcessStatus = "ok"
	ProcessFailed   ProcessStatus = "failed"
	ProcessNotFound ProcessStatus = "not_found"
)

// ProcessResult summarizes one pipeline invocation.
type ProcessResult struct {
	Status  ProcessStatus `json:"status"`
	Parsed  int           `json:"parsed,omitempty"`
	Matched int           `json:"matched,omitempty"`
}

// Process is the pipeline runner: row source -> normalizer -> matcher ->
// batch writer, ending in a terminal status transition. It is invoked
// identically from the inline intake path and from the background job, and
// must produce the same entries either way. A vanished import is reported as
// not_found without error so job retries stop gracefully.
func (s *Service) Process(ctx context.Context, importID uuid.UUID) (ProcessResult, error) {
	imp, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.WithField("import_id", importID).Warn("import vanished before processing")
			return ProcessResult{Status: ProcessNotFound}, nil
		}
		return ProcessResult{Status: ProcessFailed}, fmt.Errorf("failed to load import: %w", err)
	}

	if err := s.imports.SetStatus(ctx, imp.ID, domain.ImportStatusProcessing); err != nil {
		return ProcessResult{Status: ProcessFailed}, fmt.Errorf("failed to mark import processing: %w", err)
	}

	file, err := s.store.Open(ctx, imp.FileKey)
	if err != nil {
		return s.fail(ctx, imp.ID, err)
	}
	defer file.Close()

	source, err := NewRowSource(imp.OriginalFilename, file)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			s.finishFailed(ctx, imp.ID, unsupportedFormatSummary)
			return ProcessResult{Status: ProcessFailed}, err
		}
		return s.fail(ctx, imp.ID, err)
	}
	defer source.Close()

	var (
		entries []domain.Entry
		parsed  int
		matched int
	)
	now := time.Now()
	for {
		raw, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(ctx, imp.ID, err)
		}

		parsed++
		row := NormalizeRow(raw)
		match := s.matcher.Match(ctx, imp.TenantID, row)
		if match.Outcome == domain.MatchMatched {
			matched++
		}
		entries = append(entries, buildEntry(imp, raw, row, match, now))
	}

	summary := fmt.Sprintf("Parsed %d entries, matched %d", parsed, matched)
	finishedAt := time.Now()
	err = s.txRunner.WithTx(ctx, func(tx pgx.Tx) error {
		if len(entries) > 0 {
			if err := s.entries.CreateAllTx(ctx, tx, entries); err != nil {
				return err
			}
		}
		return s.imports.FinishTx(ctx, tx, imp.ID, domain.ImportStatusProcessed, summary, finishedAt)
	})
	if err != nil {
		return s.fail(ctx, imp.ID, err)
	}

	s.log.WithFields(logrus.Fields{
		"import_id": imp.ID,
		"tenant_id": imp.TenantID,
		"parsed":    parsed,
		"matched":   matched,
	}).Info("monitoring import processed")

	return ProcessResult{Status: ProcessOK, Parsed: parsed, Matched: matched}, nil
}

// fail records the terminal failed transition with the error as summary.
func (s *Service) fail(ctx context.Context, importID uuid.UUID, cause error) (ProcessResult, error) {
	s.finishFailed(ctx, importID, cause.Error())
	return ProcessResult{Status: ProcessFailed}, cause
}

func (s *Service) finishFailed(ctx context.Context, importID uuid.UUID, summary string) {
	if err := s.imports.Finish(ctx, importID, domain.ImportStatusFailed, summary, time.Now()); err != nil {
		s.log.WithError(err).WithField("import_id", importID).Error("failed to record import failure")
	}
}

// buildEntry assembles the persisted entry for one reconciled row. Matched
// entries copy station/show/daypart references from the media plan; the raw
// row is preserved verbatim for auditability.
func buildEntry(imp domain.Import, raw map[string]string, row NormalizedRow, match MatchResult, now time.Time) domain.Entry {
	entry := domain.Entry{
		ID:              uuid.New(),
		ImportID:        imp.ID,
		TenantID:        imp.TenantID,
		Airtime:         row.Airtime,
		SpotsAired:      row.Spots,
		DurationSeconds: row.DurationSeconds,
		RawRow:          raw,
		MatchOutcome:    match.Outcome,
		CreatedAt:       now,
	}
	if match.Campaign != nil {
		id := match.Campaign.ID
		entry.CampaignID = &id
	}
	if match.MediaPlan != nil {
		id := match.MediaPlan.ID
		entry.MediaPlanID = &id
		entry.StationID = match.MediaPlan.StationID
		entry.ShowID = match.MediaPlan.ShowID
		entry.DaypartID = match.MediaPlan.DaypartID
	}
	return entry
}
