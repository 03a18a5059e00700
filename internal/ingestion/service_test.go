package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spotwave/mediaops/internal/domain"
	"github.com/spotwave/mediaops/internal/repository"
)

type stubImportRepo struct {
	imports map[uuid.UUID]domain.Import
}

func newStubImportRepo() *stubImportRepo {
	return &stubImportRepo{imports: map[uuid.UUID]domain.Import{}}
}

func (s *stubImportRepo) Create(ctx context.Context, imp domain.Import) (domain.Import, error) {
	s.imports[imp.ID] = imp
	return imp, nil
}

func (s *stubImportRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Import, error) {
	imp, ok := s.imports[id]
	if !ok {
		return domain.Import{}, repository.ErrNotFound
	}
	return imp, nil
}

func (s *stubImportRepo) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (domain.Import, error) {
	imp, ok := s.imports[id]
	if !ok || imp.TenantID != tenantID {
		return domain.Import{}, repository.ErrNotFound
	}
	return imp, nil
}

func (s *stubImportRepo) ListForTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Import, error) {
	var imports []domain.Import
	for _, imp := range s.imports {
		if imp.TenantID == tenantID {
			imports = append(imports, imp)
		}
	}
	return imports, nil
}

func (s *stubImportRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.ImportStatus) error {
	imp, ok := s.imports[id]
	if !ok {
		return repository.ErrNotFound
	}
	imp.Status = status
	s.imports[id] = imp
	return nil
}

func (s *stubImportRepo) Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error {
	imp, ok := s.imports[id]
	if !ok {
		return repository.ErrNotFound
	}
	imp.Status = status
	imp.Summary = summary
	imp.ProcessedAt = &processedAt
	s.imports[id] = imp
	return nil
}

func (s *stubImportRepo) FinishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error {
	return s.Finish(ctx, id, status, summary, processedAt)
}

type stubEntryRepo struct {
	created []domain.Entry
	failErr error
}

func (s *stubEntryRepo) CreateAllTx(ctx context.Context, tx pgx.Tx, entries []domain.Entry) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.created = append(s.created, entries...)
	return nil
}

func (s *stubEntryRepo) CountByImport(ctx context.Context, importID uuid.UUID) (int64, error) {
	var count int64
	for _, entry := range s.created {
		if entry.ImportID == importID {
			count++
		}
	}
	return count, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type stubStore struct {
	files map[string][]byte
	n     int
}

func newStubStore() *stubStore {
	return &stubStore{files: map[string][]byte{}}
}

func (s *stubStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.n++
	key := fmt.Sprintf("stored-%d", s.n)
	s.files[key] = data
	return key, nil
}

func (s *stubStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("no stored file %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type stubQueue struct {
	enqueued []uuid.UUID
	failErr  error
}

func (s *stubQueue) Enqueue(ctx context.Context, importID uuid.UUID) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.enqueued = append(s.enqueued, importID)
	return nil
}

type serviceFixture struct {
	service   *Service
	imports   *stubImportRepo
	entries   *stubEntryRepo
	store     *stubStore
	queue     *stubQueue
	campaigns *stubCampaignRepo
	plans     *stubPlanRepo
	tenantID  uuid.UUID
}

func newServiceFixture(threshold int64) *serviceFixture {
	f := &serviceFixture{
		imports:   newStubImportRepo(),
		entries:   &stubEntryRepo{},
		store:     newStubStore(),
		queue:     &stubQueue{},
		campaigns: &stubCampaignRepo{},
		plans:     &stubPlanRepo{},
		tenantID:  uuid.New(),
	}
	log := testLogger()
	matcher := NewMatcher(f.campaigns, f.plans, log)
	f.service = NewService(f.imports, f.entries, matcher, f.store, stubTxRunner{}, f.queue, threshold, log)
	return f
}

func (f *serviceFixture) withCampaign(name, externalID string) domain.Campaign {
	campaign := newTestCampaign(f.tenantID, name, externalID)
	if f.campaigns.byName == nil {
		f.campaigns.byName = map[string]domain.Campaign{}
	}
	if f.campaigns.byExternal == nil {
		f.campaigns.byExternal = map[string]domain.Campaign{}
	}
	f.campaigns.byName[strings.ToLower(name)] = campaign
	if externalID != "" {
		f.campaigns.byExternal[externalID] = campaign
	}
	return campaign
}

func (f *serviceFixture) intake(t *testing.T, fileName, data string) (IntakeResult, error) {
	t.Helper()
	return f.service.Intake(context.Background(), IntakeRequest{
		TenantID: f.tenantID,
		FileName: fileName,
		Size:     int64(len(data)),
		Data:     strings.NewReader(data),
	})
}

// Scenario: two rows referencing an existing campaign with no media plan end
// ambiguous and the import is processed.
func TestIntakeInlineAmbiguousRows(t *testing.T) {
	f := newServiceFixture(100 * 1024)
	campaign := f.withCampaign("TestCampaign", "")

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,3,TestCampaign\n" +
		"2024-03-16 21:00:00,2,TestCampaign\n"

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)
	assert.False(t, result.Deferred)
	assert.Equal(t, 2, result.Parsed)
	assert.Equal(t, 0, result.Matched)

	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusProcessed, imp.Status)
	assert.Contains(t, imp.Summary, "Parsed 2")
	require.NotNil(t, imp.ProcessedAt)

	require.Len(t, f.entries.created, 2)
	for _, entry := range f.entries.created {
		assert.Equal(t, domain.MatchAmbiguous, entry.MatchOutcome)
		require.NotNil(t, entry.CampaignID)
		assert.Equal(t, campaign.ID, *entry.CampaignID)
		assert.Nil(t, entry.MediaPlanID)
		assert.Equal(t, f.tenantID, entry.TenantID)
		assert.Equal(t, result.ImportID, entry.ImportID)
	}
	assert.Equal(t, 3, f.entries.created[0].SpotsAired)
	assert.Equal(t, 2, f.entries.created[1].SpotsAired)
}

// Scenario: a row whose campaign name matches nothing stays unmatched with a
// nil campaign, while the rest of the import proceeds.
func TestIntakeInlineUnmatchedRow(t *testing.T) {
	f := newServiceFixture(100 * 1024)
	f.withCampaign("TestCampaign", "")

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,3,TestCampaign\n" +
		"2024-03-16 21:00:00,2,NoSuchCampaign\n"

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)

	require.Len(t, f.entries.created, 2)
	assert.Equal(t, domain.MatchAmbiguous, f.entries.created[0].MatchOutcome)
	assert.Equal(t, domain.MatchUnmatched, f.entries.created[1].MatchOutcome)
	assert.Nil(t, f.entries.created[1].CampaignID)
	assert.Equal(t, domain.ImportStatusProcessed, f.imports.imports[result.ImportID].Status)
}

// Scenario: a fully matched row picks up the media plan and its schedule
// references.
func TestIntakeInlineMatchedRow(t *testing.T) {
	f := newServiceFixture(100 * 1024)
	campaign := f.withCampaign("TestCampaign", "")
	stationID := uuid.New()
	showID := uuid.New()
	f.plans.found = true
	f.plans.plan = domain.MediaPlan{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		StationID:  &stationID,
		ShowID:     &showID,
	}

	data := "airtime,spots_aired,campaign_name,show,station\n" +
		"2024-03-15 20:30:00,3,TestCampaign,Morning Drive,KEXP\n"

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)

	require.Len(t, f.entries.created, 1)
	entry := f.entries.created[0]
	assert.Equal(t, domain.MatchMatched, entry.MatchOutcome)
	require.NotNil(t, entry.MediaPlanID)
	assert.Equal(t, f.plans.plan.ID, *entry.MediaPlanID)
	require.NotNil(t, entry.StationID)
	assert.Equal(t, stationID, *entry.StationID)
	require.NotNil(t, entry.ShowID)
	assert.Equal(t, showID, *entry.ShowID)
	assert.Contains(t, f.imports.imports[result.ImportID].Summary, "matched 1")
}

// Scenario: unsupported extension fails the import immediately with the exact
// summary and creates no entries.
func TestIntakeUnsupportedExtension(t *testing.T) {
	f := newServiceFixture(100 * 1024)

	result, err := f.intake(t, "asaired.txt", "airtime,spots_aired\n2024-03-15,3\n")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusFailed, imp.Status)
	assert.Equal(t, "unsupported file type", imp.Summary)
	require.NotNil(t, imp.ProcessedAt)
	assert.Empty(t, f.entries.created)
	assert.Empty(t, f.queue.enqueued)
}

// Scenario: unparseable spot counts default to zero and the import still
// completes.
func TestIntakeInlineBadSpotsDefaultsToZero(t *testing.T) {
	f := newServiceFixture(100 * 1024)

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,abc,NoSuchCampaign\n"

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)

	require.Len(t, f.entries.created, 1)
	assert.Equal(t, 0, f.entries.created[0].SpotsAired)
	assert.Equal(t, domain.ImportStatusProcessed, f.imports.imports[result.ImportID].Status)
}

func TestIntakeRawRowPreservedVerbatim(t *testing.T) {
	f := newServiceFixture(100 * 1024)

	data := "airtime,spots_aired,mystery_column\n" +
		"2024-03-15 20:30:00,3,weird value \n"

	_, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)

	require.Len(t, f.entries.created, 1)
	raw := f.entries.created[0].RawRow
	assert.Equal(t, "weird value ", raw["mystery_column"])
	assert.Equal(t, "3", raw["spots_aired"])
}

// An upload over the threshold is deferred: enqueued, reported processing,
// and not parsed in the request.
func TestIntakeDefersLargeUploads(t *testing.T) {
	f := newServiceFixture(10)

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,3,TestCampaign\n"
	require.Greater(t, int64(len(data)), int64(10))

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)
	assert.True(t, result.Deferred)
	assert.Zero(t, result.Parsed)

	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusProcessing, imp.Status)
	assert.Nil(t, imp.ProcessedAt)
	assert.Empty(t, f.entries.created)
	require.Len(t, f.queue.enqueued, 1)
	assert.Equal(t, result.ImportID, f.queue.enqueued[0])
}

// An upload at or under the threshold always leaves intake in a terminal state.
func TestIntakeAtThresholdRunsInline(t *testing.T) {
	data := "spots\n1\n"
	f := newServiceFixture(int64(len(data)))

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)
	assert.False(t, result.Deferred)
	assert.True(t, f.imports.imports[result.ImportID].Status.Terminal())
	assert.Empty(t, f.queue.enqueued)
}

// The deferred path converges on the same pipeline: the worker invocation
// produces the entries the inline path would have.
func TestDeferredProcessingMatchesInline(t *testing.T) {
	f := newServiceFixture(10)
	f.withCampaign("TestCampaign", "")

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,3,TestCampaign\n" +
		"2024-03-16 21:00:00,2,TestCampaign\n"

	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)
	require.True(t, result.Deferred)

	processed, err := f.service.Process(context.Background(), result.ImportID)
	require.NoError(t, err)
	assert.Equal(t, ProcessOK, processed.Status)
	assert.Equal(t, 2, processed.Parsed)

	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusProcessed, imp.Status)
	assert.Contains(t, imp.Summary, "Parsed 2")
	require.Len(t, f.entries.created, 2)
	for _, entry := range f.entries.created {
		assert.Equal(t, domain.MatchAmbiguous, entry.MatchOutcome)
	}
}

func TestProcessImportNotFound(t *testing.T) {
	f := newServiceFixture(100 * 1024)

	result, err := f.service.Process(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, ProcessNotFound, result.Status)
}

// A persistence failure on a re-run leaves exactly the first run's entries
// and marks the import failed with the error as summary.
func TestProcessRerunWithFailingPersistence(t *testing.T) {
	f := newServiceFixture(10)
	f.withCampaign("TestCampaign", "")

	data := "airtime,spots_aired,campaign_name\n" +
		"2024-03-15 20:30:00,3,TestCampaign\n"
	result, err := f.intake(t, "asaired.csv", data)
	require.NoError(t, err)

	processed, err := f.service.Process(context.Background(), result.ImportID)
	require.NoError(t, err)
	require.Equal(t, ProcessOK, processed.Status)
	firstRun := len(f.entries.created)
	require.Equal(t, 1, firstRun)

	f.entries.failErr = errors.New("bulk insert failed")
	processed, err = f.service.Process(context.Background(), result.ImportID)
	require.Error(t, err)
	assert.Equal(t, ProcessFailed, processed.Status)

	assert.Len(t, f.entries.created, firstRun)
	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusFailed, imp.Status)
	assert.Contains(t, imp.Summary, "bulk insert failed")
	require.NotNil(t, imp.ProcessedAt)
}

func TestIntakeEnqueueFailureFailsImport(t *testing.T) {
	f := newServiceFixture(10)
	f.queue.failErr = errors.New("queue unavailable")

	data := "airtime,spots_aired\n2024-03-15 20:30:00,3\n"
	result, err := f.intake(t, "asaired.csv", data)
	require.Error(t, err)

	imp := f.imports.imports[result.ImportID]
	assert.Equal(t, domain.ImportStatusFailed, imp.Status)
	assert.Contains(t, imp.Summary, "queue unavailable")
}

func TestIntakeValidatesRequest(t *testing.T) {
	f := newServiceFixture(100 * 1024)

	_, err := f.service.Intake(context.Background(), IntakeRequest{
		FileName: "asaired.csv",
		Data:     strings.NewReader("spots\n1\n"),
	})
	assert.Error(t, err)

	_, err = f.service.Intake(context.Background(), IntakeRequest{
		TenantID: f.tenantID,
		FileName: "asaired.csv",
	})
	assert.Error(t, err)
}
