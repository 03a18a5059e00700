package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportStatus tracks the processing lifecycle of an uploaded monitoring
// file. Transitions only move forward: pending -> processing -> processed or
// failed. Terminal states are never left.
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusProcessed  ImportStatus = "processed"
	ImportStatusFailed     ImportStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusProcessed || s == ImportStatusFailed
}

// MatchOutcome classifies how confidently a parsed row was tied to existing
// campaign and schedule data.
type MatchOutcome string

const (
	// MatchUnmatched means neither campaign nor media plan could be resolved.
	MatchUnmatched MatchOutcome = "unmatched"
	// MatchMatched means a concrete media plan was resolved for the row.
	MatchMatched MatchOutcome = "matched"
	// MatchAmbiguous means the campaign resolved but no single media plan did.
	MatchAmbiguous MatchOutcome = "ambiguous"
)

// Import represents one uploaded monitoring file and its processing record.
type Import struct {
	ID               uuid.UUID      `json:"id"`
	TenantID         uuid.UUID      `json:"tenant_id"`
	UploadedBy       *uuid.UUID     `json:"uploaded_by,omitempty"`
	FileKey          string         `json:"file_key"`
	OriginalFilename string         `json:"original_filename"`
	Status           ImportStatus   `json:"status"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	Summary          string         `json:"summary,omitempty"`
	Meta             map[string]any `json:"meta,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewImport creates a pending import record for a stored upload.
func NewImport(tenantID uuid.UUID, uploadedBy *uuid.UUID, fileKey, originalFilename string) Import {
	now := time.Now()
	return Import{
		ID:               uuid.New(),
		TenantID:         tenantID,
		UploadedBy:       uploadedBy,
		FileKey:          fileKey,
		OriginalFilename: originalFilename,
		Status:           ImportStatusPending,
		Meta:             map[string]any{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Entry is a single reconciled row extracted from an import. Entries are
// created in bulk by the batch writer and are immutable afterwards as far as
// the pipeline is concerned.
type Entry struct {
	ID              uuid.UUID         `json:"id"`
	ImportID        uuid.UUID         `json:"import_id"`
	TenantID        uuid.UUID         `json:"tenant_id"`
	CampaignID      *uuid.UUID        `json:"campaign_id,omitempty"`
	MediaPlanID     *uuid.UUID        `json:"media_plan_id,omitempty"`
	StationID       *uuid.UUID        `json:"station_id,omitempty"`
	ShowID          *uuid.UUID        `json:"show_id,omitempty"`
	DaypartID       *uuid.UUID        `json:"daypart_id,omitempty"`
	Airtime         *time.Time        `json:"airtime,omitempty"`
	SpotsAired      int               `json:"spots_aired"`
	DurationSeconds *int              `json:"duration_seconds,omitempty"`
	RawRow          map[string]string `json:"raw_row"`
	MatchOutcome    MatchOutcome      `json:"match_outcome"`
	Processed       bool              `json:"processed"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
