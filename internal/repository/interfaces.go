package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spotwave/mediaops/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist within the
// queried scope.
var ErrNotFound = errors.New("record not found")

// TxRunner executes a function inside a single database transaction.
// db.Connection satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// ImportRepository persists monitoring import records.
type ImportRepository interface {
	Create(ctx context.Context, imp domain.Import) (domain.Import, error)
	// GetByID looks up an import without tenant scoping; used by the
	// background job, whose payload is the bare import id.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Import, error)
	// GetForTenant scopes the lookup to one tenant.
	GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (domain.Import, error)
	ListForTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Import, error)
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ImportStatus) error
	// Finish records a terminal transition outside any transaction.
	Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error
	// FinishTx records a terminal transition inside the caller's transaction,
	// so the status flip commits atomically with the entry batch.
	FinishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error
}

// EntryRepository persists reconciled entries extracted from an import.
type EntryRepository interface {
	// CreateAllTx inserts every entry inside the caller's transaction,
	// chunked internally for throughput. Chunking is not observable: either
	// the whole import's entries commit or none do.
	CreateAllTx(ctx context.Context, tx pgx.Tx, entries []domain.Entry) error
	CountByImport(ctx context.Context, importID uuid.UUID) (int64, error)
}

// CampaignRepository provides the tenant-scoped lookups the matcher needs.
// The pipeline never writes campaigns.
type CampaignRepository interface {
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Campaign, error)
	// FindByName matches the campaign name case-insensitively but exactly.
	FindByName(ctx context.Context, tenantID uuid.UUID, name string) (domain.Campaign, error)
}

// MediaPlanQuery narrows media plans for one campaign and calendar date,
// optionally by show and station name.
type MediaPlanQuery struct {
	CampaignID  uuid.UUID
	Date        time.Time
	ShowName    string
	StationName string
}

// MediaPlanRepository provides the media-plan narrowing lookup for the matcher.
type MediaPlanRepository interface {
	// FindFirst returns the first media plan satisfying the query, or
	// ErrNotFound when none remain after narrowing.
	FindFirst(ctx context.Context, q MediaPlanQuery) (domain.MediaPlan, error)
}

// LicenseRepository backs the perimeter license gate.
type LicenseRepository interface {
	GetByTenant(ctx context.Context, tenantID uuid.UUID) (domain.License, error)
}
