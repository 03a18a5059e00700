package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spotwave/mediaops/internal/domain"
)

type entryRepository struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewEntryRepository wires a repository backed by pgxpool. batchSize bounds
// each insert chunk; values <= 0 fall back to 500.
func NewEntryRepository(pool *pgxpool.Pool, batchSize int) EntryRepository {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &entryRepository{pool: pool, batchSize: batchSize}
}

const insertEntrySQL = `INSERT INTO monitoring_entries
	(id, import_id, tenant_id, campaign_id, media_plan_id, station_id, show_id, daypart_id,
	 airtime, spots_aired, duration_seconds, raw_row, match_outcome, processed, processed_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

func (r *entryRepository) CreateAllTx(ctx context.Context, tx pgx.Tx, entries []domain.Entry) error {
	for start := 0; start < len(entries); start += r.batchSize {
		end := start + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		batch := &pgx.Batch{}
		for _, entry := range entries[start:end] {
			rawRow, err := json.Marshal(entry.RawRow)
			if err != nil {
				return fmt.Errorf("failed to encode raw row: %w", err)
			}
			batch.Queue(
				insertEntrySQL,
				entry.ID,
				entry.ImportID,
				entry.TenantID,
				optionalUUID(entry.CampaignID),
				optionalUUID(entry.MediaPlanID),
				optionalUUID(entry.StationID),
				optionalUUID(entry.ShowID),
				optionalUUID(entry.DaypartID),
				entry.Airtime,
				entry.SpotsAired,
				entry.DurationSeconds,
				rawRow,
				entry.MatchOutcome,
				entry.Processed,
				entry.ProcessedAt,
				entry.CreatedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		var execErr error
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil && execErr == nil {
				execErr = err
			}
		}
		if closeErr := results.Close(); closeErr != nil && execErr == nil {
			execErr = closeErr
		}
		if execErr != nil {
			return fmt.Errorf("failed to insert entry batch: %w", execErr)
		}
	}

	return nil
}

func (r *entryRepository) CountByImport(ctx context.Context, importID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(
		ctx,
		`SELECT count(*) FROM monitoring_entries WHERE import_id = $1`,
		importID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

func optionalUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return *id
}
