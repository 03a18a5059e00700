package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spotwave/mediaops/internal/domain"
)

type importRepository struct {
	pool *pgxpool.Pool
}

// NewImportRepository wires a repository backed by pgxpool.
func NewImportRepository(pool *pgxpool.Pool) ImportRepository {
	return &importRepository{pool: pool}
}

const importColumns = `id, tenant_id, uploaded_by, file_key, original_filename, status, processed_at, summary, meta, created_at, updated_at`

func (r *importRepository) Create(ctx context.Context, imp domain.Import) (domain.Import, error) {
	meta, err := json.Marshal(imp.Meta)
	if err != nil {
		return domain.Import{}, fmt.Errorf("failed to encode import meta: %w", err)
	}

	var uploadedBy any
	if imp.UploadedBy != nil {
		uploadedBy = *imp.UploadedBy
	}

	_, err = r.pool.Exec(
		ctx,
		`INSERT INTO monitoring_imports (id, tenant_id, uploaded_by, file_key, original_filename, status, summary, meta, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		imp.ID,
		imp.TenantID,
		uploadedBy,
		imp.FileKey,
		imp.OriginalFilename,
		imp.Status,
		imp.Summary,
		meta,
		imp.CreatedAt,
		imp.UpdatedAt,
	)
	if err != nil {
		return domain.Import{}, fmt.Errorf("failed to create import: %w", err)
	}

	return imp, nil
}

func (r *importRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Import, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+importColumns+` FROM monitoring_imports WHERE id = $1`,
		id,
	)
	return scanImport(row)
}

func (r *importRepository) GetForTenant(ctx context.Context, tenantID, id uuid.UUID) (domain.Import, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+importColumns+` FROM monitoring_imports WHERE tenant_id = $1 AND id = $2`,
		tenantID,
		id,
	)
	return scanImport(row)
}

func (r *importRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]domain.Import, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+importColumns+`
		 FROM monitoring_imports
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		tenantID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	imports := []domain.Import{}
	for rows.Next() {
		imp, scanErr := scanImport(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		imports = append(imports, imp)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate imports: %w", rowsErr)
	}

	return imports, nil
}

func (r *importRepository) SetStatus(ctx context.Context, id uuid.UUID, status domain.ImportStatus) error {
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE monitoring_imports SET status = $2, updated_at = now() WHERE id = $1`,
		id,
		status,
	)
	if err != nil {
		return fmt.Errorf("failed to update import status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *importRepository) Finish(ctx context.Context, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, finishImportSQL, id, status, summary, processedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *importRepository) FinishTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.ImportStatus, summary string, processedAt time.Time) error {
	tag, err := tx.Exec(ctx, finishImportSQL, id, status, summary, processedAt)
	if err != nil {
		return fmt.Errorf("failed to finalize import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const finishImportSQL = `UPDATE monitoring_imports
	 SET status = $2, summary = $3, processed_at = $4, updated_at = now()
	 WHERE id = $1`

func scanImport(row pgx.Row) (domain.Import, error) {
	var (
		imp         domain.Import
		uploadedBy  pgtype.UUID
		processedAt pgtype.Timestamptz
		meta        []byte
	)
	err := row.Scan(
		&imp.ID,
		&imp.TenantID,
		&uploadedBy,
		&imp.FileKey,
		&imp.OriginalFilename,
		&imp.Status,
		&processedAt,
		&imp.Summary,
		&meta,
		&imp.CreatedAt,
		&imp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Import{}, ErrNotFound
		}
		return domain.Import{}, fmt.Errorf("failed to scan import: %w", err)
	}

	if uploadedBy.Valid {
		id := uuid.UUID(uploadedBy.Bytes)
		imp.UploadedBy = &id
	}
	if processedAt.Valid {
		t := processedAt.Time
		imp.ProcessedAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &imp.Meta); err != nil {
			return domain.Import{}, fmt.Errorf("failed to decode import meta: %w", err)
		}
	}

	return imp, nil
}
