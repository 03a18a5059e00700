package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spotwave/mediaops/internal/domain"
)

type campaignRepository struct {
	pool *pgxpool.Pool
}

// NewCampaignRepository wires a read-only campaign repository backed by pgxpool.
func NewCampaignRepository(pool *pgxpool.Pool) CampaignRepository {
	return &campaignRepository{pool: pool}
}

const campaignColumns = `id, tenant_id, name, coalesce(external_id, ''), coalesce(advertiser_name, ''), status, created_at, updated_at`

func (r *campaignRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (domain.Campaign, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+campaignColumns+`
		 FROM campaigns
		 WHERE tenant_id = $1 AND external_id = $2
		 ORDER BY created_at
		 LIMIT 1`,
		tenantID,
		externalID,
	)
	return scanCampaign(row)
}

func (r *campaignRepository) FindByName(ctx context.Context, tenantID uuid.UUID, name string) (domain.Campaign, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+campaignColumns+`
		 FROM campaigns
		 WHERE tenant_id = $1 AND lower(name) = lower($2)
		 ORDER BY created_at
		 LIMIT 1`,
		tenantID,
		strings.TrimSpace(name),
	)
	return scanCampaign(row)
}

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var campaign domain.Campaign
	err := row.Scan(
		&campaign.ID,
		&campaign.TenantID,
		&campaign.Name,
		&campaign.ExternalID,
		&campaign.AdvertiserName,
		&campaign.Status,
		&campaign.CreatedAt,
		&campaign.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, ErrNotFound
		}
		return domain.Campaign{}, fmt.Errorf("failed to scan campaign: %w", err)
	}
	return campaign, nil
}

type mediaPlanRepository struct {
	pool *pgxpool.Pool
}

// NewMediaPlanRepository wires a read-only media plan repository backed by pgxpool.
func NewMediaPlanRepository(pool *pgxpool.Pool) MediaPlanRepository {
	return &mediaPlanRepository{pool: pool}
}

func (r *mediaPlanRepository) FindFirst(ctx context.Context, q MediaPlanQuery) (domain.MediaPlan, error) {
	query := `SELECT mp.id, mp.campaign_id, mp.name, mp.station_id, mp.show_id, mp.daypart_id,
		mp.date, mp.spots, mp.status, mp.created_at, mp.updated_at
		FROM media_plans mp
		LEFT JOIN shows s ON s.id = mp.show_id
		LEFT JOIN stations st ON st.id = mp.station_id
		WHERE mp.campaign_id = $1 AND mp.date = $2`
	args := []any{q.CampaignID, q.Date}

	if name := strings.TrimSpace(q.ShowName); name != "" {
		args = append(args, name)
		query += fmt.Sprintf(" AND lower(s.name) = lower($%d)", len(args))
	}
	if name := strings.TrimSpace(q.StationName); name != "" {
		args = append(args, name)
		query += fmt.Sprintf(" AND lower(st.name) = lower($%d)", len(args))
	}
	query += " ORDER BY mp.created_at LIMIT 1"

	var (
		plan      domain.MediaPlan
		stationID pgtype.UUID
		showID    pgtype.UUID
		daypartID pgtype.UUID
		date      pgtype.Date
		spots     pgtype.Int4
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&plan.ID,
		&plan.CampaignID,
		&plan.Name,
		&stationID,
		&showID,
		&daypartID,
		&date,
		&spots,
		&plan.Status,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MediaPlan{}, ErrNotFound
		}
		return domain.MediaPlan{}, fmt.Errorf("failed to scan media plan: %w", err)
	}

	if stationID.Valid {
		id := uuid.UUID(stationID.Bytes)
		plan.StationID = &id
	}
	if showID.Valid {
		id := uuid.UUID(showID.Bytes)
		plan.ShowID = &id
	}
	if daypartID.Valid {
		id := uuid.UUID(daypartID.Bytes)
		plan.DaypartID = &id
	}
	if date.Valid {
		t := date.Time
		plan.Date = &t
	}
	if spots.Valid {
		v := int(spots.Int32)
		plan.Spots = &v
	}

	return plan, nil
}

type licenseRepository struct {
	pool *pgxpool.Pool
}

// NewLicenseRepository wires a license repository backed by pgxpool.
func NewLicenseRepository(pool *pgxpool.Pool) LicenseRepository {
	return &licenseRepository{pool: pool}
}

func (r *licenseRepository) GetByTenant(ctx context.Context, tenantID uuid.UUID) (domain.License, error) {
	var (
		license     domain.License
		activatedAt pgtype.Timestamptz
		expiresAt   pgtype.Timestamptz
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, tenant_id, license_key, activated_at, expires_at
		 FROM licenses
		 WHERE tenant_id = $1`,
		tenantID,
	).Scan(&license.ID, &license.TenantID, &license.LicenseKey, &activatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.License{}, ErrNotFound
		}
		return domain.License{}, fmt.Errorf("failed to scan license: %w", err)
	}

	if activatedAt.Valid {
		t := activatedAt.Time
		license.ActivatedAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		license.ExpiresAt = &t
	}

	return license, nil
}
