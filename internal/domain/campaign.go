package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus enumerates the campaign lifecycle states.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign is a tenant-scoped advertising campaign. The ingestion pipeline
// only reads campaigns; it never creates or mutates them.
type Campaign struct {
	ID             uuid.UUID      `json:"id"`
	TenantID       uuid.UUID      `json:"tenant_id"`
	Name           string         `json:"name"`
	ExternalID     string         `json:"external_id,omitempty"`
	AdvertiserName string         `json:"advertiser_name,omitempty"`
	StartDate      *time.Time     `json:"start_date,omitempty"`
	EndDate        *time.Time     `json:"end_date,omitempty"`
	Status         CampaignStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// MediaPlan is one scheduled placement (a booked slot of spots) belonging to
// a campaign, optionally pinned to a station, show and daypart.
type MediaPlan struct {
	ID        uuid.UUID  `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Name      string     `json:"name"`
	StationID *uuid.UUID `json:"station_id,omitempty"`
	ShowID    *uuid.UUID `json:"show_id,omitempty"`
	DaypartID *uuid.UUID `json:"daypart_id,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	Spots     *int       `json:"spots,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Station is a broadcast outlet within a tenant.
type Station struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
}

// Show is a named program aired on a station.
type Show struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	StationID *uuid.UUID `json:"station_id,omitempty"`
	Name      string     `json:"name"`
}

// Daypart is a named broadcast time band (e.g. prime time).
type Daypart struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Name     string    `json:"name"`
}

// License gates tenant access at the perimeter. The pipeline itself assumes
// it only runs for licensed tenants.
type License struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	LicenseKey  string     `json:"license_key"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Active reports whether the license has been activated and is not expired.
func (l License) Active(now time.Time) bool {
	if l.ActivatedAt == nil {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}
