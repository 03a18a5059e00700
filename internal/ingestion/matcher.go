package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spotwave/mediaops/internal/domain"
	"github.com/spotwave/mediaops/internal/repository"
)

// MatchResult is the definite (possibly all-nil) outcome of resolving one
// normalized row against the tenant's campaign data.
type MatchResult struct {
	Campaign  *domain.Campaign
	MediaPlan *domain.MediaPlan
	Outcome   domain.MatchOutcome
}

// Matcher resolves rows to campaigns and media plans using tiered,
// tenant-scoped lookups. Lookup failures degrade to the next-weaker outcome;
// Match never returns an error.
type Matcher struct {
	campaigns repository.CampaignRepository
	plans     repository.MediaPlanRepository
	log       *logrus.Logger
}

func NewMatcher(campaigns repository.CampaignRepository, plans repository.MediaPlanRepository, log *logrus.Logger) *Matcher {
	return &Matcher{campaigns: campaigns, plans: plans, log: log}
}

// Match applies the tiers in order: campaign by external id, campaign by
// case-insensitive name, then media plan by campaign + airtime date narrowed
// by show and station hints. External id always takes precedence over name.
func (m *Matcher) Match(ctx context.Context, tenantID uuid.UUID, row NormalizedRow) MatchResult {
	result := MatchResult{Outcome: domain.MatchUnmatched}

	if row.CampaignExternalID != "" {
		campaign, err := m.campaigns.FindByExternalID(ctx, tenantID, row.CampaignExternalID)
		switch {
		case err == nil:
			result.Campaign = &campaign
		case !errors.Is(err, repository.ErrNotFound):
			m.log.WithError(err).WithField("external_id", row.CampaignExternalID).
				Debug("campaign external id lookup failed")
		}
	}

	if result.Campaign == nil && row.CampaignName != "" {
		campaign, err := m.campaigns.FindByName(ctx, tenantID, row.CampaignName)
		switch {
		case err == nil:
			result.Campaign = &campaign
		case !errors.Is(err, repository.ErrNotFound):
			m.log.WithError(err).WithField("campaign_name", row.CampaignName).
				Debug("campaign name lookup failed")
		}
	}

	if result.Campaign != nil && row.Airtime != nil {
		plan, err := m.plans.FindFirst(ctx, repository.MediaPlanQuery{
			CampaignID:  result.Campaign.ID,
			Date:        airtimeDate(*row.Airtime),
			ShowName:    row.ShowName,
			StationName: row.StationName,
		})
		switch {
		case err == nil:
			result.MediaPlan = &plan
		case !errors.Is(err, repository.ErrNotFound):
			m.log.WithError(err).WithField("campaign_id", result.Campaign.ID).
				Debug("media plan lookup failed")
		}
	}

	switch {
	case result.MediaPlan != nil:
		result.Outcome = domain.MatchMatched
	case result.Campaign != nil:
		result.Outcome = domain.MatchAmbiguous
	}

	return result
}

// airtimeDate strips the airtime to its calendar date component.
func airtimeDate(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
