package ingestion

import (
	"strconv"
	"strings"
	"time"
)

// Candidate field names per canonical field, evaluated in priority order.
// First present-and-parseable value wins.
var (
	spotsFields        = []string{"spots_aired", "spots", "sold", "count"}
	airtimeFields      = []string{"airtime", "time", "datetime", "date_time"}
	durationFields     = []string{"duration", "duration_seconds", "length"}
	campaignIDFields   = []string{"campaign_id", "campaign_external_id", "campaign_id_external"}
	campaignNameFields = []string{"campaign", "campaign_name", "advertiser"}
	showFields         = []string{"show", "show_name"}
	stationFields      = []string{"station", "station_name"}
)

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05.000000",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"02/01/2006",
}

// NormalizedRow is the canonical record extracted from one raw row. Every
// field is best-effort: a malformed cell defaults the field and never fails
// the row.
type NormalizedRow struct {
	Spots              int
	Airtime            *time.Time
	DurationSeconds    *int
	CampaignExternalID string
	CampaignName       string
	ShowName           string
	StationName        string
}

// NormalizeRow canonicalizes a raw row record against the candidate tables.
func NormalizeRow(raw map[string]string) NormalizedRow {
	var row NormalizedRow

	for _, key := range spotsFields {
		// Negative spot counts are treated as unparseable; the entry invariant
		// is spots >= 0.
		if n, ok := tryParseInt(raw[key]); ok && n >= 0 {
			row.Spots = n
			break
		}
	}

	for _, key := range airtimeFields {
		if ts, ok := tryParseTime(raw[key]); ok {
			row.Airtime = &ts
			break
		}
	}

	for _, key := range durationFields {
		if n, ok := tryParseInt(raw[key]); ok {
			row.DurationSeconds = &n
			break
		}
	}

	row.CampaignExternalID = firstPresent(raw, campaignIDFields)
	row.CampaignName = firstPresent(raw, campaignNameFields)
	row.ShowName = firstPresent(raw, showFields)
	row.StationName = firstPresent(raw, stationFields)

	return row
}

func firstPresent(raw map[string]string, keys []string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(raw[key]); value != "" {
			return value
		}
	}
	return ""
}

// tryParseInt coerces integer-like strings, truncating float representations.
func tryParseInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return int(n), true
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// tryParseTime tries each known layout; unparseable values are simply absent.
func tryParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
