package license

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spotwave/mediaops/internal/auth"
	"github.com/spotwave/mediaops/internal/repository"
)

// Gate is the perimeter license check. It rejects tenants without an active
// license before a request ever reaches the ingestion pipeline; the pipeline
// itself assumes it only runs for licensed tenants.
type Gate struct {
	licenses repository.LicenseRepository
	log      *logrus.Logger
}

func NewGate(licenses repository.LicenseRepository, log *logrus.Logger) *Gate {
	return &Gate{licenses: licenses, log: log}
}

// Middleware enforces the gate for every request passing through it. It runs
// after tenant authentication.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := auth.TenantIDFromContext(r.Context())
		if !ok {
			reject(w, http.StatusUnauthorized, "tenant scope is required")
			return
		}

		lic, err := g.licenses.GetByTenant(r.Context(), tenantID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				reject(w, http.StatusForbidden, "no license for tenant")
				return
			}
			g.log.WithError(err).WithField("tenant_id", tenantID).Error("license lookup failed")
			reject(w, http.StatusInternalServerError, "license check failed")
			return
		}

		if !lic.Active(time.Now()) {
			reject(w, http.StatusForbidden, "license inactive or expired")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func reject(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
