package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	tenantIDKey contextKey = "tenantID"
	userIDKey   contextKey = "userID"
)

// ContextWithTenantID returns a new context carrying the authenticated tenant scope.
func ContextWithTenantID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, tenantIDKey, id)
}

// TenantIDFromContext retrieves the authenticated tenant scope from the context, if any.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(tenantIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ContextWithUserID returns a new context carrying the acting user identity.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the acting user identity, if any. Uploads are
// allowed without one; the import record just leaves uploaded_by empty.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// TenantMiddleware resolves the tenant scope from the X-Tenant-ID header and
// the optional user identity from X-User-ID. Requests without a valid tenant
// are rejected before reaching any handler.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			http.Error(w, "valid X-Tenant-ID header is required", http.StatusUnauthorized)
			return
		}

		ctx := ContextWithTenantID(r.Context(), tenantID)
		if rawUser := strings.TrimSpace(r.Header.Get("X-User-ID")); rawUser != "" {
			if userID, err := uuid.Parse(rawUser); err == nil {
				ctx = ContextWithUserID(ctx, userID)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
