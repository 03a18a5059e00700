package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/spotwave/mediaops/internal/auth"
	"github.com/spotwave/mediaops/internal/repository"
)

const maxUploadMemory = 32 << 20

// Handler exposes the monitoring import pipeline over HTTP.
type Handler struct {
	service *Service
	imports repository.ImportRepository
}

func NewHandler(service *Service, imports repository.ImportRepository) *Handler {
	return &Handler{service: service, imports: imports}
}

// Register mounts the monitoring import routes on the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/monitoring/imports/upload", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/monitoring/imports", h.list).Methods(http.MethodGet)
	r.HandleFunc("/monitoring/imports/{id}", h.get).Methods(http.MethodGet)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "tenant scope is required")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	req := IntakeRequest{
		TenantID: tenantID,
		FileName: header.Filename,
		Size:     header.Size,
		Data:     file,
	}
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		req.UserID = &userID
	}

	result, err := h.service.Intake(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, unsupportedFormatSummary)
		case errors.Is(err, ErrParserUnavailable):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"detail": "parsing failed",
				"error":  err.Error(),
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"detail": "parsing failed",
				"error":  err.Error(),
			})
		}
		return
	}

	if result.Deferred {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"import_id": result.ImportID,
			"status":    "processing",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"import_id": result.ImportID,
		"parsed":    result.Parsed,
		"matched":   result.Matched,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "tenant scope is required")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid import id")
		return
	}

	imp, err := h.imports.GetForTenant(r.Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "import not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, imp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := auth.TenantIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "tenant scope is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	imports, err := h.imports.ListForTenant(r.Context(), tenantID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, imports)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
