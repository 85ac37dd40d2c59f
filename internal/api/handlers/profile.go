package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// maxProfileBytes bounds profile documents accepted over HTTP
const maxProfileBytes = 1 << 20

// ProfileStore is the profile persistence the handlers need
type ProfileStore interface {
	Get(ctx context.Context) domain.Profile
	Save(ctx context.Context, p domain.Profile) error
	Clear(ctx context.Context) error
	UpdateField(ctx context.Context, field string, value any) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) error
}

// ProfileHandler handles profile requests
type ProfileHandler struct {
	store  ProfileStore
	logger *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(store ProfileStore, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{store: store, logger: logger}
}

// UpdateFieldRequest is the request body for a single field update
type UpdateFieldRequest struct {
	Value any `json:"value"`
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, h.store.Get(r.Context()))
}

// Replace handles PUT /api/v1/profile
func (h *ProfileHandler) Replace(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if err := h.store.Import(r.Context(), body); err != nil {
		h.logger.Warn("Failed to save profile", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.store.Get(r.Context()))
}

// Clear handles DELETE /api/v1/profile
func (h *ProfileHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(r.Context()); err != nil {
		h.logger.Error("Failed to clear profile", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateField handles PATCH /api/v1/profile/{field}
func (h *ProfileHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	field := chi.URLParam(r, "field")

	var req UpdateFieldRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if err := h.store.UpdateField(r.Context(), field, req.Value); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, h.store.Get(r.Context()))
}

// Export handles GET /api/v1/profile/export
func (h *ProfileHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.Export(r.Context())
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="jobfill-profile.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/v1/profile/import
func (h *ProfileHandler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if err := h.store.Import(r.Context(), body); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Profile imported", zap.Int("bytes", len(body)))
	httputil.JSON(w, http.StatusOK, map[string]bool{"imported": true})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, domain.ErrValidationField("body", "request body is required")
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxProfileBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrValidationField("body", "profile document is too large")
		}
		return nil, domain.ErrValidationField("body", "could not read request body")
	}
	return body, nil
}
