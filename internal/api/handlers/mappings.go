package handlers

import (
	"context"
	"net/http"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/mapping"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// MappingSource exposes the loaded mapping table
type MappingSource interface {
	Load(ctx context.Context) *mapping.Table
	State() mapping.State
	Err() error
}

// MappingHandler handles mapping requests
type MappingHandler struct {
	source MappingSource
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(source MappingSource) *MappingHandler {
	return &MappingHandler{source: source}
}

// MappingResponse is the API representation of one loaded rule
type MappingResponse struct {
	Key string `json:"key"`
	domain.FieldMapping
	Issues []string `json:"issues,omitempty"`
}

// MappingListResponse lists the rules in declaration order
type MappingListResponse struct {
	State    string            `json:"state"`
	Error    string            `json:"error,omitempty"`
	Count    int               `json:"count"`
	Mappings []MappingResponse `json:"mappings"`
}

// List handles GET /api/v1/mappings
func (h *MappingHandler) List(w http.ResponseWriter, r *http.Request) {
	table := h.source.Load(r.Context())

	resp := MappingListResponse{
		State:    h.source.State().String(),
		Count:    table.Len(),
		Mappings: make([]MappingResponse, 0, table.Len()),
	}
	if err := h.source.Err(); err != nil {
		resp.Error = err.Error()
	}
	for _, rule := range table.Rules() {
		resp.Mappings = append(resp.Mappings, MappingResponse{
			Key:          rule.Key,
			FieldMapping: rule.Mapping,
			Issues:       rule.Issues(),
		})
	}

	httputil.JSON(w, http.StatusOK, resp)
}
