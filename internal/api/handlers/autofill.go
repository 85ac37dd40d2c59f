package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// maxMarkupBytes bounds the HTML accepted by the offline endpoint
const maxMarkupBytes = 8 << 20

// HTMLFiller runs autofill over a markup string
type HTMLFiller interface {
	AutofillHTML(ctx context.Context, markup, pageURL string, resolver dom.FrameResolver) (domain.AutofillResponse, string, error)
}

// PageTrigger runs autofill against a live page
type PageTrigger interface {
	Trigger(ctx context.Context, rawURL string) domain.AutofillResponse
}

// AutofillHandler handles autofill requests
type AutofillHandler struct {
	filler  HTMLFiller
	trigger PageTrigger
	logger  *zap.Logger
}

// NewAutofillHandler creates a new autofill handler. trigger may be nil when
// no browser driver is configured.
func NewAutofillHandler(filler HTMLFiller, trigger PageTrigger, logger *zap.Logger) *AutofillHandler {
	return &AutofillHandler{
		filler:  filler,
		trigger: trigger,
		logger:  logger,
	}
}

// AutofillRequest is the request body for a live autofill
type AutofillRequest struct {
	URL string `json:"url"`
}

// AutofillHTMLRequest is the request body for an offline autofill
type AutofillHTMLRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// AutofillHTMLResponse carries the run response and the filled document
type AutofillHTMLResponse struct {
	Response domain.AutofillResponse `json:"response"`
	HTML     string                  `json:"html"`
}

// Autofill handles POST /api/v1/autofill
func (h *AutofillHandler) Autofill(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		httputil.ErrorFromDomain(w, domain.ErrBrowserUnavailable(errors.New("no browser driver configured")))
		return
	}

	var req AutofillRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if err := validatePageURL(req.URL, true); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	resp := h.trigger.Trigger(r.Context(), req.URL)
	h.logger.Info("Autofill triggered",
		zap.String("url", req.URL),
		zap.Bool("success", resp.Success),
		zap.Int("filled", resp.FilledCount),
	)

	httputil.JSON(w, http.StatusOK, resp)
}

// AutofillHTML handles POST /api/v1/autofill/html
func (h *AutofillHandler) AutofillHTML(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMarkupBytes)

	var req AutofillHTMLRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("html", "html is required"))
		return
	}
	if err := validatePageURL(req.URL, false); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	resp, filled, err := h.filler.AutofillHTML(r.Context(), req.HTML, req.URL, nil)
	if err != nil {
		h.logger.Warn("Offline autofill rejected", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, AutofillHTMLResponse{Response: resp, HTML: filled})
}

// validatePageURL accepts absolute http(s) URLs. An empty URL is allowed
// only when not required.
func validatePageURL(raw string, required bool) error {
	if raw == "" {
		if required {
			return domain.ErrValidationField("url", "url is required")
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return domain.ErrValidationField("url", "url must be an absolute http(s) URL")
	}
	return nil
}
