package domain

import "fmt"

// Response messages reported back to the caller of a run
const (
	MsgNoProfile      = "No profile data found. Please set up your profile first."
	MsgNoFields       = "No fillable fields detected on this page."
	MsgDetectionError = "Error detecting form fields: "
	MsgRunError       = "Error during autofill: "
	MsgUnreachable    = "Could not reach the page: "
)

// Census counts the raw controls present on a page, for troubleshooting
type Census struct {
	Inputs    int `json:"inputs"`
	Selects   int `json:"selects"`
	Textareas int `json:"textareas"`
	Roots     int `json:"roots"`
}

// Total returns the total number of raw controls
func (c Census) Total() int {
	return c.Inputs + c.Selects + c.Textareas
}

// AutofillResponse is answered exactly once for every autofill request
type AutofillResponse struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	FilledCount   int     `json:"filledCount"`
	DetectedCount *int    `json:"detectedCount,omitempty"`
	Diagnostics   *Census `json:"diagnostics,omitempty"`
}

// Failure builds an unsuccessful response
func Failure(message string) AutofillResponse {
	return AutofillResponse{Success: false, Message: message}
}

// Filled builds the success response for a completed run
func Filled(filled, detected int) AutofillResponse {
	return AutofillResponse{
		Success:       true,
		Message:       fmt.Sprintf("Successfully filled %s!", Plural(filled, "field")),
		FilledCount:   filled,
		DetectedCount: &detected,
	}
}

// Plural formats "1 field" / "3 fields"
func Plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
