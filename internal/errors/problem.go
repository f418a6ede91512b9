package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/render"
)

// Problem types
const (
	TypeValidation        = "/errors/validation"
	TypeNotFound          = "/errors/not-found"
	TypeRateLimit         = "/errors/rate-limit"
	TypeInternal          = "/errors/internal"
	TypeTimeout           = "/errors/timeout"
	TypePayloadTooLarge   = "/errors/payload-too-large"
	TypeMethodNotAllowed  = "/errors/method-not-allowed"
	TypeInvalidColumn     = "/errors/matching/invalid-column"
	TypeColumnCount       = "/errors/matching/column-count-mismatch"
	TypeEmptyPairing      = "/errors/matching/empty-pairing"
	TypeInvalidTable      = "/errors/matching/invalid-table"
	TypeUnsupportedFormat = "/errors/input/unsupported-format"
	TypeInvalidInput      = "/errors/input/invalid"
)

// ContentTypeProblem is the media type of problem responses
const ContentTypeProblem = "application/problem+json"

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]any `json:"-"`
}

// NewProblemDetails creates a new RFC 7807 problem
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]any),
	}
}

// WithExtension adds an extension member to the problem
func (pd *ProblemDetails) WithExtension(key string, value any) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// Write sends the problem as an application/problem+json response
func (pd *ProblemDetails) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", ContentTypeProblem)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(pd.Status)
	return json.NewEncoder(w).Encode(pd)
}

// MarshalJSON flattens the extensions next to the standard members
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(pd.Extensions)+5)
	for k, v := range pd.Extensions {
		data[k] = v
	}
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	return json.Marshal(data)
}

// ErrorCode returns the error_code extension, if any
func (pd *ProblemDetails) ErrorCode() string {
	code, _ := pd.Extensions["error_code"].(string)
	return code
}
