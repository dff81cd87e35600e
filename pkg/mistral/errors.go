package mistral

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrInvalidModel is returned when a request names a model the
	// operation does not accept.
	ErrInvalidModel = errors.New("invalid model for operation")

	// ErrInvalidMode is returned when the stream flag does not match the
	// method being called.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrNoResponseBody is returned when a streaming call gets a response
	// without a readable body.
	ErrNoResponseBody = errors.New("no response body")
)

// maxErrorBody caps how much of a failed response is kept on an APIError
const maxErrorBody = 4096

// APIError is returned when the API answers with a non-2xx status
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API returned status %d", e.StatusCode)
}

// IsAPIError reports whether err is an *APIError with the given status
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// errorBody covers the two error shapes the API is known to return:
// {"message": "..."} and {"error": {"message": "..."}}.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// newAPIError drains a bounded prefix of the body and builds an APIError
func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.Body == nil {
		return apiErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	apiErr.Body = body
	apiErr.Message = extractErrorMessage(body)
	return apiErr
}

func extractErrorMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return string(body)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(parsed.Message) > 0 {
		var s string
		if err := json.Unmarshal(parsed.Message, &s); err == nil {
			return s
		}
		// validation errors come back as a structured message
		return string(parsed.Message)
	}
	return string(body)
}
