package api

import "time"

// Response is the envelope every sync endpoint returns. Ready mirrors the
// engine's readiness flag so callers see sync state on any endpoint, not
// just /readyz.
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

func successResponse(message string) Response {
	return Response{
		Success:   true,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func errorResponse(message, detail string) Response {
	return Response{
		Success:   false,
		Message:   message,
		Error:     detail,
		Timestamp: time.Now(),
	}
}
