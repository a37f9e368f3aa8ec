package tts

import "fmt"

// ValidationError reports a bad or unsupported model, voice or parameter.
// Surfaced as HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError reports a vendor-side failure: HTTP error, non-2xx status
// or a malformed/empty payload. Surfaced as HTTP 502, passing the vendor
// message through when one is available.
type UpstreamError struct {
	Provider string
	Message  string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
