package summarize

import "errors"

var (
	// ErrCallFailed marks a transport, status or empty-content failure. Retried.
	ErrCallFailed = errors.New("summary provider call failed")
	// ErrRequestRejected marks a non-retryable HTTP status (400, 401, 403,
	// 404, 422...). Not retried.
	ErrRequestRejected = errors.New("summary provider rejected the request")
	// ErrParseFailed marks a reply that is not a usable JSON object. Not retried.
	ErrParseFailed = errors.New("summary provider returned unparseable content")
	// ErrProviderNotConfigured is returned by NewProvider when credentials are missing.
	ErrProviderNotConfigured = errors.New("summary provider not configured")
	// ErrUnknownMethod is returned by ParseMethod for unsupported selectors.
	ErrUnknownMethod = errors.New("unknown summary method")
)
