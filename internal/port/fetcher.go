package port

import (
	"context"
	"net/http"
)

// RangeFetcher issues the HTTP requests of a transfer
type RangeFetcher interface {
	// GetFrom issues a GET with "Range: bytes=<offset>-". The caller closes
	// the response body. Non-2xx responses are returned without error.
	GetFrom(ctx context.Context, url string, offset int64) (*http.Response, error)

	// Size returns the remote Content-Length, or -1 when it is unknown
	Size(ctx context.Context, url string) int64
}
