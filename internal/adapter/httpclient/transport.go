package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// loggingTransport logs every request and its response status
type loggingTransport struct {
	next   http.RoundTripper
	logger *zap.Logger
}

func newLoggingTransport(next http.RoundTripper, logger *zap.Logger) http.RoundTripper {
	return &loggingTransport{next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		t.logger.Debug("HTTP request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.String("range", req.Header.Get("Range")),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Error(err))
		return nil, err
	}

	t.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.String("range", req.Header.Get("Range")),
		zap.Int("status", resp.StatusCode),
		zap.Int64("content_length", resp.ContentLength),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))

	return resp, nil
}
