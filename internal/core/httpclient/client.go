package httpclient

import (
	"context"
	"net/http"
	"time"

	"electrohub/internal/core/logger"

	"go.uber.org/zap"
)

// RayIDHeader carries the request id of the inbound call that triggered an outbound one.
const RayIDHeader = "X-Ray-ID"

type rayIDKey struct{}

// WithRayID attaches an inbound request id to ctx so outbound requests can forward it.
func WithRayID(ctx context.Context, rayID string) context.Context {
	if rayID == "" {
		return ctx
	}
	return context.WithValue(ctx, rayIDKey{}, rayID)
}

// RayID returns the request id stored by WithRayID.
func RayID(ctx context.Context) string {
	id, _ := ctx.Value(rayIDKey{}).(string)
	return id
}

// LoggingRoundTripper logs outbound requests and forwards the ray id header.
type LoggingRoundTripper struct {
	// Proxied executes the request.
	Proxied http.RoundTripper
}

func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	log := logger.Named("httpclient")
	start := time.Now()

	rayID := RayID(req.Context())
	if rayID != "" && req.Header.Get(RayIDHeader) == "" {
		// RoundTrippers must not modify the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set(RayIDHeader, rayID)
	}

	log.Debug("HTTP Request Started",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.String("ray_id", rayID),
	)

	resp, err := lrt.Proxied.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		log.Error("HTTP Request Failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, err
	}

	log.Debug("HTTP Request Completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

// NewClient returns an http.Client with the logging transport.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied: http.DefaultTransport,
		},
		Timeout: timeout,
	}
}
