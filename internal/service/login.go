// Package service implements the login forwarding logic.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"admin-login-proxy/internal/client"
	"admin-login-proxy/internal/config"
	"admin-login-proxy/internal/model"
)

// ErrNotConfigured is returned when no upstream admin login URL has been configured.
var ErrNotConfigured = errors.New("upstream admin login URL is not configured")

// errTrailingData is returned by DecodeJSON when more than one JSON value is present.
var errTrailingData = errors.New("unexpected data after JSON value")

// LoginService forwards login payloads to the upstream and decodes its answer.
type LoginService struct {
	client         *client.UpstreamClient
	upstreamURL    string
	forwardHeaders []string
	logger         *slog.Logger
}

// NewLoginService creates a LoginService. The upstream URL may be empty, in
// which case every Forward call fails with ErrNotConfigured.
func NewLoginService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) *LoginService {
	headers := make([]string, 0, len(cfg.Upstream.ForwardHeaders))
	for _, h := range cfg.Upstream.ForwardHeaders {
		headers = append(headers, http.CanonicalHeaderKey(h))
	}

	return &LoginService{
		client:         c,
		upstreamURL:    cfg.Upstream.URL,
		forwardHeaders: headers,
		logger:         logger.With("component", "login_service"),
	}
}

// Configured reports whether an upstream URL is available.
func (s *LoginService) Configured() bool {
	return s.upstreamURL != ""
}

// Forward re-serializes the payload, POSTs it to the upstream and decodes the
// upstream's JSON reply. Any upstream status code is returned as-is; only
// transport and decoding failures produce an error.
func (s *LoginService) Forward(lr *model.LoginRequest) (*model.LoginResponse, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(lr.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	s.logger.Debug("forwarding login request", "bytes", len(payload))

	resp, err := s.client.PostJSON(lr.Ctx, s.upstreamURL, payload)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := DecodeJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode upstream response (status %d): %w", resp.StatusCode, err)
	}

	return &model.LoginResponse{
		StatusCode: resp.StatusCode,
		Header:     s.filterResponseHeaders(resp.Header),
		Body:       body,
	}, nil
}

// filterResponseHeaders keeps only the headers named in upstream.forward_headers.
func (s *LoginService) filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range s.forwardHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[key] = append([]string(nil), vals...)
		}
	}
	return dst
}

// DecodeJSON reads exactly one JSON value from r. Numbers are kept as
// json.Number so that re-encoding does not lose precision.
func DecodeJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return v, nil
}
