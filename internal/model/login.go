// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// LoginRequest is a decoded inbound login payload ready to be forwarded.
type LoginRequest struct {
	Ctx context.Context
	// Payload is the parsed JSON body. It is re-serialized before forwarding,
	// so formatting and key order of the original bytes are not preserved.
	Payload any
}

// LoginResponse is the decoded upstream answer relayed to the caller.
type LoginResponse struct {
	StatusCode int
	// Header holds only the upstream headers allowed by upstream.forward_headers.
	Header http.Header
	Body   any
}

// UpstreamResponse is the raw response returned by the upstream client.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
