package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"admin-login-proxy/internal/config"
	"admin-login-proxy/internal/metrics"
	"admin-login-proxy/internal/model"
	"admin-login-proxy/internal/service"
)

// Error messages returned to callers. Their wording is part of the public contract.
const (
	msgNotConfigured    = "Server configuration error: Admin login URL missing."
	msgMethodNotAllowed = "Method Not Allowed. Only POST requests are accepted."
	msgBadContentType   = "Bad Request: Content-Type must be application/json."
	msgInternalError    = "Internal Server Error during proxy request."
)

var errInvalidRequestBody = errors.New("invalid request body")

// LoginHandler validates inbound login requests and relays them to the upstream.
type LoginHandler struct {
	service      *service.LoginService
	metrics      *metrics.Metrics
	bodyMaxBytes int64
	logger       *slog.Logger
}

// NewLoginHandler creates a LoginHandler. The metrics parameter is optional.
func NewLoginHandler(svc *service.LoginService, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{
		service:      svc,
		metrics:      m,
		bodyMaxBytes: cfg.Server.BodyMaxBytes,
		logger:       logger.With("component", "login_handler"),
	}
}

// Handle runs the login pipeline: configuration, method, content type, body
// parse, forward, relay. The first failing step decides the response, and
// every path writes a JSON response.
func (h *LoginHandler) Handle(c echo.Context) error {
	req := c.Request()

	if !h.service.Configured() {
		h.logger.Error("admin login URL is not configured")
		h.metrics.Outcome(metrics.OutcomeConfigError)
		return errorJSON(c, http.StatusInternalServerError, msgNotConfigured)
	}

	if req.Method != http.MethodPost {
		h.logger.Warn("rejected login request", "reason", "method not allowed", "method", req.Method)
		h.metrics.Outcome(metrics.OutcomeMethodNotAllowed)
		return errorJSON(c, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	}

	contentType := strings.Join(req.Header.Values(echo.HeaderContentType), ", ")
	if !strings.Contains(contentType, echo.MIMEApplicationJSON) {
		h.logger.Warn("rejected login request", "reason", "bad content type", "content_type", contentType)
		h.metrics.Outcome(metrics.OutcomeBadContentType)
		return errorJSON(c, http.StatusBadRequest, msgBadContentType)
	}

	body := req.Body
	if h.bodyMaxBytes > 0 {
		body = http.MaxBytesReader(c.Response(), req.Body, h.bodyMaxBytes)
	}
	payload, err := service.DecodeJSON(body)
	if err != nil {
		return h.processingError(c, fmt.Errorf("%w: %w", errInvalidRequestBody, err))
	}

	resp, err := h.service.Forward(&model.LoginRequest{
		Ctx:     req.Context(),
		Payload: payload,
	})
	if err != nil {
		return h.processingError(c, err)
	}

	for key, vals := range resp.Header {
		for _, v := range vals {
			c.Response().Header().Add(key, v)
		}
	}

	h.metrics.Outcome(metrics.OutcomeForwarded)
	return c.JSON(resp.StatusCode, resp.Body)
}

// processingError logs the cause and answers with the generic 500. Callers
// never learn whether the payload or the upstream was at fault.
func (h *LoginHandler) processingError(c echo.Context, err error) error {
	h.logger.Error("error processing login request",
		"err", err,
		"cause", classifyError(err),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	h.metrics.Outcome(metrics.OutcomeProcessingError)
	return errorJSON(c, http.StatusInternalServerError, msgInternalError)
}

// classifyError returns a short log label describing what went wrong.
func classifyError(err error) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return "request_too_large"
	}

	if errors.Is(err, errInvalidRequestBody) {
		return "invalid_request_body"
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "upstream_timeout"
	}

	if errors.Is(err, context.Canceled) {
		return "client_disconnected"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "upstream_host_unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return "upstream_connection_failed"
	}

	return "upstream_response_invalid"
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
