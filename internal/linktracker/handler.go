package linktracker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sundayezeilo/linktracker/internal/errx"
	"github.com/sundayezeilo/linktracker/internal/httpx"
)

// HTTPCreateLinkRequest represents the JSON request body for creating a
// masked link. Validation mirrors the persisted-record contract: expiration
// must be a real YYYY-MM-DD calendar date.
type HTTPCreateLinkRequest struct {
	Target     string `json:"target" validate:"required,max=2048"`
	Valid      *bool  `json:"valid,omitempty"`
	Password   string `json:"password,omitempty"`
	Expiration string `json:"expiration,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// LinkResponse represents the JSON shape of a link record.
type LinkResponse struct {
	ID         string `json:"id"`
	Link       string `json:"link"`
	Target     string `json:"target"`
	Valid      bool   `json:"valid"`
	Password   string `json:"password,omitempty"`
	Expiration string `json:"expiration,omitempty"`
	Visited    int64  `json:"visited"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// StatsResponse represents the JSON shape of the stats endpoint.
type StatsResponse struct {
	Visited int64 `json:"visited"`
}

// HealthResponse represents the JSON shape of the health endpoint.
type HealthResponse struct {
	Message   string  `json:"message"`
	Timestamp int64   `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

// toLinkResponse maps the domain record to its wire shape. Mapping is
// explicit on purpose; there is no reflection pipeline between the store
// layout and the API.
func toLinkResponse(link Link) LinkResponse {
	return LinkResponse{
		ID:         link.ID.String(),
		Link:       link.MaskedLink,
		Target:     link.Target,
		Valid:      link.Valid,
		Password:   link.Password,
		Expiration: link.Expiration,
		Visited:    link.Visited,
		CreatedAt:  link.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  link.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Handler provides HTTP handlers for the link-tracker service.
type Handler struct {
	service   Service
	resolver  Resolver
	logger    *slog.Logger
	validate  *validator.Validate
	baseURL   string
	startedAt time.Time
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service  Service
	Resolver Resolver
	Logger   *slog.Logger
	BaseURL  string // overrides the request-derived host base when set
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:   cfg.Service,
		resolver:  cfg.Resolver,
		logger:    logger,
		validate:  validator.New(),
		baseURL:   cfg.BaseURL,
		startedAt: time.Now(),
	}
}

// hostBase returns the scheme://host the masked link is built on. The
// original request decides unless an explicit base URL is configured.
func (h *Handler) hostBase(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// maskedURL rebuilds the full masked link for a route token.
func (h *Handler) maskedURL(r *http.Request, token string) string {
	return h.hostBase(r) + maskedPathPrefix + token
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Message:   "OK",
		Timestamp: time.Now().UnixMilli(),
		Uptime:    time.Since(h.startedAt).Seconds(),
	})
}

// CreateLink handles POST /create-link-tracker.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		msg := createValidationMessage(err)
		logger.WarnContext(ctx, "request validation failed",
			"error", msg,
			"target", req.Target,
		)
		httpx.WriteError(w, http.StatusBadRequest, "validation_failed", msg, nil)
		return
	}

	link, err := h.service.Create(ctx, CreateLinkRequest{
		HostBase:   h.hostBase(r),
		Target:     req.Target,
		Valid:      req.Valid,
		Password:   req.Password,
		Expiration: req.Expiration,
	})
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link tracker created",
		"link_id", link.ID.String(),
		"masked_link", link.MaskedLink,
		"expires", link.Expiration != "",
		"password_protected", link.Password != "",
	)

	httpx.WriteJSON(w, http.StatusCreated, toLinkResponse(link))
}

// List handles GET /link-tracker/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	links, err := h.service.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list link trackers",
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		kind := errx.KindOf(err)
		httpx.WriteError(w, httpx.ErrorKindToStatus(kind), httpx.ErrorKindToCode(kind),
			"Unable to list link trackers at this time", nil)
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, link := range links {
		resp = append(resp, toLinkResponse(link))
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Redirect handles GET /l/{link}. On success it answers 302 with the
// target in the Location header.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	token := r.PathValue("link")
	if token == "" {
		logger.WarnContext(ctx, "missing link token in path")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "link is required", nil)
		return
	}

	maskedLink := h.maskedURL(r, token)
	password := r.URL.Query().Get("password")

	target, err := h.resolver.Redirect(ctx, maskedLink, password)
	if err != nil {
		h.handleResolveError(ctx, w, err, maskedLink)
		return
	}

	logger.InfoContext(ctx, "masked link resolved",
		"masked_link", maskedLink,
		"target", target,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, target, http.StatusFound)
}

// Invalidate handles PUT /l/{link}.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	token := r.PathValue("link")
	maskedLink := h.maskedURL(r, token)

	link, err := h.service.Invalidate(ctx, maskedLink)
	if err != nil {
		h.handleResolveError(ctx, w, err, maskedLink)
		return
	}

	logger.InfoContext(ctx, "link tracker invalidated",
		"link_id", link.ID.String(),
		"masked_link", maskedLink,
	)

	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(link))
}

// Stats handles GET /l/{link}/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.PathValue("link")
	maskedLink := h.maskedURL(r, token)

	visited, err := h.service.StatsFor(ctx, maskedLink)
	if err != nil {
		h.handleResolveError(ctx, w, err, maskedLink)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, StatsResponse{Visited: visited})
}

// handleCreateError handles errors from the Create service method.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link tracker request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create link tracker at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link tracker", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create link tracker at this time. Please try again.", nil)
	}
}

// handleResolveError handles errors from lookup-based operations.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, maskedLink string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"masked_link", maskedLink,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "masked link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"this link ("+maskedLink+") was not found", nil)

	case errx.Unauthorized:
		h.logger.WarnContext(ctx, "masked link password mismatch", logAttrs...)
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"you are not authorised to access this link", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid masked link", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving masked link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// createValidationMessage turns validator errors into the messages the API
// documents, keeping the expiration-format message stable for clients.
func createValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	first := verrs[0]
	switch first.Field() {
	case "Target":
		if first.Tag() == "required" {
			return "target is required"
		}
		return "target too long (max 2048 characters)"
	case "Expiration":
		return "the date must be in YYYY-MM-DD format"
	default:
		return first.Error()
	}
}
