package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"minimarket-copilot/internal/app"
	"minimarket-copilot/internal/logger"
	"minimarket-copilot/internal/metrics"
	"minimarket-copilot/internal/ratelimit"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	jsonBodyLimit = 1 << 20
	// multipartOverhead covers form fields and boundaries around the audio part.
	multipartOverhead = 1 << 20
)

// Options configures NewHandler. Zero values disable the optional pieces.
type Options struct {
	AllowedOrigins string
	Log            *logger.Logger
	Limiter        *ratelimit.Limiter
	Gatherer       prometheus.Gatherer
	JWTSecret      string
	JWTIssuer      string
	MaxAudioBytes  int64
	// Ready reports whether backing stores are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc      app.ApplicationService
	log      *logger.Logger
	ready    func(ctx context.Context) error
	maxAudio int64
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.MaxAudioBytes <= 0 {
		opts.MaxAudioBytes = 25 << 20
	}
	h := &Handler{
		svc:      svc,
		log:      opts.Log,
		ready:    opts.Ready,
		maxAudio: opts.MaxAudioBytes,
	}

	r := chi.NewRouter()
	r.Use(RequestID(opts.Log))
	r.Use(Logger(opts.Log))
	r.Use(Recoverer(opts.Log))
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	if opts.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(opts.Gatherer))
	}

	// ── Store-scoped API (401 JSON if unauthenticated) ────────────────────────
	r.Route("/api/stores/{storeID}", func(r chi.Router) {
		r.Use(RequireUser(opts.JWTSecret, opts.JWTIssuer, opts.Log))

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(opts.Limiter, opts.Log))

			r.With(RequestBodyLimit(opts.MaxAudioBytes+multipartOverhead)).Post("/voice/turn", h.voiceTurn)

			r.Group(func(r chi.Router) {
				r.Use(RequestBodyLimit(jsonBodyLimit))
				r.Post("/voice/text", h.voiceText)
				r.Post("/voice/tts", h.voiceTTS)
			})
		})

		r.Get("/products", h.listProducts)
		r.Get("/stock", h.stockSummary)
	})

	return r
}

// health reports liveness, and readiness when a probe is configured.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.log.Error(r.Context(), "readiness check failed", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(response{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, response{Status: "ok"})
}

// storeIDParam extracts the raw {storeID} URL parameter.
func storeIDParam(r *http.Request) string {
	return chi.URLParam(r, "storeID")
}

// storeRequest builds the caller/store pair, writing 400 on a malformed store id.
func storeRequest(w http.ResponseWriter, r *http.Request) (app.StoreRequest, bool) {
	storeID, err := uuid.Parse(storeIDParam(r))
	if err != nil {
		writeError(w, r, "invalid store id", "BAD_REQUEST", http.StatusBadRequest)
		return app.StoreRequest{}, false
	}
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
		return app.StoreRequest{}, false
	}
	return app.StoreRequest{StoreID: storeID, UserID: userID}, true
}

// parseSessionID accepts an empty value as "no session".
func parseSessionID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if isBodyTooLarge(err) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}
