package api

import (
	"captchaguard/internal/app"
	"captchaguard/internal/integrations"
	"captchaguard/internal/ports"
	"captchaguard/internal/settings"
	"captchaguard/internal/types"
	"captchaguard/internal/widget"
	"crypto/subtle"
	"errors"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const (
	AdminTokenHdrName = "x-admin-token"
	maxBodyBytes      = 1 << 20
)

type Handler struct {
	Settings     *settings.Service
	Integrations *integrations.Manager
	Limiter      ports.RateLimiter
	AdminToken   string
	// SaveRPM limits settings saves per client IP and minute. Zero disables the limit.
	SaveRPM int
	// TrustProxy takes the client IP from X-Forwarded-For. Enable it only behind one reverse
	// proxy that appends to that header; otherwise clients can pick their own rate-limit scope.
	TrustProxy bool
}

func NewHandler(a *app.App) *Handler {
	return &Handler{
		Settings:     a.Settings,
		Integrations: a.Integrations,
		Limiter:      a.Limiter,
		AdminToken:   a.Config.AdminToken,
		SaveRPM:      a.Config.SaveRPM,
		TrustProxy:   a.Config.TrustProxy,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/settings", h.admin(h.handleSettings))
	mux.HandleFunc("/settings/reset", h.admin(h.handleReset))
	mux.HandleFunc("/settings/{name}", h.admin(h.handleSetting))
	mux.HandleFunc("/verify/{setting}", h.handleVerify)
	mux.HandleFunc("/widget", h.handleWidget)
	return withRequestLog(mux)
}

// admin rejects requests without the configured admin token. With no token configured the
// admin routes are closed.
func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := Auth(h.AdminToken, r.Header.Get(AdminTokenHdrName)); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Auth checks a presented admin token against the configured one.
func Auth(expected, presented string) error {
	if expected == "" {
		return errors.New("admin api disabled")
	}
	if presented == "" {
		return errors.New("missing admin token")
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return errors.New("invalid credentials")
	}
	return nil
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"configured": h.Settings.IsConfigured(r.Context())})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cur, err := h.Settings.GetAllSettings(r.Context())
		if err != nil {
			http.Error(w, "failed to load settings", http.StatusInternalServerError)
			return
		}
		h.respond(w, r, http.StatusOK, cur.Redacted())
	case http.MethodPost:
		h.saveSettings(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.SaveRPM > 0 && h.Limiter != nil {
		ok, err := h.Limiter.Acquire(ctx, "IP:"+clientIP(r, h.TrustProxy), h.SaveRPM, time.Minute)
		if err != nil {
			log.WithError(err).Error("failed to acquire save rate limit")
			http.Error(w, "rate limit check failed", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "rate limit (ip)", http.StatusTooManyRequests)
			return
		}
	}

	in, err := readInput(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	saved, diags, err := h.Settings.ValidateAndPersist(ctx, in)
	if err != nil {
		h.respond(w, r, http.StatusInternalServerError, map[string]any{
			"error":       "failed to save settings",
			"diagnostics": diags,
		})
		return
	}
	if diags == nil {
		diags = types.Diagnostics{}
	}
	h.respond(w, r, http.StatusOK, map[string]any{
		"settings":    saved.Redacted(),
		"diagnostics": diags,
	})
}

func (h *Handler) handleSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("name")
	v, err := h.Settings.GetSetting(r.Context(), name)
	switch {
	case errors.Is(err, types.ErrUnknownSetting):
		http.Error(w, "unknown setting", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	if s, ok := v.(string); ok && name == types.SettingAPIKey {
		v = types.RedactSecret(s)
	}
	h.respond(w, r, http.StatusOK, map[string]any{"name": name, "value": v})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.Settings.Reset(r.Context()); err != nil {
		http.Error(w, "failed to reset settings", http.StatusInternalServerError)
		return
	}
	h.respond(w, r, http.StatusOK, map[string]any{"status": "reset"})
}

// handleVerify is the entry point for form surfaces: it checks the submitted solution when
// the surface is protected.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	setting := r.PathValue("setting")
	if _, _, ok := h.Integrations.Lookup(setting); !ok {
		http.Error(w, "unknown setting", http.StatusNotFound)
		return
	}
	in, err := readInput(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.Integrations.Verify(r.Context(), setting, in)
	switch {
	case errors.Is(err, types.ErrCaptchaUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, types.ErrVerificationFailed):
		http.Error(w, types.ErrVerificationFailed.Error(), http.StatusForbidden)
	case err != nil:
		http.Error(w, "verification error", http.StatusInternalServerError)
	default:
		h.respond(w, r, http.StatusOK, map[string]any{
			"success":   true,
			"protected": h.Integrations.Active(setting),
		})
	}
}

// handleWidget returns the widget markup for a form surface, named by the optional setting
// query parameter. Nothing is rendered for an unconfigured site or an unprotected surface.
func (h *Handler) handleWidget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	var opts widget.Options
	if setting := q.Get("setting"); setting != "" {
		preset, ok := widget.Presets[setting]
		if !ok {
			http.Error(w, "unknown setting", http.StatusNotFound)
			return
		}
		h.Integrations.Refresh(ctx)
		if !h.Integrations.Active(setting) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		opts = preset
	}
	opts.Theme = types.Theme(q.Get("theme"))

	cur, err := h.Settings.GetAllSettings(ctx)
	if err != nil {
		log.WithError(err).WithField("request_id", RequestID(ctx)).Error("failed to load settings")
		http.Error(w, "settings unavailable", http.StatusInternalServerError)
		return
	}
	out, err := widget.Snippet(cur, opts)
	if err != nil {
		log.WithError(err).WithField("request_id", RequestID(ctx)).Error("failed to render widget")
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	if out == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, string(out)); err != nil {
		log.WithError(err).WithField("request_id", RequestID(ctx)).Warn("failed to write response")
	}
}

// readInput accepts a url-encoded form or a flat JSON object of strings. Only the first
// value of repeated form fields is used.
func readInput(w http.ResponseWriter, r *http.Request) (types.RawInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_ = r.Body.Close()
	}()
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, errors.New("read error")
		}
		in := types.RawInput{}
		if len(body) == 0 {
			return in, nil
		}
		if err := json.Unmarshal(body, &in); err != nil {
			return nil, errors.New("invalid json")
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, errors.New("invalid form")
	}
	in := make(types.RawInput, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			in[k] = vs[0]
		}
	}
	return in, nil
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, code int, v any) {
	if err := writeJSON(w, code, v); err != nil {
		log.WithError(err).WithField("request_id", RequestID(r.Context())).Warn("failed to write response")
	}
}

// clientIP returns the peer address. Behind a trusted proxy it returns the last
// X-Forwarded-For entry, the one the proxy appended; earlier entries come from the client.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(xff[len(xff)-1], ",")
			if ip := strings.TrimSpace(hops[len(hops)-1]); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If SplitHostPort fails, return the RemoteAddr as-is
		return r.RemoteAddr
	}
	return host
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}
