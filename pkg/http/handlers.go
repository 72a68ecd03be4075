package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"shortlink/pkg/logging"
	"shortlink/pkg/service"
	"shortlink/pkg/storage"

	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 16 << 10

type Handler struct {
	linkService    *service.LinkService
	logger         *logging.Logger
	redirectMaxAge time.Duration
}

func NewHandler(linkService *service.LinkService, logger *logging.Logger, redirectMaxAge time.Duration) *Handler {
	return &Handler{linkService: linkService, logger: logger, redirectMaxAge: redirectMaxAge}
}

type linkResponse struct {
	*storage.Link
	ShortURL string `json:"short_url"`
	Expired  bool   `json:"expired"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req service.CreateLinkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		if errors.Is(err, service.ErrInvalidExpiration) {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}

	resp, err := h.linkService.CreateLink(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, resp)
}

// Redirect is the server-side resolution path: 308 with a short public
// cache lifetime and no body, plain-text errors otherwise.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	res, err := h.linkService.Resolve(r.Context(), resolveRequest(r))
	if err != nil {
		status, msg := h.statusFor(r, err)
		http.Error(w, msg, status)
		return
	}

	w.Header().Set("Location", res.OriginalURL)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(h.redirectMaxAge.Seconds())))
	w.WriteHeader(http.StatusPermanentRedirect)
}

// Resolve is the client-rendered path. It runs the same resolver but hands
// the destination back as JSON so the client can navigate itself.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.linkService.Resolve(r.Context(), resolveRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	link, err := h.linkService.GetLink(r.Context(), code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, linkResponse{
		Link:     link,
		ShortURL: h.linkService.ShortURL(link.ShortCode),
		Expired:  h.linkService.IsExpired(link),
	})
}

func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	links, err := h.linkService.ListLinks(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]linkResponse, 0, len(links))
	for i := range links {
		out = append(out, linkResponse{
			Link:     &links[i],
			ShortURL: h.linkService.ShortURL(links[i].ShortCode),
			Expired:  h.linkService.IsExpired(&links[i]),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.linkService.DeleteLink(r.Context(), code); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.linkService.Stats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := h.statusFor(r, err)
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP statuses. Unexpected errors are
// logged and reported without detail.
func (h *Handler) statusFor(r *http.Request, err error) (int, string) {
	switch {
	case service.IsValidationError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrAliasTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrAllocationExhausted):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrExpired):
		return http.StatusGone, err.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, err.Error()
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		return http.StatusInternalServerError, "internal server error"
	}
}

func resolveRequest(r *http.Request) service.ResolveRequest {
	return service.ResolveRequest{
		Code:      chi.URLParam(r, "code"),
		Referrer:  r.Referer(),
		UserAgent: r.UserAgent(),
		Country:   firstHeader(r, "CF-IPCountry", "X-Vercel-IP-Country", "X-Country-Code"),
		City:      city(r),
		IsQR:      r.URL.Query().Get("qr") == "1",
	}
}

func firstHeader(r *http.Request, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// city reads the edge city hint; Vercel sends it percent-encoded.
func city(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Vercel-IP-City")); v != "" {
		if decoded, err := url.QueryUnescape(v); err == nil {
			return decoded
		}
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-City"))
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
