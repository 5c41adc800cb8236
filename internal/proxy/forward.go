package proxy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
)

// handleForward sends /api/{resource}/{action} to the backend <Resource>/<Action>.
func (h *Handler) handleForward(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("resource")
	res, ok := h.catalog.Lookup(name)
	if !ok {
		h.fail(w, r, http.StatusNotFound, "error.unknown_resource", map[string]any{"resource": name})
		return
	}
	action := r.PathValue("action")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_body", nil)
		return
	}
	body = bytes.TrimSpace(body)

	if res.RequiresBody(action) {
		fields := map[string]any{}
		if len(body) > 0 {
			if err = json.Unmarshal(body, &fields); err != nil {
				h.fail(w, r, http.StatusBadRequest, "error.invalid_body", nil)
				return
			}
		}
		if missing := res.Missing(action, fields); len(missing) > 0 {
			h.fail(w, r, http.StatusBadRequest, "validation.required",
				map[string]any{"fields": strings.Join(missing, ", ")})
			return
		}
	}

	req := upstream.Request{
		Method: r.Method,
		Path:   res.ActionPath(action),
		Query:  r.URL.Query(),
		Header: forwardHeader(r),
	}
	if len(body) > 0 {
		req.Body = body
	}

	env := h.backend.Do(r.Context(), req)
	writeEnvelope(w, h.settle(r, req, env))
}

// settle caches successful reads and, in offline mode, answers failed calls that never
// reached a working backend: reads from the cache, mutations as accepted offline.
// Failures the backend decided on itself (4xx) are always returned as they are.
// Cached reads are keyed by the caller's token and offline answers need a signed-in caller,
// so nobody is served data the backend would have refused them.
func (h *Handler) settle(r *http.Request, req upstream.Request, env envelope.Envelope) envelope.Envelope {
	ctx := r.Context()
	token := bearerToken(r.Header.Get("Authorization"))
	key := cacheKey(token, req)

	if env.Success {
		if req.Method == http.MethodGet && h.cache != nil && token != "" {
			h.cache.Set(ctx, key, env)
		}
		return env
	}
	if !h.opts.OfflineMode || env.StatusCode < http.StatusInternalServerError {
		return env
	}
	if _, err := h.sessions.Get(ctx, token); err != nil {
		h.log.InfoContext(ctx, "Offline answer refused without a session",
			"request_id", RequestID(ctx), "path", req.Path, "error", err)
		return env
	}

	if req.Method == http.MethodGet {
		if h.cache == nil {
			return env
		}
		cached, ok := h.cache.Get(ctx, key)
		if !ok {
			return env
		}
		cached.Offline = true
		cached.Message = h.text(r, "offline.cached", nil)
		return cached
	}

	h.log.WarnContext(ctx, "Backend unreachable, mutation accepted in offline mode",
		"request_id", RequestID(ctx), "path", req.Path, "status", env.StatusCode, "message", env.Message)
	return envelope.Envelope{
		Success:    true,
		Offline:    true,
		Message:    h.text(r, "offline.saved", nil),
		StatusCode: http.StatusAccepted,
	}
}

// cacheKey scopes a read to the credential it was made with.
func cacheKey(token string, req upstream.Request) string {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:8]) + ":" + req.Path
	if len(req.Query) == 0 {
		return key
	}
	return key + "?" + req.Query.Encode()
}

// forwardHeader passes the caller's credentials and language on to the backend.
func forwardHeader(r *http.Request) http.Header {
	header := http.Header{}
	for _, key := range []string{"Authorization", "Accept-Language"} {
		if value := r.Header.Get(key); value != "" {
			header.Set(key, value)
		}
	}
	return header
}
