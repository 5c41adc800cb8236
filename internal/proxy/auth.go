package proxy

import (
	"errors"
	"net/http"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/listing"
	"github.com/UnknownOlympus/hotelgate/internal/session"
	"github.com/UnknownOlympus/hotelgate/internal/upstream"
)

const loginPath = "Auth/Login"

var errNoToken = errors.New("login response carries no token")

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string          `json:"token"`
	User  session.Session `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.fail(w, r, http.StatusBadRequest, "error.invalid_body", nil)
		return
	}

	var missing []string
	if strings.TrimSpace(req.Username) == "" {
		missing = append(missing, "username")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		h.fail(w, r, http.StatusBadRequest, "validation.required", map[string]any{"fields": strings.Join(missing, ", ")})
		return
	}

	env := h.backend.Do(r.Context(), upstream.Request{
		Method: http.MethodPost,
		Path:   loginPath,
		Body:   req,
	})
	if !env.Success {
		if env.StatusCode == http.StatusUnauthorized || env.StatusCode == http.StatusForbidden {
			h.log.InfoContext(r.Context(), "Login rejected", "username", req.Username)
			h.fail(w, r, http.StatusUnauthorized, "auth.invalid_credentials", nil)
			return
		}
		writeEnvelope(w, env)
		return
	}

	sess, err := sessionFromLogin(env)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Unexpected login response", "request_id", RequestID(r.Context()), "error", err)
		h.fail(w, r, http.StatusBadGateway, "error.internal", nil)
		return
	}
	if sess.Username == "" {
		sess.Username = req.Username
	}
	if err = h.sessions.Save(r.Context(), sess); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to save session", "username", sess.Username, "error", err)
		h.fail(w, r, http.StatusInternalServerError, "error.internal", nil)
		return
	}

	h.log.InfoContext(r.Context(), "User signed in", "username", sess.Username, "role", sess.Role)
	writeEnvelope(w, envelope.Ok(loginResponse{Token: sess.Token, User: sess}, http.StatusOK))
}

// sessionFromLogin reads the token and the user profile from a login payload. The profile is
// taken from a nested "user" object when present, otherwise from the payload itself.
func sessionFromLogin(env envelope.Envelope) (session.Session, error) {
	var payload listing.Record
	if err := env.Into(&payload); err != nil {
		return session.Session{}, err
	}

	token := firstString(payload, "token", "accessToken", "access_token")
	if token == "" {
		return session.Session{}, errNoToken
	}

	user := payload
	if nested, ok := payload.Lookup("user"); ok {
		if fields, isObject := nested.(map[string]any); isObject {
			user = listing.Record(fields)
		}
	}

	sess := session.Session{
		Username: user.String("username"),
		FullName: firstString(user, "fullName", "name"),
		Email:    user.String("email"),
		Role:     strings.ToLower(user.String("role")),
		Token:    token,
	}
	sess.ID, _ = user.Int("id")
	return sess, nil
}

func firstString(rec listing.Record, fields ...string) string {
	for _, field := range fields {
		if value := rec.String(field); value != "" {
			return value
		}
	}
	return ""
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := h.sessions.Clear(r.Context(), sess.Token); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to clear session", "username", sess.Username, "error", err)
		h.fail(w, r, http.StatusInternalServerError, "error.internal", nil)
		return
	}
	h.views.Drop(sess.Token)

	env := envelope.Ok(nil, http.StatusOK)
	env.Message = h.text(r, "auth.logged_out", nil)
	writeEnvelope(w, env)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, envelope.Ok(sessionFrom(r.Context()), http.StatusOK))
}
