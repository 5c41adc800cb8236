package proxy

import (
	"net/http"
	"strings"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
	"github.com/UnknownOlympus/hotelgate/internal/i18n"
	jsoniter "github.com/json-iterator/go"
)

const maxBodyBytes = 10 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// writeEnvelope answers with the envelope using its status code as the HTTP status.
func writeEnvelope(w http.ResponseWriter, env envelope.Envelope) {
	status := env.StatusCode
	if status == 0 {
		status = http.StatusOK
		if !env.Success {
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, env)
}

// fail answers with a failed envelope carrying the localized message of key.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, status int, key string, data map[string]any) {
	writeEnvelope(w, envelope.Fail(status, h.text(r, key, data)))
}

func (h *Handler) text(r *http.Request, key string, data map[string]any) string {
	lang := language(r)
	if data == nil {
		return h.localizer.Get(lang, key)
	}
	return h.localizer.GetWithData(lang, key, data)
}

func language(r *http.Request) string {
	return i18n.NormalizeLanguageCode(r.Header.Get("Accept-Language"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
