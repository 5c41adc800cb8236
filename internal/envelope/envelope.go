package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// jsonAPI decodes backend bodies without losing integer precision on ids and totals.
var jsonAPI = jsoniter.Config{ //nolint:gochecknoglobals // frozen codec config
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// ErrNoData is returned by Into when a successful envelope carries no payload.
var ErrNoData = errors.New("envelope carries no data")

// Envelope is the canonical shape every backend call resolves to.
type Envelope struct {
	Success    bool            `json:"success"`              // Success reports whether the logical call succeeded.
	Data       json.RawMessage `json:"data,omitempty"`       // Data is the payload as returned by the backend.
	Message    string          `json:"message,omitempty"`    // Message is a human readable status or error text.
	StatusCode int             `json:"statusCode,omitempty"` // StatusCode is the HTTP status the payload came with.
	Offline    bool            `json:"offline,omitempty"`    // Offline marks data that was served in offline mode.
}

// Error is the failed branch of an envelope, usable with errors.As.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend call failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend call failed with status %d: %s", e.StatusCode, e.Message)
}

// Ok builds a successful envelope around an arbitrary payload.
func Ok(data any, status int) Envelope {
	raw, err := jsonAPI.Marshal(data)
	if err != nil {
		return Fail(http.StatusInternalServerError, "failed to encode payload: "+err.Error())
	}
	return Envelope{Success: true, Data: raw, StatusCode: status}
}

// Fail builds a failed envelope. A zero status becomes 500.
func Fail(status int, message string) Envelope {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Envelope{Success: false, Message: message, StatusCode: status}
}

// Err returns nil for a successful envelope and an *Error otherwise.
func (e Envelope) Err() error {
	if e.Success {
		return nil
	}
	return &Error{StatusCode: e.StatusCode, Message: e.Message}
}

// Into decodes the payload of a successful envelope into v.
func (e Envelope) Into(v any) error {
	if err := e.Err(); err != nil {
		return err
	}
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return ErrNoData
	}
	if err := jsonAPI.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode envelope data: %w", err)
	}
	return nil
}

// Normalize collapses the known backend response shapes into an Envelope.
// Shapes are recognized in priority order:
//
//   - an object with a boolean "success" field is passed through;
//   - an object with "statusCode" 200 and a "value" field has value lifted into Data;
//   - anything else is the payload itself.
//
// Bodies that are not JSON pass through as a JSON string.
func Normalize(body []byte, status int) Envelope {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{Success: true, StatusCode: status}
	}

	if !jsonAPI.Valid(trimmed) {
		raw, _ := jsonAPI.Marshal(string(trimmed))
		return Envelope{Success: true, Data: raw, StatusCode: status}
	}

	var fields map[string]json.RawMessage
	if trimmed[0] == '{' && jsonAPI.Unmarshal(trimmed, &fields) == nil {
		if env, ok := passThrough(fields, status); ok {
			return env
		}
		if env, ok := liftValue(fields); ok {
			return env
		}
	}

	return Envelope{Success: true, Data: json.RawMessage(trimmed), StatusCode: status}
}

func passThrough(fields map[string]json.RawMessage, status int) (Envelope, bool) {
	raw, ok := lookup(fields, "success")
	if !ok {
		return Envelope{}, false
	}
	var success bool
	if err := jsonAPI.Unmarshal(raw, &success); err != nil {
		return Envelope{}, false
	}

	env := Envelope{Success: success, StatusCode: status}
	if data, found := lookup(fields, "data"); found {
		env.Data = data
	}
	if code, found := intField(fields, "statusCode"); found {
		env.StatusCode = code
	}
	env.Message = MessageFromFields(fields)
	return env, true
}

func liftValue(fields map[string]json.RawMessage) (Envelope, bool) {
	code, ok := intField(fields, "statusCode")
	if !ok || code != http.StatusOK {
		return Envelope{}, false
	}
	value, ok := lookup(fields, "value")
	if !ok {
		return Envelope{}, false
	}
	return Envelope{Success: true, Data: value, StatusCode: code, Message: MessageFromFields(fields)}, true
}

// MessageFrom extracts the most useful human message from an error body.
func MessageFrom(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	var fields map[string]json.RawMessage
	if trimmed[0] == '{' && jsonAPI.Unmarshal(trimmed, &fields) == nil {
		return MessageFromFields(fields)
	}
	var text string
	if jsonAPI.Unmarshal(trimmed, &text) == nil {
		return text
	}
	const maxPlain = 200
	plain := string(trimmed)
	if len(plain) > maxPlain {
		plain = plain[:maxPlain]
	}
	return plain
}

// MessageFromFields picks message, title, error or the first validation error, in that order.
func MessageFromFields(fields map[string]json.RawMessage) string {
	for _, key := range []string{"message", "title", "error", "detail"} {
		raw, ok := lookup(fields, key)
		if !ok {
			continue
		}
		var text string
		if jsonAPI.Unmarshal(raw, &text) == nil && text != "" {
			return text
		}
	}

	raw, ok := lookup(fields, "errors")
	if !ok {
		return ""
	}
	var byField map[string][]string
	if jsonAPI.Unmarshal(raw, &byField) == nil {
		for _, field := range slices.Sorted(maps.Keys(byField)) {
			if messages := byField[field]; len(messages) > 0 {
				return field + ": " + messages[0]
			}
		}
	}
	var list []string
	if jsonAPI.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return ""
}

// lookup finds key in camelCase or PascalCase.
func lookup(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	if raw, ok := fields[key]; ok {
		return raw, true
	}
	pascal := strings.ToUpper(key[:1]) + key[1:]
	raw, ok := fields[pascal]
	return raw, ok
}

func intField(fields map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := lookup(fields, key)
	if !ok {
		return 0, false
	}
	var code int
	if err := jsonAPI.Unmarshal(raw, &code); err != nil {
		return 0, false
	}
	return code, true
}
