package upstream

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
)

// Doer runs one logical backend call.
type Doer interface {
	Do(ctx context.Context, req Request) envelope.Envelope
}

// Authorized sends every call of Backend with the bearer Token.
// An empty token leaves requests as they are.
type Authorized struct {
	Backend Doer
	Token   string
}

// Do sets the Authorization header and forwards the call.
func (a Authorized) Do(ctx context.Context, req Request) envelope.Envelope {
	if a.Token == "" {
		return a.Backend.Do(ctx, req)
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", "Bearer "+a.Token)
	req.Header = header
	return a.Backend.Do(ctx, req)
}
