package upstream

import "net/http"

// ErrorKind classifies how a single attempt failed before a status could be read.
type ErrorKind int

const (
	// KindNone means the backend answered with a status code.
	KindNone ErrorKind = iota
	// KindTimeout means the per-attempt timeout elapsed.
	KindTimeout
	// KindTransport means the connection failed (dns, refused, reset).
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// RetryPolicy decides whether a failed attempt is worth repeating.
// status is 0 when kind is not KindNone.
type RetryPolicy func(status int, kind ErrorKind) bool

// DefaultRetryPolicy retries connection failures, timeouts, 408, 429 and 5xx.
// Authorization and business errors (401, 403, 400, 404, 409, ...) are final.
func DefaultRetryPolicy(status int, kind ErrorKind) bool {
	if kind != KindNone {
		return true
	}
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// RetryAll treats every non-2xx outcome as transient.
func RetryAll(int, ErrorKind) bool { return true }
