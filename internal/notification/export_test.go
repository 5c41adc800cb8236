package notification

import "time"

// SetNow replaces the clock of a poller.
func SetNow(p *Poller, now func() time.Time) {
	p.now = now
}

// FormatMessage exposes the telegram message layout.
func FormatMessage(n Notification) string {
	return formatMessage(n)
}
