package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/UnknownOlympus/hotelgate/internal/envelope"
)

// State is the lifecycle state of a list screen.
type State int

// Controller states.
const (
	Idle State = iota
	Loading
	Loaded
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	defaultPageSize     = 10
	defaultRetryBackoff = 2 * time.Second
)

var (
	// ErrStale is returned when a response was superseded by a newer fetch and discarded.
	ErrStale = errors.New("response superseded by a newer request")
	// ErrInvalidPage is returned for page numbers or sizes below one.
	ErrInvalidPage = errors.New("page number and page size must be positive")
	// ErrRecordNotFound is returned when a mutation targets a row that is not on the loaded page.
	ErrRecordNotFound = errors.New("record is not on the loaded page")
	// ErrNotBoolean is returned when toggling a field that is not a boolean.
	ErrNotBoolean = errors.New("field is not a boolean")
)

// Loader fetches one server-side page.
type Loader interface {
	LoadPage(ctx context.Context, pageNumber, pageSize int) envelope.Envelope
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, pageNumber, pageSize int) envelope.Envelope

// LoadPage calls f.
func (f LoaderFunc) LoadPage(ctx context.Context, pageNumber, pageSize int) envelope.Envelope {
	return f(ctx, pageNumber, pageSize)
}

// Options configures a Controller.
type Options struct {
	Schema        Schema
	PageSize      int           // PageSize is the initial page size, 10 when zero.
	RetryAttempts int           // RetryAttempts bounds automatic refetches after a failure, none when zero.
	RetryBackoff  time.Duration // RetryBackoff is multiplied by the attempt number.
	OnSettled     func(state State)
}

// View is a snapshot of what the screen shows.
type View struct {
	State      State    `json:"state"`
	Items      []Record `json:"items"`
	TotalItems int      `json:"totalItems"`
	PageNumber int      `json:"pageNumber"`
	PageSize   int      `json:"pageSize"`
	Filter     Filter   `json:"filter"`
	Message    string   `json:"message,omitempty"`
	Stale      bool     `json:"stale,omitempty"`
}

// Controller drives one paginated screen: server-side paging plus filtering of the loaded page.
type Controller struct {
	mu            sync.Mutex
	log           *slog.Logger
	loader        Loader
	schema        Schema
	state         State
	items         []Record
	totalItems    int
	pageNumber    int
	pageSize      int
	requestedSize int
	filter        Filter
	message       string
	stale         bool
	seq           uint64
	cancel        context.CancelFunc
	retryAttempts int
	retryBackoff  time.Duration
	onSettled     func(state State)
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewController creates an idle controller on page one.
func NewController(log *slog.Logger, loader Loader, opts Options) *Controller {
	ctrl := &Controller{
		log:           log,
		loader:        loader,
		schema:        opts.Schema,
		state:         Idle,
		items:         []Record{},
		pageNumber:    1,
		pageSize:      opts.PageSize,
		retryAttempts: opts.RetryAttempts,
		retryBackoff:  opts.RetryBackoff,
		onSettled:     opts.OnSettled,
		sleep:         sleepContext,
	}
	if ctrl.pageSize <= 0 {
		ctrl.pageSize = defaultPageSize
	}
	ctrl.requestedSize = ctrl.pageSize
	if ctrl.retryAttempts < 0 {
		ctrl.retryAttempts = 0
	}
	if ctrl.retryBackoff <= 0 {
		ctrl.retryBackoff = defaultRetryBackoff
	}
	return ctrl
}

// Load fetches the first page when the screen has not been loaded yet.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	idle := c.state == Idle
	c.mu.Unlock()
	if !idle {
		return nil
	}
	return c.fetch(ctx)
}

// Refresh refetches the current page.
func (c *Controller) Refresh(ctx context.Context) error {
	return c.fetch(ctx)
}

// SetPage moves to page n and fetches it.
func (c *Controller) SetPage(ctx context.Context, n int) error {
	if n < 1 {
		return ErrInvalidPage
	}
	c.mu.Lock()
	if n == c.pageNumber && c.state != Idle {
		c.mu.Unlock()
		return nil
	}
	c.pageNumber = n
	c.mu.Unlock()
	return c.fetch(ctx)
}

// SetPageSize changes the page size, resets to page one and fetches once.
// Sizes are compared with the last requested size, not the one the server confirmed,
// so asking again for a size the server clamped is not a change.
func (c *Controller) SetPageSize(ctx context.Context, size int) error {
	if size < 1 {
		return ErrInvalidPage
	}
	c.mu.Lock()
	if size == c.requestedSize && c.state != Idle {
		c.mu.Unlock()
		return nil
	}
	c.requestedSize = size
	c.pageSize = size
	c.pageNumber = 1
	c.mu.Unlock()
	return c.fetch(ctx)
}

// RequestedPageSize returns the page size last asked for, before any server correction.
func (c *Controller) RequestedPageSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestedSize
}

// SetFilter replaces the page filter. The loaded page is filtered in place, nothing is fetched.
func (c *Controller) SetFilter(filter Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
}

// View returns the visible rows and paging state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := c.filter.Apply(c.schema, c.items)
	items := make([]Record, len(visible))
	for i, rec := range visible {
		items[i] = rec.Clone()
	}

	return View{
		State:      c.state,
		Items:      items,
		TotalItems: c.totalItems,
		PageNumber: c.pageNumber,
		PageSize:   c.pageSize,
		Filter:     c.filter,
		Message:    c.message,
		Stale:      c.stale,
	}
}

// Close cancels an in-flight fetch; its response will be discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// fetch loads the current page. Each call takes a new sequence number and cancels the
// previous in-flight call, so only the newest response is ever applied.
func (c *Controller) fetch(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Loading
	pageNumber, pageSize := c.pageNumber, c.pageSize
	c.mu.Unlock()
	defer cancel()

	env := c.loadWithRetry(fetchCtx, pageNumber, pageSize)

	var (
		page     Page
		parseErr error
	)
	if env.Success {
		page, parseErr = ParsePage(env.Data)
	}

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.log.DebugContext(ctx, "Discarding stale page response", "page", pageNumber, "size", pageSize)
		return ErrStale
	}
	c.cancel = nil

	var result error
	switch {
	case !env.Success:
		c.state = Error
		c.message = env.Message
		c.stale = len(c.items) > 0
		result = env.Err()
	case parseErr != nil:
		c.state = Error
		c.message = parseErr.Error()
		c.stale = len(c.items) > 0
		result = fmt.Errorf("failed to parse page: %w", parseErr)
	default:
		c.items = page.Items
		c.totalItems = page.TotalItems
		if page.PageNumber > 0 {
			c.pageNumber = page.PageNumber
		}
		if page.PageSize > 0 {
			c.pageSize = page.PageSize
		}
		c.state = Loaded
		c.message = ""
		c.stale = false
	}
	state := c.state
	c.mu.Unlock()

	if c.onSettled != nil {
		c.onSettled(state)
	}
	return result
}

func (c *Controller) loadWithRetry(ctx context.Context, pageNumber, pageSize int) envelope.Envelope {
	env := c.loader.LoadPage(ctx, pageNumber, pageSize)
	for attempt := 1; attempt <= c.retryAttempts && !env.Success && retryable(env); attempt++ {
		c.log.WarnContext(ctx, "Page load failed, retrying",
			"attempt", attempt, "status", env.StatusCode, "message", env.Message)
		if err := c.sleep(ctx, c.retryBackoff*time.Duration(attempt)); err != nil {
			return envelope.Fail(env.StatusCode, env.Message)
		}
		env = c.loader.LoadPage(ctx, pageNumber, pageSize)
	}
	return env
}

func retryable(env envelope.Envelope) bool {
	return env.StatusCode == 0 || env.StatusCode >= http.StatusInternalServerError
}

// Delete calls remove for the row and drops it from the page only when the backend agreed.
// A failure leaves the loaded rows untouched and becomes the screen message.
func (c *Controller) Delete(
	ctx context.Context,
	id string,
	remove func(ctx context.Context, id string) envelope.Envelope,
) envelope.Envelope {
	env := remove(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !env.Success {
		c.message = env.Message
		return env
	}
	for i, rec := range c.items {
		if rec.String(c.schema.IDField) == id {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			if c.totalItems > 0 {
				c.totalItems--
			}
			break
		}
	}
	c.message = ""
	return env
}

// Toggle flips a boolean field optimistically, calls save with the updated row and
// reverts the flip when save fails.
func (c *Controller) Toggle(
	ctx context.Context,
	id, field string,
	save func(ctx context.Context, rec Record) envelope.Envelope,
) envelope.Envelope {
	c.mu.Lock()
	rec := c.find(id)
	if rec == nil {
		c.mu.Unlock()
		return envelope.Fail(http.StatusNotFound, ErrRecordNotFound.Error())
	}
	current, ok := rec[field].(bool)
	if !ok {
		c.mu.Unlock()
		return envelope.Fail(http.StatusBadRequest, ErrNotBoolean.Error())
	}
	rec[field] = !current
	updated := rec.Clone()
	c.mu.Unlock()

	env := save(ctx, updated)

	c.mu.Lock()
	defer c.mu.Unlock()
	if env.Success {
		c.message = ""
		return env
	}
	if rec = c.find(id); rec != nil {
		if value, isBool := rec[field].(bool); isBool && value == !current {
			rec[field] = current
		}
	}
	c.message = env.Message
	return env
}

// Save sends changes for a row and, once the backend accepted them, merges them into the
// loaded row. When the backend echoes the same row, the echoed fields win. Any other
// response body is an acknowledgement and leaves the merged row as sent.
func (c *Controller) Save(
	ctx context.Context,
	id string,
	changes Record,
	save func(ctx context.Context, rec Record) envelope.Envelope,
) envelope.Envelope {
	c.mu.Lock()
	rec := c.find(id)
	if rec == nil {
		c.mu.Unlock()
		return envelope.Fail(http.StatusNotFound, ErrRecordNotFound.Error())
	}
	merged := rec.Clone()
	for key, value := range changes {
		merged[key] = value
	}
	c.mu.Unlock()

	env := save(ctx, merged)
	if !env.Success {
		c.mu.Lock()
		c.message = env.Message
		c.mu.Unlock()
		return env
	}

	var echoed Record
	if err := decode(env.Data, &echoed); err == nil && echoed.String(c.schema.IDField) == id {
		for key, value := range echoed {
			merged[key] = value
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, row := range c.items {
		if row.String(c.schema.IDField) == id {
			c.items[i] = merged
			break
		}
	}
	c.message = ""
	return env
}

// Record returns a copy of the loaded row with the given id.
func (c *Controller) Record(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.find(id)
	if rec == nil {
		return nil, false
	}
	return rec.Clone(), true
}

func (c *Controller) find(id string) Record {
	for _, rec := range c.items {
		if rec.String(c.schema.IDField) == id {
			return rec
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
