package widget

import (
	"context"
	"errors"
	"time"

	"github.com/woozymasta/nbmap/internal/likes"
	"github.com/woozymasta/nbmap/internal/places"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by operations on a controller whose loop has exited.
var ErrStopped = errors.New("widget controller stopped")

// Outcome classifies what happened to a fetch result.
type Outcome int

// Resolution outcomes.
const (
	// Applied results were written into the state.
	Applied Outcome = iota
	// Failed fetches cleared the pending flag and left the count unknown.
	Failed
	// Stale results belonged to a superseded selection and were dropped.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Resolution describes one completed likes fetch.
type Resolution struct {
	Err        error
	PlaceID    string
	ExternalID string
	Count      string
	Token      uint64
	Duration   time.Duration
	Outcome    Outcome
}

// Observer receives every resolution from inside the event loop.
// It must not call back into the controller.
type Observer func(Resolution)

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers a resolution observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithLogger sets the logger used by the controller.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller serializes all view state changes through a single goroutine.
type Controller struct {
	catalog  *places.Catalog
	fetcher  likes.Fetcher
	observer Observer
	events   chan func()
	stopped  chan struct{}
	log      zerolog.Logger
	state    ViewState
	// ctx is the loop context handed to fetches; set once in Run.
	ctx context.Context
}

// New returns a controller with the filter set to all. Call Run to start it.
func New(catalog *places.Catalog, fetcher likes.Fetcher, opts ...Option) *Controller {
	c := &Controller{
		catalog: catalog,
		fetcher: fetcher,
		events:  make(chan func()),
		stopped: make(chan struct{}),
		log:     log.Logger,
		state:   ViewState{Filter: places.FilterAll},
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes events until ctx is done. It must be called exactly once.
func (c *Controller) Run(ctx context.Context) {
	c.ctx = ctx
	defer close(c.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-c.events:
			fn()
		}
	}
}

// Done is closed once the event loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// do runs fn on the loop and waits for it to finish.
func (c *Controller) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	event := func() {
		fn()
		close(done)
	}

	select {
	case c.events <- event:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	// once accepted the loop always runs the event to completion
	<-done
	return nil
}

// SetCategoryFilter changes the visible category and closes any open popup.
// The like count is left as is.
func (c *Controller) SetCategoryFilter(ctx context.Context, f places.Filter) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() {
		c.state.Filter = f
		c.state.Selected = nil
		c.state.PopupVisible = false
		c.state.PendingFetch = false
		snap = c.snapshot()
	})
	return snap, err
}

// SelectPlace opens the popup for a place and starts the likes fetch when
// the place has an external id. The returned snapshot already shows the
// popup; the count arrives later.
func (c *Controller) SelectPlace(ctx context.Context, placeID string) (Snapshot, error) {
	p, err := c.catalog.Get(placeID)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err = c.do(ctx, func() {
		c.state.Token++
		c.state.Selected = &p
		c.state.PopupVisible = true
		c.state.LikeCount = nil
		c.state.PendingFetch = true

		extID, ok := c.catalog.ExternalID(p.ID)
		if !ok {
			c.state.PendingFetch = false
			c.log.Debug().
				Str("place", p.ID).
				Msg("No external id for place, skipping likes fetch")
		} else {
			c.startFetch(c.state.Token, p.ID, extID)
		}

		snap = c.snapshot()
	})
	return snap, err
}

// DismissPopup closes the popup. Calling it with no popup open is a no-op.
func (c *Controller) DismissPopup(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() {
		c.state.Selected = nil
		c.state.PopupVisible = false
		c.state.PendingFetch = false
		snap = c.snapshot()
	})
	return snap, err
}

// Snapshot returns the current state.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, func() { snap = c.snapshot() })
	return snap, err
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		State:   c.state.clone(),
		Phase:   c.state.Phase(),
		Visible: c.catalog.Visible(c.state.Filter),
	}
}

// startFetch runs the fetch off the loop and posts the result back.
// Superseded fetches are not cancelled; their results are ignored.
func (c *Controller) startFetch(token uint64, placeID, extID string) {
	ctx := c.ctx
	go func() {
		start := time.Now()
		count, err := c.fetcher.Fetch(ctx, extID)
		res := Resolution{
			Token:      token,
			PlaceID:    placeID,
			ExternalID: extID,
			Count:      count,
			Err:        err,
			Duration:   time.Since(start),
		}

		select {
		case c.events <- func() { c.onLikesResolved(res) }:
		case <-c.stopped:
		}
	}()
}

// onLikesResolved applies a fetch result if it still belongs to the
// current selection and the popup is still waiting for it.
func (c *Controller) onLikesResolved(res Resolution) {
	current := c.state.Selected != nil &&
		c.state.Token == res.Token &&
		c.state.Selected.ID == res.PlaceID &&
		c.state.PendingFetch

	switch {
	case !current:
		res.Outcome = Stale
		c.log.Debug().
			Str("place", res.PlaceID).
			Uint64("token", res.Token).
			Uint64("current_token", c.state.Token).
			Msg("Discarding stale likes response")

	case res.Err != nil:
		res.Outcome = Failed
		c.state.PendingFetch = false
		c.log.Warn().
			Err(res.Err).
			Str("place", res.PlaceID).
			Str("venue", res.ExternalID).
			Msg("Likes fetch failed")

	default:
		res.Outcome = Applied
		count := res.Count
		c.state.LikeCount = &count
		c.state.PendingFetch = false
	}

	if c.observer != nil {
		c.observer(res)
	}
}
