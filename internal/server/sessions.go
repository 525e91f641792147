package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/woozymasta/nbmap/internal/likes"
	"github.com/woozymasta/nbmap/internal/places"
	"github.com/woozymasta/nbmap/internal/widget"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const sessionCookie = "nbmap_session"

type session struct {
	ctrl   *widget.Controller
	cancel context.CancelFunc
}

// Sessions keeps one widget controller per browser session.
// Idle sessions expire and their event loops are stopped.
type Sessions struct {
	store    *cache.Cache
	catalog  *places.Catalog
	fetcher  likes.Fetcher
	metrics  *Metrics
	observer widget.Observer
	mu       sync.Mutex
	ttl      time.Duration
}

// NewSessions creates a store with the given idle timeout.
func NewSessions(catalog *places.Catalog, fetcher likes.Fetcher, metrics *Metrics, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &Sessions{
		store:   cache.New(ttl, ttl/2),
		catalog: catalog,
		fetcher: fetcher,
		metrics: metrics,
		ttl:     ttl,
	}
	s.observer = s.observe

	s.store.OnEvicted(func(id string, v interface{}) {
		v.(*session).cancel()
		s.metrics.sessionsActive.Dec()
		log.Debug().Str("session", id).Msg("Widget session closed")
	})

	return s
}

// Resolve returns the controller bound to the request cookie, creating a
// session and setting the cookie when there is none.
func (s *Sessions) Resolve(w http.ResponseWriter, r *http.Request) *widget.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, err := r.Cookie(sessionCookie); err == nil {
		if v, ok := s.store.Get(c.Value); ok {
			sess := v.(*session)
			select {
			case <-sess.ctrl.Done():
			default:
				// sliding expiration; Set does not fire OnEvicted
				s.store.Set(c.Value, sess, cache.DefaultExpiration)
				return sess.ctrl
			}
		}
	}

	id := uuid.NewString()
	sess := s.open(id)
	s.store.Set(id, sess, cache.DefaultExpiration)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})

	return sess.ctrl
}

func (s *Sessions) open(id string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.With().Str("session", id).Logger()

	ctrl := widget.New(s.catalog, s.fetcher,
		widget.WithObserver(s.observer),
		widget.WithLogger(logger),
	)
	go ctrl.Run(ctx)

	s.metrics.sessionsActive.Inc()
	logger.Debug().Msg("Widget session opened")

	return &session{ctrl: ctrl, cancel: cancel}
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.store.ItemCount()
}

// Close stops every session.
func (s *Sessions) Close() {
	for id := range s.store.Items() {
		s.store.Delete(id)
	}
}

func (s *Sessions) observe(res widget.Resolution) {
	s.metrics.likesFetches.WithLabelValues(res.Outcome.String()).Inc()
	s.metrics.likesDuration.Observe(res.Duration.Seconds())
}
