// Package server handles HTTP requests and middleware.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/woozymasta/nbmap/internal/config"
	"github.com/woozymasta/nbmap/internal/geo"
	"github.com/woozymasta/nbmap/internal/places"
	"github.com/woozymasta/nbmap/internal/widget"

	"github.com/rs/zerolog/log"
)

// TownResponse describes the initial map view.
type TownResponse struct {
	Bounds      *geo.Bounds       `json:"bounds,omitempty"`
	Attribution string            `json:"attribution,omitempty"`
	Categories  []places.Category `json:"categories"`
	Town        config.Town       `json:"town"`
}

// ViewResponse is what the page renders after every event.
type ViewResponse struct {
	Selected     *places.Place                `json:"selected,omitempty"`
	Filter       places.Filter                `json:"filter"`
	Phase        widget.Phase                 `json:"phase"`
	Likes        string                       `json:"likes"`
	Places       geo.GeoJSONFeatureCollection `json:"places"`
	Token        uint64                       `json:"token"`
	PopupVisible bool                         `json:"popup_visible"`
	PendingFetch bool                         `json:"pending_fetch"`
}

func newViewResponse(snap widget.Snapshot) ViewResponse {
	return ViewResponse{
		Selected:     snap.State.Selected,
		Filter:       snap.State.Filter,
		Phase:        snap.Phase,
		Likes:        snap.State.Likes(),
		Places:       geo.FromPlaces(snap.Visible),
		Token:        snap.State.Token,
		PopupVisible: snap.State.PopupVisible,
		PendingFetch: snap.State.PendingFetch,
	}
}

// HandleTown serves the town center, zoom and categories.
func (s *ServerContext) HandleTown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TownResponse{
		Town:        s.Config.Town,
		Attribution: s.Config.Attribution,
		Categories:  places.Categories,
		Bounds:      s.Bounds,
	})
}

// HandleView serves the session state.
func (s *ServerContext) HandleView(w http.ResponseWriter, r *http.Request) {
	ctrl := s.Sessions.Resolve(w, r)
	s.respond(w, r, ctrl.Snapshot)
}

// HandleFilter changes the category filter (query or form value "category").
func (s *ServerContext) HandleFilter(w http.ResponseWriter, r *http.Request) {
	f, err := places.ParseFilter(r.FormValue("category"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl := s.Sessions.Resolve(w, r)
	s.respond(w, r, func(ctx context.Context) (widget.Snapshot, error) {
		return ctrl.SetCategoryFilter(ctx, f)
	})
}

// HandleSelect activates a marker.
func (s *ServerContext) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ctrl := s.Sessions.Resolve(w, r)
	s.respond(w, r, func(ctx context.Context) (widget.Snapshot, error) {
		return ctrl.SelectPlace(ctx, id)
	})
}

// HandleDismiss closes the popup, e.g. on a map background click.
func (s *ServerContext) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	ctrl := s.Sessions.Resolve(w, r)
	s.respond(w, r, ctrl.DismissPopup)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

func (s *ServerContext) respond(w http.ResponseWriter, r *http.Request, op func(context.Context) (widget.Snapshot, error)) {
	snap, err := op(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newViewResponse(snap))
	case errors.Is(err, places.ErrUnknownPlace):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, widget.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "session closed, retry")
	case errors.Is(err, context.Canceled):
		// client went away
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Widget operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
