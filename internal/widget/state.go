// Package widget implements the view state controller of the map widget.
//
// A Controller owns one ViewState and mutates it only from its event loop
// (Run). User operations and likes fetch completions are queued as events,
// so no two mutations ever overlap. Every selection carries a monotonically
// increasing token; a fetch result is applied only while its token is still
// current, which keeps late responses from overwriting newer selections.
package widget

import (
	"fmt"

	"github.com/woozymasta/nbmap/internal/places"
)

// Phase is the popup state derived from the selection flags.
type Phase int

// Popup phases.
const (
	Idle Phase = iota
	Selected
	FetchPending
	FetchResolved
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case FetchPending:
		return "fetch_pending"
	case FetchResolved:
		return "fetch_resolved"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for _, candidate := range []Phase{Idle, Selected, FetchPending, FetchResolved} {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// ViewState is the widget state. popupVisible implies selected != nil.
type ViewState struct {
	Selected     *places.Place `json:"selected,omitempty"`
	LikeCount    *string       `json:"like_count,omitempty"`
	Filter       places.Filter `json:"filter"`
	Token        uint64        `json:"token"`
	PopupVisible bool          `json:"popup_visible"`
	PendingFetch bool          `json:"pending_fetch"`
}

// Phase derives the state machine position from the flags.
func (s ViewState) Phase() Phase {
	switch {
	case s.Selected == nil:
		return Idle
	case s.PendingFetch:
		return FetchPending
	case s.LikeCount != nil:
		return FetchResolved
	default:
		return Selected
	}
}

// Likes returns the like count for display, empty when unknown.
func (s ViewState) Likes() string {
	if s.LikeCount == nil {
		return ""
	}
	return *s.LikeCount
}

// clone deep-copies pointer fields so snapshots never alias loop state.
func (s ViewState) clone() ViewState {
	if s.Selected != nil {
		p := *s.Selected
		s.Selected = &p
	}
	if s.LikeCount != nil {
		c := *s.LikeCount
		s.LikeCount = &c
	}
	return s
}

// Snapshot is a consistent copy of the state plus what the map should draw.
type Snapshot struct {
	Visible []places.Place `json:"visible"`
	State   ViewState      `json:"state"`
	Phase   Phase          `json:"phase"`
}
