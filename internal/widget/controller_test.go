package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/woozymasta/nbmap/internal/likes"
	"github.com/woozymasta/nbmap/internal/places"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type fetchReply struct {
	err   error
	count string
}

// gatedFetcher blocks every fetch until the test releases it.
type gatedFetcher struct {
	calls chan string
	gates map[string]chan fetchReply
}

func newGatedFetcher(ids ...string) *gatedFetcher {
	f := &gatedFetcher{
		calls: make(chan string, 16),
		gates: make(map[string]chan fetchReply, len(ids)),
	}
	for _, id := range ids {
		f.gates[id] = make(chan fetchReply, 4)
	}
	return f
}

func (f *gatedFetcher) Fetch(ctx context.Context, id string) (string, error) {
	f.calls <- id
	select {
	case r := <-f.gates[id]:
		return r.count, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *gatedFetcher) release(id, count string, err error) {
	f.gates[id] <- fetchReply{count: count, err: err}
}

func (f *gatedFetcher) expectCall(t *testing.T, id string) {
	t.Helper()
	select {
	case got := <-f.calls:
		require.Equal(t, id, got)
	case <-time.After(waitTimeout):
		t.Fatalf("fetch for %s was not issued", id)
	}
}

func testCatalog(t *testing.T) *places.Catalog {
	t.Helper()
	c, err := places.NewCatalog([]places.Place{
		{ID: "epicuro", Name: "Epicuro", Category: places.Bar},
		{ID: "twiggy", Name: "Twiggy Cafè", Category: places.Bar},
		{ID: "nuovo", Name: "Cinema Teatro Nuovo", Category: places.Cinema},
		{ID: "paranza", Name: "La Paranza", Category: places.Restaurant},
		{ID: "nameless", Name: "Unlisted Bar", Category: places.Bar},
	}, map[string]string{
		"epicuro": "50a6c6b8e4b00084f2bda94e",
		"twiggy":  "4bb1ed21f964a52030ab3ce3",
		"nuovo":   "4cdef8d9ffcf37041c741682",
		"paranza": "4d56fe08143ca0932e8ac2fc",
	})
	require.NoError(t, err)
	return c
}

type harness struct {
	ctrl        *Controller
	fetcher     *gatedFetcher
	resolutions chan Resolution
}

func start(t *testing.T, fetcher likes.Fetcher) *harness {
	t.Helper()
	h := &harness{resolutions: make(chan Resolution, 16)}
	if g, ok := fetcher.(*gatedFetcher); ok {
		h.fetcher = g
	}

	h.ctrl = New(testCatalog(t), fetcher, WithObserver(func(r Resolution) {
		h.resolutions <- r
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go h.ctrl.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.ctrl.Done()
	})
	return h
}

func (h *harness) nextResolution(t *testing.T) Resolution {
	t.Helper()
	select {
	case r := <-h.resolutions:
		return r
	case <-time.After(waitTimeout):
		t.Fatal("no likes resolution")
		return Resolution{}
	}
}

func TestInitialState(t *testing.T) {
	h := start(t, newGatedFetcher())
	snap, err := h.ctrl.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, places.FilterAll, snap.State.Filter)
	assert.Equal(t, Idle, snap.Phase)
	assert.Len(t, snap.Visible, 5)
	assert.False(t, snap.State.PopupVisible)
	assert.Nil(t, snap.State.LikeCount)
}

func TestFilterVisiblePlaces(t *testing.T) {
	h := start(t, newGatedFetcher())
	ctx := context.Background()

	want := map[places.Filter][]string{
		places.FilterAll:                 {"epicuro", "twiggy", "nuovo", "paranza", "nameless"},
		places.Filter(places.Bar):        {"epicuro", "twiggy", "nameless"},
		places.Filter(places.Cinema):     {"nuovo"},
		places.Filter(places.Restaurant): {"paranza"},
	}

	for f, ids := range want {
		snap, err := h.ctrl.SetCategoryFilter(ctx, f)
		require.NoError(t, err)

		got := make([]string, 0, len(snap.Visible))
		for _, p := range snap.Visible {
			got = append(got, p.ID)
		}
		assert.Equal(t, ids, got, string(f))
	}
}

func TestSelectShowsPopupBeforeFetch(t *testing.T) {
	h := start(t, newGatedFetcher("50a6c6b8e4b00084f2bda94e"))
	ctx := context.Background()

	snap, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)

	assert.True(t, snap.State.PopupVisible)
	require.NotNil(t, snap.State.Selected)
	assert.Equal(t, "Epicuro", snap.State.Selected.Name)
	assert.True(t, snap.State.PendingFetch)
	assert.Nil(t, snap.State.LikeCount)
	assert.Equal(t, FetchPending, snap.Phase)

	h.fetcher.expectCall(t, "50a6c6b8e4b00084f2bda94e")
}

func TestSelectEpicuroResolves(t *testing.T) {
	h := start(t, newGatedFetcher("50a6c6b8e4b00084f2bda94e"))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, "50a6c6b8e4b00084f2bda94e")
	h.fetcher.release("50a6c6b8e4b00084f2bda94e", "42", nil)

	res := h.nextResolution(t)
	assert.Equal(t, Applied, res.Outcome)

	snap, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.State.LikeCount)
	assert.Equal(t, "42", *snap.State.LikeCount)
	assert.Equal(t, "Epicuro", snap.State.Selected.Name)
	assert.False(t, snap.State.PendingFetch)
	assert.Equal(t, FetchResolved, snap.Phase)
}

func TestLookupMissIssuesNoFetch(t *testing.T) {
	h := start(t, newGatedFetcher())
	ctx := context.Background()

	snap, err := h.ctrl.SelectPlace(ctx, "nameless")
	require.NoError(t, err)
	assert.True(t, snap.State.PopupVisible)
	assert.False(t, snap.State.PendingFetch)
	assert.Equal(t, Selected, snap.Phase)

	select {
	case id := <-h.fetcher.calls:
		t.Fatalf("unexpected fetch for %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	snap, err = h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.State.LikeCount)
}

func TestStaleResponseDiscarded(t *testing.T) {
	const idA, idB = "50a6c6b8e4b00084f2bda94e", "4cdef8d9ffcf37041c741682"
	h := start(t, newGatedFetcher(idA, idB))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, idA)

	_, err = h.ctrl.SelectPlace(ctx, "nuovo")
	require.NoError(t, err)
	h.fetcher.expectCall(t, idB)

	h.fetcher.release(idA, "10", nil)
	res := h.nextResolution(t)
	assert.Equal(t, Stale, res.Outcome)
	assert.Equal(t, "epicuro", res.PlaceID)

	snap, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.State.LikeCount)
	assert.Equal(t, "nuovo", snap.State.Selected.ID)
	assert.True(t, snap.State.PendingFetch)

	h.fetcher.release(idB, "7", nil)
	res = h.nextResolution(t)
	assert.Equal(t, Applied, res.Outcome)

	snap, err = h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", snap.State.Likes())
}

func TestReselectSamePlaceRefetches(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)

	_, err = h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)

	// first reply belongs to the superseded token even though the place matches
	h.fetcher.release(id, "1", nil)
	assert.Equal(t, Stale, h.nextResolution(t).Outcome)

	h.fetcher.release(id, "2", nil)
	assert.Equal(t, Applied, h.nextResolution(t).Outcome)

	snap, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", snap.State.Likes())
}

func TestDismissThenLateResolution(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)

	snap, err := h.ctrl.DismissPopup(ctx)
	require.NoError(t, err)
	assert.False(t, snap.State.PopupVisible)
	assert.Nil(t, snap.State.Selected)

	h.fetcher.release(id, "42", nil)
	assert.Equal(t, Stale, h.nextResolution(t).Outcome)

	snap, err = h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.State.PopupVisible)
	assert.Nil(t, snap.State.LikeCount)
	assert.Equal(t, Idle, snap.Phase)
}

func TestDismissIsIdempotent(t *testing.T) {
	h := start(t, newGatedFetcher())
	ctx := context.Background()

	for range 3 {
		snap, err := h.ctrl.DismissPopup(ctx)
		require.NoError(t, err)
		assert.Equal(t, Idle, snap.Phase)
		assert.Equal(t, places.FilterAll, snap.State.Filter)
	}
}

func TestFilterClosesPopup(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)
	h.fetcher.release(id, "42", nil)
	require.Equal(t, Applied, h.nextResolution(t).Outcome)

	for _, f := range []places.Filter{places.Filter(places.Cinema), places.Filter(places.Cinema), places.FilterAll} {
		snap, err := h.ctrl.SetCategoryFilter(ctx, f)
		require.NoError(t, err)
		assert.False(t, snap.State.PopupVisible)
		assert.Nil(t, snap.State.Selected)
		// the last count is kept, only the popup closes
		assert.Equal(t, "42", snap.State.Likes())
	}
}

func TestFilterDuringFetchDiscardsResult(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)

	_, err = h.ctrl.SetCategoryFilter(ctx, places.Filter(places.Cinema))
	require.NoError(t, err)

	h.fetcher.release(id, "42", nil)
	assert.Equal(t, Stale, h.nextResolution(t).Outcome)

	snap, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, snap.State.PopupVisible)
	assert.Nil(t, snap.State.LikeCount)
}

func TestFetchErrorLeavesCountBlank(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	_, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	h.fetcher.expectCall(t, id)
	h.fetcher.release(id, "", &likes.FetchError{ExternalID: id, StatusCode: 500, Err: errors.New("boom")})

	res := h.nextResolution(t)
	assert.Equal(t, Failed, res.Outcome)

	snap, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snap.State.PopupVisible)
	assert.False(t, snap.State.PendingFetch)
	assert.Nil(t, snap.State.LikeCount)
	assert.Empty(t, snap.State.Likes())
}

func TestSelectUnknownPlace(t *testing.T) {
	h := start(t, newGatedFetcher())
	_, err := h.ctrl.SelectPlace(context.Background(), "nope")
	assert.ErrorIs(t, err, places.ErrUnknownPlace)
}

func TestStoppedController(t *testing.T) {
	ctrl := New(testCatalog(t), newGatedFetcher())
	ctx, cancel := context.WithCancel(context.Background())
	go ctrl.Run(ctx)
	cancel()
	<-ctrl.Done()

	_, err := ctrl.Snapshot(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}

func TestSnapshotDoesNotAliasState(t *testing.T) {
	const id = "50a6c6b8e4b00084f2bda94e"
	h := start(t, newGatedFetcher(id))
	ctx := context.Background()

	snap, err := h.ctrl.SelectPlace(ctx, "epicuro")
	require.NoError(t, err)
	snap.State.Selected.Name = "mutated"

	again, err := h.ctrl.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Epicuro", again.State.Selected.Name)
}
