package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	items []gif.Item
	err   error
}

// scriptedSource replays queued results in order and records the tokens it
// was asked for.
type scriptedSource struct {
	paged bool

	mu      sync.Mutex
	results []fetchResult
	tokens  []int
	gate    chan struct{}
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Paged() bool { return s.paged }

func (s *scriptedSource) Fetch(ctx context.Context, token int) ([]gif.Item, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	if len(s.results) == 0 {
		return nil, errors.New("no scripted result")
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.items, r.err
}

func (s *scriptedSource) push(items []gif.Item, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, fetchResult{items: items, err: err})
}

func (s *scriptedSource) calls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.tokens...)
}

func item(name string) gif.Item {
	return gif.Item{GifURL: "http://static/" + name + ".gif", Author: "author-" + name, Description: name}
}

func items(names ...string) []gif.Item {
	out := make([]gif.Item, 0, len(names))
	for _, name := range names {
		out = append(out, item(name))
	}
	return out
}

func newTestNavigator(t *testing.T, source Source) (*Navigator, <-chan State) {
	t.Helper()
	nav := New(source, zerolog.Nop())
	states, unsubscribe := nav.Subscribe()
	t.Cleanup(func() {
		unsubscribe()
		nav.Close()
	})
	return nav, states
}

func nextState(t *testing.T, states <-chan State) State {
	t.Helper()
	select {
	case s, ok := <-states:
		require.True(t, ok, "subscription closed")
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
		return State{}
	}
}

func expectSuccess(t *testing.T, states <-chan State, want gif.Item, hasPrevious bool) {
	t.Helper()
	s := nextState(t, states)
	require.Equal(t, KindSuccess, s.Kind, "got %s", s)
	assert.Equal(t, want, s.Item)
	assert.Equal(t, hasPrevious, s.HasPrevious)
}

func expectLoading(t *testing.T, states <-chan State) {
	t.Helper()
	s := nextState(t, states)
	require.Equal(t, KindLoading, s.Kind, "got %s", s)
}

func expectError(t *testing.T, states <-chan State, hasPrevious bool) State {
	t.Helper()
	s := nextState(t, states)
	require.Equal(t, KindError, s.Kind, "got %s", s)
	assert.Equal(t, hasPrevious, s.HasPrevious)
	return s
}

func expectNoState(t *testing.T, states <-chan State) {
	t.Helper()
	select {
	case s := <-states:
		t.Fatalf("unexpected state %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNavigator_PagedScenario(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B", "C"), nil)
	source.push(items("D"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)

	nav.Next()
	expectSuccess(t, states, item("B"), true)

	nav.Next()
	expectSuccess(t, states, item("C"), true)

	nav.Next()
	expectLoading(t, states)
	expectSuccess(t, states, item("D"), true)

	assert.Equal(t, []int{0, 1}, source.calls())
	assert.Equal(t, 2, nav.NextPage())
	assert.Equal(t, 4, nav.Len())
}

func TestNavigator_RandomVariantIgnoresPageToken(t *testing.T) {
	source := &scriptedSource{paged: false}
	source.push(items("A"), nil)
	source.push(items("B"), nil)
	source.push(items("C"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)

	nav.Next()
	expectLoading(t, states)
	expectSuccess(t, states, item("B"), true)

	nav.Next()
	expectLoading(t, states)
	expectSuccess(t, states, item("C"), true)

	assert.Equal(t, []int{0, 0, 0}, source.calls())
	assert.Equal(t, 0, nav.NextPage())
}

func TestNavigator_NextEmitsFetchOrder(t *testing.T) {
	source := &scriptedSource{paged: true}
	pages := [][]gif.Item{items("1", "2"), items("3"), items("4", "5", "6")}
	for _, page := range pages {
		source.push(page, nil)
	}
	nav, states := newTestNavigator(t, source)

	var want []gif.Item
	for _, page := range pages {
		want = append(want, page...)
	}

	var got []gif.Item
	for len(got) < len(want) {
		nav.Next()
		s := nextState(t, states)
		if s.Kind == KindLoading {
			s = nextState(t, states)
		}
		require.Equal(t, KindSuccess, s.Kind, "got %s", s)
		got = append(got, s.Item)
	}

	assert.Equal(t, want, got)
}

func TestNavigator_PreviousStepsBack(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B", "C"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)

	// No previous item yet.
	nav.Previous()
	expectNoState(t, states)

	nav.Next()
	expectSuccess(t, states, item("B"), true)
	nav.Next()
	expectSuccess(t, states, item("C"), true)

	nav.Previous()
	expectSuccess(t, states, item("B"), true)
	nav.Previous()
	expectSuccess(t, states, item("A"), false)
	assert.False(t, nav.HasPrevious())

	// Going forward again replays history without fetching.
	nav.Next()
	expectSuccess(t, states, item("B"), true)
	assert.Equal(t, []int{0}, source.calls())
}

func TestNavigator_PreviousAfterFailureDoesNotSkip(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B"), nil)
	source.push(nil, errors.New("dial tcp: connection refused"))
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)
	nav.Next()
	expectSuccess(t, states, item("B"), true)

	nav.Next()
	expectLoading(t, states)
	failed := expectError(t, states, true)
	assert.Contains(t, failed.Message, "connection refused")

	var failure *FetchFailure
	require.ErrorAs(t, nav.LastError(), &failure)
	assert.Equal(t, "scripted", failure.Source)
	assert.Equal(t, 1, nav.NextPage(), "failed fetch must not advance the page token")

	// One step back lands on the last successful item, B.
	nav.Previous()
	expectSuccess(t, states, item("B"), true)

	nav.Previous()
	expectSuccess(t, states, item("A"), false)
}

func TestNavigator_RefreshIsIdempotentWhenLoaded(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)
	nav.Next()
	expectSuccess(t, states, item("B"), true)

	for i := 0; i < 3; i++ {
		nav.Refresh()
		expectSuccess(t, states, item("B"), true)
	}

	assert.Equal(t, []int{0}, source.calls())
}

func TestNavigator_RefreshRetriesAfterFailure(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(nil, errors.New("timeout"))
	source.push(items("A"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectError(t, states, false)

	nav.Refresh()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)

	assert.Equal(t, []int{0, 0}, source.calls())
	assert.NoError(t, nav.LastError())
}

func TestNavigator_FailureOnFirstInitialize(t *testing.T) {
	source := &scriptedSource{paged: false}
	source.push(nil, errors.New("no route to host"))
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	s := expectError(t, states, false)
	assert.Equal(t, "connection error: no route to host", s.Message)

	nav.Previous()
	expectNoState(t, states)
	assert.False(t, nav.HasPrevious())
}

func TestNavigator_EmptyCollectionLeavesStateUntouched(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B"), nil)
	source.push([]gif.Item{}, nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)
	nav.Next()
	expectSuccess(t, states, item("B"), true)

	nav.Next()
	expectLoading(t, states)
	s := expectError(t, states, true)
	assert.Equal(t, MessageEmptyCollection, s.Message)

	assert.Equal(t, 2, nav.Len())
	assert.Equal(t, 1, nav.NextPage())
	assert.NoError(t, nav.LastError())

	// The current item survives, so refresh re-emits it without fetching.
	nav.Refresh()
	expectSuccess(t, states, item("B"), true)
	assert.Equal(t, []int{0, 1}, source.calls())
}

func TestNavigator_EmptyCollectionErrorFromSource(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(nil, fmt.Errorf("page 3: %w", ErrEmptyCollection))
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	s := expectError(t, states, false)
	assert.Equal(t, MessageEmptyCollection, s.Message)
	assert.Equal(t, 0, nav.NextPage())
}

func TestNavigator_InitializeReplaysCurrent(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A", "B"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)
	nav.Next()
	expectSuccess(t, states, item("B"), true)

	nav.Initialize()
	expectSuccess(t, states, item("B"), true)
	assert.Equal(t, []int{0}, source.calls())
}

func TestNavigator_IgnoresActionsWhileFetching(t *testing.T) {
	source := &scriptedSource{paged: true, gate: make(chan struct{})}
	source.push(items("A"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	assert.True(t, nav.Busy())

	nav.Next()
	nav.Refresh()
	nav.Initialize()
	nav.Previous()
	expectNoState(t, states)

	close(source.gate)
	expectSuccess(t, states, item("A"), false)
	assert.False(t, nav.Busy())
	assert.Equal(t, []int{0}, source.calls())
}

func TestNavigator_SubscribeReplaysLatest(t *testing.T) {
	source := &scriptedSource{paged: true}
	source.push(items("A"), nil)
	nav, states := newTestNavigator(t, source)

	nav.Initialize()
	expectLoading(t, states)
	expectSuccess(t, states, item("A"), false)

	late, unsubscribe := nav.Subscribe()
	defer unsubscribe()
	expectSuccess(t, late, item("A"), false)
	assert.Equal(t, KindSuccess, nav.State().Kind)
}

func TestNavigator_CloseEndsSubscriptions(t *testing.T) {
	source := &scriptedSource{paged: true, gate: make(chan struct{})}
	nav := New(source, zerolog.Nop())
	states, unsubscribe := nav.Subscribe()
	defer unsubscribe()

	nav.Initialize()
	expectLoading(t, states)

	nav.Close()

	_, ok := <-states
	assert.False(t, ok)

	// Actions on a closed navigator are no-ops.
	nav.Next()
	assert.False(t, nav.Busy())
}

func TestNavigator_UnknownErrorWithoutCursor(t *testing.T) {
	nav := New(&scriptedSource{}, zerolog.Nop())
	defer nav.Close()

	nav.mu.Lock()
	nav.publishNormal()
	nav.mu.Unlock()

	s := nav.State()
	assert.Equal(t, KindError, s.Kind)
	assert.Equal(t, MessageUnknown, s.Message)
	assert.False(t, s.HasPrevious)
}

func TestNavigator_SlowSubscriberSeesLatest(t *testing.T) {
	names := make([]string, 2*subscriberBuffer)
	for i := range names {
		names[i] = fmt.Sprintf("g%02d", i)
	}
	source := &scriptedSource{paged: true}
	source.push(items(names...), nil)

	nav := New(source, zerolog.Nop())
	defer nav.Close()
	states, unsubscribe := nav.Subscribe()
	defer unsubscribe()

	nav.Initialize()
	require.Eventually(t, func() bool { return !nav.Busy() }, 2*time.Second, 5*time.Millisecond)
	for range len(names) - 1 {
		nav.Next()
	}

	want := nav.State()
	require.Equal(t, KindSuccess, want.Kind)
	assert.Equal(t, item(names[len(names)-1]), want.Item)

	var last State
	received := 0
	for len(states) > 0 {
		last = <-states
		received++
	}
	assert.Equal(t, subscriberBuffer, received)
	assert.Equal(t, want, last)
}
