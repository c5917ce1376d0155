package navigation

import (
	"context"
	"errors"
	"sync"

	"github.com/Sternrassler/devlife-client/pkg/gif"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for navigation.
var (
	navigationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devlife_navigation_transitions_total",
		Help: "Total navigation states published by kind",
	}, []string{"state"})

	navigationFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devlife_navigation_fetches_total",
		Help: "Total navigation fetches by source and outcome",
	}, []string{"source", "outcome"})
)

// subscriberBuffer is the number of undelivered states kept per subscriber.
const subscriberBuffer = 16

// Navigator is the navigation cache of a single source.
type Navigator struct {
	source Source
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	items       []gif.Item
	cursor      int
	nextPage    int
	lastWasFail bool
	current     *gif.Item
	lastErr     error
	fetching    bool
	closed      bool

	state       State
	hasState    bool
	subscribers map[int]chan State
	nextSubID   int
}

// New creates a Navigator with nothing loaded.
func New(source Source, logger zerolog.Logger) *Navigator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Navigator{
		source:      source,
		logger:      logger.With().Str("source", source.Name()).Logger(),
		ctx:         ctx,
		cancel:      cancel,
		cursor:      -1,
		subscribers: make(map[int]chan State),
	}
}

// Initialize re-emits the current item, or fetches the first one.
func (n *Navigator) Initialize() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.acceptAction("initialize") {
		return
	}
	if n.current != nil {
		n.publish(Success(*n.current, n.hasPrevious()))
		return
	}
	n.next()
}

// Next moves to the following item, fetching more when the history is
// exhausted.
func (n *Navigator) Next() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.acceptAction("next") {
		return
	}
	n.next()
}

// Previous moves back one item. It does nothing when HasPrevious is false.
func (n *Navigator) Previous() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.acceptAction("previous") || !n.hasPrevious() {
		return
	}

	// A failed fetch consumed a step without adding an item, so the cursor
	// already points at the item to go back to.
	if !n.lastWasFail {
		n.cursor--
	}
	n.lastWasFail = false
	n.setCurrent(n.cursor)
	n.publishNormal()
}

// Refresh retries the fetch when nothing is displayed, otherwise it
// re-emits the current item without touching the network.
func (n *Navigator) Refresh() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.acceptAction("refresh") {
		return
	}
	if n.current == nil {
		n.startFetch()
		return
	}
	n.publishNormal()
}

// HasPrevious reports whether Previous would move.
func (n *Navigator) HasPrevious() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hasPrevious()
}

// Busy reports whether a fetch is outstanding.
func (n *Navigator) Busy() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fetching
}

// State returns the most recently published state.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Len returns the number of items fetched so far.
func (n *Navigator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items)
}

// NextPage returns the page token of the next fetch.
func (n *Navigator) NextPage() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.nextPage
}

// LastError returns the error of the most recent failed fetch, or nil.
func (n *Navigator) LastError() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr
}

// Subscribe returns a channel receiving every published state, starting
// with the latest one if any. A subscriber that falls behind loses its
// oldest states, never the latest. The returned func unsubscribes.
func (n *Navigator) Subscribe() (<-chan State, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan State, subscriberBuffer)
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextSubID
	n.nextSubID++
	n.subscribers[id] = ch
	if n.hasState {
		ch <- n.state
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if sub, ok := n.subscribers[id]; ok {
				delete(n.subscribers, id)
				close(sub)
			}
		})
	}
}

// Close cancels an outstanding fetch and closes all subscriptions.
// A fetch that still completes is reconciled but nobody observes it.
func (n *Navigator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	for id, ch := range n.subscribers {
		delete(n.subscribers, id)
		close(ch)
	}
	n.mu.Unlock()

	n.cancel()
	n.wg.Wait()
}

func (n *Navigator) acceptAction(action string) bool {
	if n.closed {
		return false
	}
	if n.fetching {
		n.logger.Debug().Str("action", action).Msg("Ignoring action while fetch is outstanding")
		return false
	}
	return true
}

func (n *Navigator) next() {
	if n.hasNext() {
		n.cursor++
		n.setCurrent(n.cursor)
		n.publishNormal()
		return
	}
	n.startFetch()
}

func (n *Navigator) hasPrevious() bool {
	return n.cursor > 0 && len(n.items) > 0
}

func (n *Navigator) hasNext() bool {
	return n.cursor < len(n.items)-1
}

func (n *Navigator) setCurrent(index int) {
	item := n.items[index]
	n.current = &item
}

func (n *Navigator) startFetch() {
	n.fetching = true
	n.publish(Loading())

	token := n.nextPage
	n.logger.Debug().Int("page", token).Msg("Fetching items")

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		items, err := n.source.Fetch(n.ctx, token)
		n.reconcile(token, items, err)
	}()
}

func (n *Navigator) reconcile(token int, items []gif.Item, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.fetching = false
	name := n.source.Name()

	switch {
	case errors.Is(err, ErrEmptyCollection) || (err == nil && len(items) == 0):
		navigationFetchesTotal.WithLabelValues(name, "empty").Inc()
		n.logger.Info().Int("page", token).Msg("Source has no more items")
		n.publish(Failure(MessageEmptyCollection, n.hasPrevious()))

	case err != nil:
		navigationFetchesTotal.WithLabelValues(name, "failure").Inc()
		failure := &FetchFailure{Source: name, Err: err}
		n.logger.Warn().Err(err).Int("page", token).Msg("Fetch failed")
		n.lastErr = failure
		n.lastWasFail = true
		n.current = nil
		n.publish(Failure(failure.Error(), n.hasPrevious()))

	default:
		navigationFetchesTotal.WithLabelValues(name, "success").Inc()
		first := len(n.items)
		n.items = append(n.items, items...)
		n.lastWasFail = false
		n.lastErr = nil
		n.cursor = first
		n.setCurrent(first)
		if n.source.Paged() {
			n.nextPage = token + 1
		}
		n.logger.Debug().
			Int("page", token).
			Int("fetched", len(items)).
			Int("total", len(n.items)).
			Msg("Fetched items")
		n.publishNormal()
	}
}

func (n *Navigator) publishNormal() {
	if n.cursor < 0 || n.current == nil {
		n.publish(Failure(MessageUnknown, n.hasPrevious()))
		return
	}
	n.publish(Success(*n.current, n.hasPrevious()))
}

// publish must be called with n.mu held.
func (n *Navigator) publish(state State) {
	n.state = state
	n.hasState = true
	navigationTransitionsTotal.WithLabelValues(state.Kind.String()).Inc()

	for id, ch := range n.subscribers {
		select {
		case ch <- state:
			continue
		default:
		}

		// Only publish sends, so after dropping the oldest state the
		// newest one fits.
		select {
		case dropped := <-ch:
			n.logger.Debug().Int("subscriber", id).Str("state", dropped.String()).Msg("Subscriber behind, dropping oldest state")
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}
