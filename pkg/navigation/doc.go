// Package navigation keeps the browsing history of a GIF source and decides,
// for every user action, whether to serve an item that was already fetched
// or to ask the remote API for more.
//
// A Navigator owns an append-only list of fetched items and a cursor into
// it. Stepping forward past the end issues a fetch; stepping back never
// does. Every transition is published as a State, a tagged union of
// Loading, Success and Error that a presentation layer renders directly.
//
// # Basic Usage
//
//	apiClient, _ := client.New(client.DefaultConfig(redisClient, "gifctl/1.0"))
//	nav := navigation.New(navigation.NewSource(apiClient, gif.SectionTop), logger)
//	defer nav.Close()
//
//	states, unsubscribe := nav.Subscribe()
//	defer unsubscribe()
//
//	nav.Initialize()
//	for state := range states {
//		switch state.Kind {
//		case navigation.KindLoading:
//			// show a spinner, disable "next"
//		case navigation.KindSuccess:
//			// render state.Item
//		case navigation.KindError:
//			// render state.Message, offer refresh
//		}
//	}
//
// # Concurrency
//
// At most one fetch is outstanding per Navigator. While it runs, Next,
// Previous, Refresh and Initialize are ignored, which mirrors a UI that
// disables its controls during Loading. Fetch results are reconciled under
// the Navigator's lock, so callers may invoke navigation methods from any
// goroutine.
//
// # Metrics
//
//   - devlife_navigation_transitions_total{state} - Published states by kind
//   - devlife_navigation_fetches_total{source, outcome} - Remote fetches by result
package navigation
