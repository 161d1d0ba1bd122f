// Package pagination tracks limit/offset/hasMore state across incremental
// "load older" fetches of a chat's message history and merges fetched pages
// with previously loaded ones.
//
// The provider's history API paginates newest-first so agents see recent
// context fastest, but the console renders oldest-first. Normalize separates
// fetch order from display order; Merge prepends older pages in front of the
// already-loaded ascending list.
package pagination

// State is the per-chat pagination cursor. It is transient and never
// persisted; Offset only increases until a reset.
type State struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Update describes the outcome of one fetch. HasMore comes verbatim from
// the server, which is authoritative on whether more history exists.
type Update struct {
	Reset   bool
	HasMore bool
	// Limit overrides the page size when > 0.
	Limit int
}

// Entry is the minimal view of a message the controller needs: identity for
// de-duplication and timestamp for ordering.
type Entry interface {
	PaginationID() string
	PaginationTimestamp() int64
}

// NewState returns the initial state for a page size.
func NewState(limit int) State {
	return State{Limit: limit, Offset: 0, HasMore: false}
}

// Apply advances the cursor after a fetch that returned receivedCount
// entries. On reset the offset restarts from the received count; otherwise
// it accumulates. Negative counts are treated as zero.
func Apply(prev State, receivedCount int, u Update) State {
	if receivedCount < 0 {
		receivedCount = 0
	}

	next := State{Limit: prev.Limit, HasMore: u.HasMore}
	if u.Limit > 0 {
		next.Limit = u.Limit
	}
	if u.Reset {
		next.Offset = receivedCount
	} else {
		next.Offset = prev.Offset + receivedCount
	}
	return next
}

// Normalize reverses a newest-first page into ascending (oldest-first)
// order. The input slice is not mutated.
func Normalize[T any](fetched []T) []T {
	out := make([]T, len(fetched))
	for i, v := range fetched {
		out[len(fetched)-1-i] = v
	}
	return out
}

// Merge combines a previously loaded ascending list with one newly fetched
// newest-first page. On reset the fetched page replaces everything;
// otherwise the page is one step further back in history and is prepended.
// Entries already present by id are dropped from the fetched page: the
// loaded copy may carry realtime or optimistic updates a stale refetch
// would lose.
func Merge[T Entry](previous, fetched []T, reset bool) []T {
	page := Normalize(fetched)
	if reset {
		return dedupe(page)
	}

	seen := make(map[string]struct{}, len(previous))
	for _, e := range previous {
		seen[e.PaginationID()] = struct{}{}
	}

	merged := make([]T, 0, len(page)+len(previous))
	for _, e := range page {
		if _, dup := seen[e.PaginationID()]; dup {
			continue
		}
		seen[e.PaginationID()] = struct{}{}
		merged = append(merged, e)
	}
	return append(merged, previous...)
}

// Reconcile applies realtime or optimistic entries against an already
// loaded ascending list, keyed by id. A known id updates the element in
// place (last write wins on mutable fields); unknown ids append in
// timestamp order.
func Reconcile[T Entry](loaded []T, incoming []T) []T {
	updates := make(map[string]T, len(incoming))
	for _, e := range incoming {
		updates[e.PaginationID()] = e
	}

	out := make([]T, len(loaded))
	for i, e := range loaded {
		if upd, ok := updates[e.PaginationID()]; ok {
			out[i] = upd
			delete(updates, e.PaginationID())
		} else {
			out[i] = e
		}
	}

	for _, e := range incoming {
		if _, isNew := updates[e.PaginationID()]; isNew {
			out = insertByTimestamp(out, e)
			delete(updates, e.PaginationID())
		}
	}
	return out
}

func insertByTimestamp[T Entry](list []T, e T) []T {
	i := len(list)
	for i > 0 && list[i-1].PaginationTimestamp() > e.PaginationTimestamp() {
		i--
	}
	list = append(list, e)
	copy(list[i+1:], list[i:])
	list[i] = e
	return list
}

func dedupe[T Entry](list []T) []T {
	seen := make(map[string]struct{}, len(list))
	out := list[:0:0]
	for _, e := range list {
		if _, dup := seen[e.PaginationID()]; dup {
			continue
		}
		seen[e.PaginationID()] = struct{}{}
		out = append(out, e)
	}
	return out
}
