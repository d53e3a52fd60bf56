package compositor

import "slices"

// Token identifies a subscription so that it can be removed.
type Token uint64

type subscriber[T any] struct {
	token Token
	f     func(T)
}

// event is a list of subscribers that are called, in subscription
// order, when the event is emitted.
type event[T any] struct {
	next Token
	subs []subscriber[T]
}

func (e *event[T]) subscribe(f func(T)) Token {
	e.next++
	e.subs = append(e.subs, subscriber[T]{token: e.next, f: f})
	return e.next
}

func (e *event[T]) unsubscribe(t Token) {
	e.subs = slices.DeleteFunc(e.subs, func(s subscriber[T]) bool { return s.token == t })
}

func (e *event[T]) subscribed(t Token) bool {
	return slices.ContainsFunc(e.subs, func(s subscriber[T]) bool { return s.token == t })
}

// emit calls every subscriber. Subscribers that are removed by an
// earlier subscriber during the same emit are skipped.
func (e *event[T]) emit(v T) {
	snapshot := slices.Clone(e.subs)
	for _, s := range snapshot {
		if !e.subscribed(s.token) {
			continue
		}
		s.f(v)
	}
}
