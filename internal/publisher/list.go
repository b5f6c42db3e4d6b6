package publisher

import (
	"errors"

	"github.com/danmuck/portagent/internal/packet"
)

// Result summarizes one fan-out. Outcomes holds, by publisher name, the
// result of every publisher whose filter accepted the packet: nil when
// delivered, the *PublishFailure otherwise.
type Result struct {
	Delivered int
	Failed    int
	Outcomes  map[string]error
}

// Outcome reports whether the named publisher took the packet and, if so,
// how delivery went.
func (r Result) Outcome(name string) (matched bool, err error) {
	err, matched = r.Outcomes[name]
	return matched, err
}

// List holds the active publishers in registration order.
type List struct {
	items []*Publisher
}

func NewList() *List {
	return &List{}
}

// Add registers p unless a publisher with an equal sink is already present.
func (l *List) Add(p *Publisher) error {
	if p == nil {
		return ErrNilPublisher
	}
	for _, existing := range l.items {
		if existing.Equal(p) {
			return ErrDuplicatePublisher
		}
	}
	l.items = append(l.items, p)
	return nil
}

// Remove drops p by identity.
func (l *List) Remove(p *Publisher) bool {
	for i, existing := range l.items {
		if existing == p {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every publisher.
func (l *List) Clear() {
	l.items = nil
}

func (l *List) Len() int { return len(l.items) }

// Publishers returns a snapshot in registration order.
func (l *List) Publishers() []*Publisher {
	return append([]*Publisher(nil), l.items...)
}

// Publish offers pkt to every publisher. A failing publisher never stops
// delivery to the rest; all failures are joined into the returned error.
func (l *List) Publish(pkt *packet.Packet) (Result, error) {
	res := Result{Outcomes: make(map[string]error)}
	var errs []error
	for _, p := range l.items {
		ok, err := p.Publish(pkt)
		if err != nil {
			res.Failed++
			res.Outcomes[p.Name()] = err
			errs = append(errs, err)
			continue
		}
		if ok {
			res.Delivered++
			res.Outcomes[p.Name()] = nil
		}
	}
	return res, errors.Join(errs...)
}
