package publisher

import (
	"errors"
	"fmt"

	"github.com/danmuck/portagent/internal/packet"
)

var (
	ErrNoSink             = errors.New("publisher: no sink configured")
	ErrDuplicatePublisher = errors.New("publisher: sink already has a publisher")
	ErrNilPublisher       = errors.New("publisher: nil publisher")
)

// PublishFailure reports a packet the publisher accepted but could not deliver.
type PublishFailure struct {
	Publisher string
	Type      packet.Type
	Sink      string
	Err       error
}

func (e *PublishFailure) Error() string {
	return fmt.Sprintf("publisher %s: publish %s to %s: %v", e.Publisher, e.Type, e.Sink, e.Err)
}

func (e *PublishFailure) Unwrap() error {
	return e.Err
}
