// Package fetch defines the data model shared by every stage of the batch
// fetch pipeline: identifiers, tagged outcomes, statuses and the transport and
// persistence collaborators.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Identifier names one unit of fetch work (e.g. a country code).
type Identifier string

// ErrNotFound is returned by a Transport when the remote resource does not exist.
var ErrNotFound = errors.New("not found")

// Transport retrieves one resource per identifier.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Fetch returns the payload for id. An error matching ErrNotFound means
	// the resource does not exist; any other error is a transport failure.
	Fetch(ctx context.Context, id Identifier) ([]byte, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, id Identifier) ([]byte, error)

// Fetch calls f(ctx, id).
func (f TransportFunc) Fetch(ctx context.Context, id Identifier) ([]byte, error) {
	return f(ctx, id)
}

// Saver persists a successfully fetched payload under name.
type Saver interface {
	Save(ctx context.Context, payload []byte, name string) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, payload []byte, name string) error

// Save calls f(ctx, payload, name).
func (f SaverFunc) Save(ctx context.Context, payload []byte, name string) error {
	return f(ctx, payload, name)
}

type kind uint8

const (
	kindOK kind = iota + 1
	kindNotFound
	kindTransportError
)

// Outcome is the tagged result of one fetch attempt. The zero value is not a
// valid outcome; use Ok, NotFound or Failed.
type Outcome struct {
	kind    kind
	payload []byte
	err     *TransportError
}

// Ok returns a successful outcome carrying payload.
func Ok(payload []byte) Outcome {
	return Outcome{kind: kindOK, payload: payload}
}

// NotFound returns the outcome for a resource that does not exist.
func NotFound() Outcome {
	return Outcome{kind: kindNotFound}
}

// Failed wraps cause as a TransportError outcome for id.
func Failed(id Identifier, cause error) Outcome {
	var te *TransportError
	if !errors.As(cause, &te) {
		te = &TransportError{ID: id, Cause: cause}
	}
	return Outcome{kind: kindTransportError, err: te}
}

// IsOK reports whether the outcome carries a payload.
func (o Outcome) IsOK() bool { return o.kind == kindOK }

// IsNotFound reports whether the outcome is NotFound.
func (o Outcome) IsNotFound() bool { return o.kind == kindNotFound }

// Payload returns the fetched bytes, nil unless IsOK.
func (o Outcome) Payload() []byte { return o.payload }

// Err returns the transport error, nil unless the outcome failed.
func (o Outcome) Err() *TransportError { return o.err }

// Detail returns the human-readable error message for a failed outcome and an
// empty string otherwise.
func (o Outcome) Detail() string {
	if o.err == nil {
		return ""
	}
	return o.err.Detail()
}

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o.kind {
	case kindOK:
		return fmt.Sprintf("Ok(%d bytes)", len(o.payload))
	case kindNotFound:
		return "NotFound"
	case kindTransportError:
		return fmt.Sprintf("TransportError(%s)", o.Detail())
	default:
		return "Invalid"
	}
}
