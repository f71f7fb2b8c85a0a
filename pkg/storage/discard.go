package storage

import (
	"context"
)

const backendDiscard = "discard"

// DiscardStore drops every payload.
type DiscardStore struct{}

// Discard is the shared DiscardStore.
var Discard = DiscardStore{}

// Save implements fetch.Saver.
func (DiscardStore) Save(_ context.Context, payload []byte, _ string) error {
	recordSave(backendDiscard, len(payload), nil)
	return nil
}
