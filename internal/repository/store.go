package repository

import (
	"context"
	"iter"

	"github.com/roach88/configstore/internal/model"
)

// ItemStore is the object store the client reads from.
type ItemStore interface {
	// StoredItems yields every stored item in strictly ascending key order.
	StoredItems(ctx context.Context) iter.Seq2[model.ItemRef, error]

	// Item fetches the content of ref. Fails with model.ErrCodeTagMismatch
	// when the stored content no longer has ref's tag.
	Item(ctx context.Context, ref model.ItemRef) (model.Item, error)

	// SingleItemRef looks up one exact key. A missing key returns false
	// and no error.
	SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error)
}

// ScanRequester produces the triggers that drive scans. A requester whose
// stream can end on an error also has an Err() error method, checked once
// the stream closes.
type ScanRequester interface {
	ScanRequests(ctx context.Context) (<-chan model.ScanRequest, error)
}
