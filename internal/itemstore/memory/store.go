// Package memory is an in-process item store.
package memory

import (
	"context"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/configstore/internal/itemstore"
	"github.com/roach88/configstore/internal/model"
)

type object struct {
	content string
	tag     string
}

// Store keeps items in a map under NFC keys; every method accepts keys in
// any normal form. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a store holding items, keyed by name.
func New(items map[string]string) *Store {
	s := &Store{objects: make(map[string]object)}
	for k, v := range items {
		s.Put(k, v)
	}
	return s
}

// Put stores content under key, tagging it by content.
func (s *Store) Put(key, content string) model.ItemRef {
	return s.PutTagged(key, content, itemstore.ContentTag([]byte(content)))
}

// PutTagged stores content under key with an explicit tag.
func (s *Store) PutTagged(key, content, tag string) model.ItemRef {
	key = itemstore.NormalizeKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{content: content, tag: tag}
	return model.ItemRef{Name: key, Tag: tag}
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, itemstore.NormalizeKey(key))
}

// Replace swaps the whole content of the store.
func (s *Store) Replace(items map[string]string) {
	fresh := New(items)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects = fresh.objects
}

func (s *Store) StoredItems(ctx context.Context) iter.Seq2[model.ItemRef, error] {
	return func(yield func(model.ItemRef, error) bool) {
		s.mu.RLock()
		keys := slices.Sorted(maps.Keys(s.objects))
		refs := make([]model.ItemRef, len(keys))
		for i, k := range keys {
			refs[i] = model.ItemRef{Name: k, Tag: s.objects[k].tag}
		}
		s.mu.RUnlock()

		for _, ref := range refs {
			if err := ctx.Err(); err != nil {
				yield(model.ItemRef{}, err)
				return
			}
			if !yield(ref, nil) {
				return
			}
		}
	}
}

func (s *Store) Item(ctx context.Context, ref model.ItemRef) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[itemstore.NormalizeKey(ref.Name)]
	if !ok {
		return model.Item{}, model.NewError(model.ErrCodeTagMismatch, "item %s no longer exists", ref.Name)
	}
	if obj.tag != ref.Tag {
		return model.Item{}, model.NewError(model.ErrCodeTagMismatch, "item %s has tag %s, requested %s", ref.Name, obj.tag, ref.Tag)
	}
	return model.Item{ItemRef: ref, Content: obj.content}, nil
}

func (s *Store) SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key = itemstore.NormalizeKey(key)
	obj, ok := s.objects[key]
	if !ok {
		return model.ItemRef{}, false, nil
	}
	return model.ItemRef{Name: key, Tag: obj.tag}, true, nil
}
