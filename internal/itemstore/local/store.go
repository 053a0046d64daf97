// Package local serves items from a directory tree. Keys are paths
// relative to the root, slash separated.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/itemstore"
	"github.com/roach88/configstore/internal/model"
)

// Store reads items from files under a root directory. Tags are content
// fingerprints, so a file rewritten with identical bytes keeps its tag.
type Store struct {
	root   string
	names  itemstore.Keys
	logger *zap.SugaredLogger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Store) { s.logger = logger }
}

// New opens root, which must be an existing directory.
func New(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("open root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("open root: %s is not a directory", abs)
	}
	s := &Store{root: abs, logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string { return s.root }

// path locates key on disk under the name the file is stored with.
func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.names.Raw(key)))
}

// keys lists every regular file under the root as sorted NFC keys. Hidden
// files and directories are skipped.
func (s *Store) keys(ctx context.Context) ([]string, error) {
	listing := s.names.NewListing()
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != s.root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		if key, ok := listing.Add(filepath.ToSlash(rel)); !ok {
			s.logger.Warnw("file name collides with another after normalization", "key", key, "path", path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.root, err)
	}
	keys := listing.Commit()
	slices.Sort(keys)
	return keys, nil
}

func (s *Store) StoredItems(ctx context.Context) iter.Seq2[model.ItemRef, error] {
	return func(yield func(model.ItemRef, error) bool) {
		keys, err := s.keys(ctx)
		if err != nil {
			yield(model.ItemRef{}, err)
			return
		}
		for _, key := range keys {
			content, err := os.ReadFile(s.path(key))
			if errors.Is(err, fs.ErrNotExist) {
				// Removed since the walk.
				s.logger.Debugw("file vanished during scan", "key", key)
				continue
			}
			if err != nil {
				yield(model.ItemRef{}, fmt.Errorf("read %s: %w", key, err))
				return
			}
			if !yield(model.ItemRef{Name: key, Tag: itemstore.ContentTag(content)}, nil) {
				return
			}
		}
	}
}

func (s *Store) Item(ctx context.Context, ref model.ItemRef) (model.Item, error) {
	if err := ctx.Err(); err != nil {
		return model.Item{}, err
	}
	content, err := os.ReadFile(s.path(ref.Name))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Item{}, model.WrapError(model.ErrCodeTagMismatch, err, "item %s no longer exists", ref.Name)
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("read %s: %w", ref.Name, err)
	}
	if tag := itemstore.ContentTag(content); tag != ref.Tag {
		return model.Item{}, model.NewError(model.ErrCodeTagMismatch, "item %s has tag %s, requested %s", ref.Name, tag, ref.Tag)
	}
	return model.Item{ItemRef: ref, Content: string(content)}, nil
}

func (s *Store) SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.ItemRef{}, false, err
	}
	content, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return model.ItemRef{}, false, nil
	}
	if err != nil {
		return model.ItemRef{}, false, fmt.Errorf("read %s: %w", key, err)
	}
	return model.ItemRef{Name: itemstore.NormalizeKey(key), Tag: itemstore.ContentTag(content)}, true, nil
}
