// Package s3 serves items from an S3-compatible bucket. Keys are full
// object keys and tags are object ETags.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/cenkalti/backoff"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/roach88/configstore/internal/itemstore"
	"github.com/roach88/configstore/internal/model"
)

// DefaultListRetries bounds the retries of a failed listing.
const DefaultListRetries = 3

// Config locates the bucket.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Secure    bool
	// ListRetries is the number of retries after a failed listing.
	// Negative disables retries.
	ListRetries int
}

// objectAPI is the part of the S3 API the store uses.
type objectAPI interface {
	list(ctx context.Context, prefix string) <-chan minio.ObjectInfo
	get(ctx context.Context, key, etag string) ([]byte, error)
	stat(ctx context.Context, key string) (minio.ObjectInfo, error)
}

type minioAPI struct {
	client *minio.Client
	bucket string
}

func (m minioAPI) list(ctx context.Context, prefix string) <-chan minio.ObjectInfo {
	return m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
}

func (m minioAPI) get(ctx context.Context, key, etag string) ([]byte, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetMatchETag(etag); err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, opts)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (m minioAPI) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
}

// Store reads items from one bucket prefix.
type Store struct {
	api     objectAPI
	names   itemstore.Keys
	prefix  string
	retries int
	logger  *zap.SugaredLogger
}

// New connects to the bucket described by cfg. Without an access key,
// credentials are read from the standard AWS environment variables.
func New(cfg Config, logger *zap.SugaredLogger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 store: %w", err)
	}
	if !cfg.Secure {
		logger.Warnw("s3 store is not using TLS", "endpoint", cfg.Endpoint)
	}
	return newStore(minioAPI{client: client, bucket: cfg.Bucket}, cfg, logger), nil
}

func newStore(api objectAPI, cfg Config, logger *zap.SugaredLogger) *Store {
	retries := cfg.ListRetries
	if retries == 0 {
		retries = DefaultListRetries
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{api: api, prefix: cfg.Prefix, retries: max(retries, 0), logger: logger}
}

// listing reads the whole prefix into NFC keys, sorted. A failure part way
// restarts the listing, so a retried scan never yields a partial or repeated
// sequence.
func (s *Store) listing(ctx context.Context) ([]model.ItemRef, error) {
	var (
		refs    []model.ItemRef
		listing *itemstore.Listing
	)
	op := func() error {
		refs = refs[:0]
		listing = s.names.NewListing()
		for obj := range s.api.list(ctx, s.prefix) {
			if obj.Err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				s.logger.Warnw("listing failed", "prefix", s.prefix, "error", obj.Err)
				return obj.Err
			}
			if strings.HasSuffix(obj.Key, "/") {
				continue
			}
			key, ok := listing.Add(obj.Key)
			if !ok {
				s.logger.Warnw("object key collides with another after normalization", "key", key, "object", obj.Key)
				continue
			}
			refs = append(refs, model.ItemRef{Name: key, Tag: strings.Trim(obj.ETag, `"`)})
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.retries)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Err
		}
		return nil, fmt.Errorf("list s3://%s: %w", s.prefix, err)
	}
	listing.Commit()
	// S3 orders raw keys; normalization can move a key past its neighbours.
	slices.SortFunc(refs, func(a, b model.ItemRef) int { return strings.Compare(a.Name, b.Name) })
	return refs, nil
}

func (s *Store) StoredItems(ctx context.Context) iter.Seq2[model.ItemRef, error] {
	return func(yield func(model.ItemRef, error) bool) {
		refs, err := s.listing(ctx)
		if err != nil {
			yield(model.ItemRef{}, err)
			return
		}
		for _, ref := range refs {
			if !yield(ref, nil) {
				return
			}
		}
	}
}

func (s *Store) Item(ctx context.Context, ref model.ItemRef) (model.Item, error) {
	content, err := s.api.get(ctx, s.names.Raw(ref.Name), ref.Tag)
	if err != nil {
		return model.Item{}, mapError(ref, err)
	}
	return model.Item{ItemRef: ref, Content: string(content)}, nil
}

func (s *Store) SingleItemRef(ctx context.Context, key string) (model.ItemRef, bool, error) {
	info, err := s.api.stat(ctx, s.names.Raw(key))
	if err != nil {
		if isNotFound(err) {
			return model.ItemRef{}, false, nil
		}
		return model.ItemRef{}, false, fmt.Errorf("stat %s: %w", key, err)
	}
	return model.ItemRef{Name: itemstore.NormalizeKey(key), Tag: strings.Trim(info.ETag, `"`)}, true, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

// mapError turns a failed conditional read into a tag mismatch. The object
// was replaced or removed after the listing that produced ref.
func mapError(ref model.ItemRef, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "PreconditionFailed" || resp.StatusCode == http.StatusPreconditionFailed:
		return model.WrapError(model.ErrCodeTagMismatch, err, "item %s changed since tag %s", ref.Name, ref.Tag)
	case isNotFound(err):
		return model.WrapError(model.ErrCodeTagMismatch, err, "item %s no longer exists", ref.Name)
	}
	return fmt.Errorf("get %s: %w", ref.Name, err)
}
