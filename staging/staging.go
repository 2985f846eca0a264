// Package staging hands audio chunks to providers that require a
// fetchable URL instead of inline bytes. Objects are content-addressed
// by SHA-256, so re-submitting identical bytes across retries returns
// the existing object instead of re-uploading.
package staging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sync"
	"time"

	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/storage"
)

// Object is a staged chunk's representation in the blob store.
type Object struct {
	// Key is the blob path, derived from the content hash.
	Key string `json:"key"`
	// Size is the object size in bytes.
	Size int64 `json:"size"`
	// Hash is the hex-encoded SHA-256 of the content.
	Hash string `json:"hash"`
	// ExpiresAt is when the object may be garbage collected.
	ExpiresAt time.Time `json:"expires_at"`
}

// Config controls staging behavior.
type Config struct {
	// Prefix namespaces all keys, typically "jobs/<job-id>".
	Prefix string `mapstructure:"prefix"`
	// TTL is how long staged objects stay fetchable. Providers with an
	// asynchronous completion model need a replay window at least as
	// long as their polling timeout.
	TTL time.Duration `mapstructure:"ttl"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
}

// Store stages chunks in a blob store. One Store serves one job; its
// Cleanup removes everything the job uploaded.
type Store struct {
	blobs storage.Storage
	cfg   Config
	log   *logger.Logger

	mu    sync.Mutex
	index map[string]Object // hash -> staged object
}

// NewStore creates a staging store on top of the given blob storage.
func NewStore(blobs storage.Storage, cfg Config, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		blobs: blobs,
		cfg:   cfg,
		log:   log.WithComponent("staging"),
		index: make(map[string]Object),
	}
}

// Put uploads data and returns its staged object. Idempotent by content
// hash: identical bytes yield the same key with no second upload.
// Failures are retryable StagingErrors.
func (s *Store) Put(ctx context.Context, data []byte) (Object, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	if obj, ok := s.index[hash]; ok {
		s.mu.Unlock()
		s.log.Debug("chunk already staged", logger.Fields("key", obj.Key))
		return obj, nil
	}
	s.mu.Unlock()

	key := path.Join(s.cfg.Prefix, hash)

	// The index only covers this process; a retry after a crash may find
	// the bytes already in the blob store.
	if ok, err := s.blobs.Exists(ctx, key); err == nil && ok {
		obj := s.remember(hash, key, int64(len(data)))
		return obj, nil
	}

	if err := s.blobs.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		return Object{}, errors.StagingFailed(key, err)
	}

	obj := s.remember(hash, key, int64(len(data)))
	s.log.Debug("chunk staged", logger.Fields("key", key, "size", obj.Size))
	return obj, nil
}

// URL returns a fetchable reference for a staged object. Backends that
// support signing return a pre-signed URL bounded by the TTL.
func (s *Store) URL(ctx context.Context, obj Object) (string, error) {
	if signer, ok := s.blobs.(storage.SignedURLProvider); ok {
		u, err := signer.SignedURL(ctx, obj.Key, s.cfg.TTL)
		if err != nil {
			return "", errors.StagingFailed(obj.Key, err)
		}
		return u, nil
	}
	u, err := s.blobs.URL(ctx, obj.Key)
	if err != nil {
		return "", errors.StagingFailed(obj.Key, err)
	}
	return u, nil
}

// Delete removes one staged object.
func (s *Store) Delete(ctx context.Context, obj Object) error {
	if err := s.blobs.Delete(ctx, obj.Key); err != nil {
		return errors.StagingFailed(obj.Key, err)
	}
	s.mu.Lock()
	delete(s.index, obj.Hash)
	s.mu.Unlock()
	return nil
}

// Cleanup removes every object staged through this store. Called after
// job completion; objects left behind by a crash expire via TTL.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	objects := make([]Object, 0, len(s.index))
	for _, obj := range s.index {
		objects = append(objects, obj)
	}
	s.mu.Unlock()

	var lastErr error
	for _, obj := range objects {
		if err := s.Delete(ctx, obj); err != nil {
			s.log.Warn("cleanup failed for staged object", logger.Fields("key", obj.Key, logger.FieldError, err.Error()))
			lastErr = err
		}
	}
	return lastErr
}

// Count returns how many distinct objects this store has staged.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *Store) remember(hash, key string, size int64) Object {
	obj := Object{
		Key:       key,
		Size:      size,
		Hash:      hash,
		ExpiresAt: time.Now().Add(s.cfg.TTL),
	}
	s.mu.Lock()
	s.index[hash] = obj
	s.mu.Unlock()
	return obj
}
