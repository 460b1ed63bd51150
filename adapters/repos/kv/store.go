//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	enterrors "github.com/weaviate/bytebufferpool/entities/errors"
	"github.com/weaviate/bytebufferpool/usecases/byte_operations"
	"github.com/weaviate/bytebufferpool/usecases/bytebuffer"
)

var ErrNotFound = errors.New("key not found")

// Key is a composite key, its parts are encoded with a length indicator each.
type Key [][]byte

// Len is the encoded size of the key.
func (k Key) Len() int {
	return byte_operations.CompositeKeyLen(k...)
}

type Config struct {
	Bucket string
	// AcquireTimeout bounds a single wait for an exhausted size class.
	AcquireTimeout time.Duration
	// MaxRetries is the number of additional attempts after a timed out
	// acquire. Other errors are never retried.
	MaxRetries           uint64
	RetryInitialInterval time.Duration
	// InitialValueCapacity is the first guess for the encoded value size.
	InitialValueCapacity int
}

func DefaultConfig() Config {
	return Config{
		Bucket:               "objects",
		AcquireTimeout:       time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 50 * time.Millisecond,
		InitialValueCapacity: 1000,
	}
}

// Store is a bbolt backed key/value store. All keys and values pass through
// buffers from the pool on their way into and out of the database.
type Store struct {
	dir    string
	config Config
	pool   *bytebuffer.BufferPool
	logger logrus.FieldLogger
	db     *bolt.DB
}

// NewStore returns a new store. Call the Open() method to open the underlying
// DB. To free the resources, call the Close() method.
func NewStore(dir string, config Config, pool *bytebuffer.BufferPool,
	logger logrus.FieldLogger,
) *Store {
	return &Store{
		dir:    dir,
		config: config,
		pool:   pool,
		logger: logger.WithField("component", "kv_store"),
	}
}

func (s *Store) Open() error {
	if err := os.MkdirAll(s.dir, 0o777); err != nil {
		return fmt.Errorf("create root directory %q: %w", s.dir, err)
	}

	path := filepath.Join(s.dir, "kv.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(s.config.Bucket))
		return err
	}); err != nil {
		db.Close()
		return fmt.Errorf("create bucket %q: %w", s.config.Bucket, err)
	}

	s.db = db
	s.logger.WithField("action", "kv_store_open").WithField("path", path).Debug("opened store")
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	s.db = nil
	return nil
}

// Put encodes value with msgpack into a growable pooled output and stores it
// under key.
func (s *Store) Put(ctx context.Context, key Key, value any) error {
	return s.withRetry(ctx, "put", func(ctx context.Context) error {
		keyBuf, err := s.pool.Acquire(ctx, key.Len())
		if err != nil {
			return fmt.Errorf("acquire key buffer: %w", err)
		}
		defer keyBuf.Release()

		if err := byte_operations.New(keyBuf.Buffer()).WriteCompositeKey(key...); err != nil {
			return fmt.Errorf("encode key: %w", err)
		}

		out, err := bytebuffer.NewGrowableBufferOutput(ctx, s.pool, s.config.InitialValueCapacity)
		if err != nil {
			return fmt.Errorf("create value output: %w", err)
		}
		defer out.Close()

		if err := msgpack.NewEncoder(out).Encode(value); err != nil {
			return fmt.Errorf("encode value: %w", err)
		}

		return s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket([]byte(s.config.Bucket)).Put(keyBuf.Buffer().Bytes(), out.Bytes())
		})
	})
}

// PutRaw stores an already encoded value. Key and value are staged in a
// buffer pair from the pool.
func (s *Store) PutRaw(ctx context.Context, key Key, value []byte) error {
	return s.withRetry(ctx, "put_raw", func(ctx context.Context) error {
		return s.pool.WithBufferPair(ctx, key.Len(), len(value), func(keyBuf, valueBuf *bytebuffer.Buffer) error {
			if err := byte_operations.New(keyBuf).WriteCompositeKey(key...); err != nil {
				return fmt.Errorf("encode key: %w", err)
			}
			if _, err := valueBuf.Write(value); err != nil {
				return fmt.Errorf("stage value: %w", err)
			}

			return s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket([]byte(s.config.Bucket)).Put(keyBuf.Bytes(), valueBuf.Bytes())
			})
		})
	})
}

// Get decodes the value stored under key into out. It returns ErrNotFound if
// there is no such key.
func (s *Store) Get(ctx context.Context, key Key, out any) error {
	return s.GetRaw(ctx, key, func(value []byte) error {
		if err := msgpack.Unmarshal(value, out); err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		return nil
	})
}

// GetRaw copies the value stored under key into a pooled buffer and passes
// it to fn. The slice is only valid until fn returns.
func (s *Store) GetRaw(ctx context.Context, key Key, fn func(value []byte) error) error {
	return s.withRetry(ctx, "get", func(ctx context.Context) error {
		return s.pool.WithBuffer(ctx, key.Len(), func(keyBuf *bytebuffer.Buffer) error {
			if err := byte_operations.New(keyBuf).WriteCompositeKey(key...); err != nil {
				return fmt.Errorf("encode key: %w", err)
			}

			var value *bytebuffer.PooledBuffer
			err := s.db.View(func(tx *bolt.Tx) error {
				v := tx.Bucket([]byte(s.config.Bucket)).Get(keyBuf.Bytes())
				if v == nil {
					return ErrNotFound
				}

				// v is only valid within the transaction
				pb, err := s.pool.Acquire(ctx, len(v))
				if err != nil {
					return fmt.Errorf("acquire value buffer: %w", err)
				}
				if _, err := pb.Buffer().Write(v); err != nil {
					pb.Release()
					return err
				}
				value = pb
				return nil
			})
			if err != nil {
				return err
			}
			defer value.Release()

			return fn(value.Buffer().Bytes())
		})
	})
}

func (s *Store) Delete(ctx context.Context, key Key) error {
	return s.withRetry(ctx, "delete", func(ctx context.Context) error {
		return s.pool.WithBuffer(ctx, key.Len(), func(keyBuf *bytebuffer.Buffer) error {
			if err := byte_operations.New(keyBuf).WriteCompositeKey(key...); err != nil {
				return fmt.Errorf("encode key: %w", err)
			}

			return s.db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket([]byte(s.config.Bucket)).Delete(keyBuf.Bytes())
			})
		})
	})
}

// Count is the number of stored keys.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(s.config.Bucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// withRetry gives every attempt its own acquire timeout. Only attempts that
// timed out waiting for the pool are retried, as long as ctx is still alive.
func (s *Store) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.RetryInitialInterval

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.config.AcquireTimeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}

		if errors.Is(err, enterrors.ErrWaitInterrupted) && ctx.Err() == nil {
			s.logger.WithField("action", "kv_store_retry").
				WithField("op", op).
				WithField("attempt", attempt).
				WithError(err).
				Warn("timed out waiting for a pooled buffer, retrying")
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, s.config.MaxRetries), ctx))
}
