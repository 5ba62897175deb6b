// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package redisdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agromarket/agromarket/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	// keyPrefix is prepended to every session ID.
	keyPrefix = "agromarket:session:"

	// defaultOpTimeout is the default timeout for a single redis command.
	defaultOpTimeout = 5 * time.Second
)

var (
	_ sessions.DB = (*redisdb)(nil)
)

// client contains the redis commands that are used by this package.
type client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// redisdb implements the sessions.DB interface using redis. Every entry is
// written with a TTL of the session max age, so expired sessions are removed
// by redis itself and no cleanup is required.
type redisdb struct {
	client    client
	ttl       time.Duration
	opTimeout time.Duration
}

// Opts contains the redis connection options.
type Opts struct {
	Addr     string
	Password string
	DB       int
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

func (r *redisdb) ctxForOp() (context.Context, func()) {
	return context.WithTimeout(context.Background(), r.opTimeout)
}

// Save saves a session to redis. The TTL is the time that is left until the
// session expires.
//
// Save satisfies the sessions.DB interface.
func (r *redisdb) Save(sessionID string, s sessions.EncodedSession) error {
	log.Tracef("Save %v", sessionID)

	now := time.Now()
	if s.CreatedAt == 0 {
		s.CreatedAt = now.Unix()
	}
	ttl := time.Unix(s.CreatedAt, 0).Add(r.ttl).Sub(now)
	if ttl <= 0 {
		return r.Del(sessionID)
	}

	b, err := json.Marshal(s)
	if err != nil {
		return err
	}

	ctx, cancel := r.ctxForOp()
	defer cancel()

	err = r.client.Set(ctx, sessionKey(sessionID), b, ttl).Err()
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Del deletes a session from redis.
//
// Del satisfies the sessions.DB interface.
func (r *redisdb) Del(sessionID string) error {
	log.Tracef("Del %v", sessionID)

	ctx, cancel := r.ctxForOp()
	defer cancel()

	err := r.client.Del(ctx, sessionKey(sessionID)).Err()
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Get gets a session from redis.
//
// Get satisfies the sessions.DB interface.
func (r *redisdb) Get(sessionID string) (*sessions.EncodedSession, error) {
	log.Tracef("Get %v", sessionID)

	ctx, cancel := r.ctxForOp()
	defer cancel()

	b, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, sessions.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}

	var es sessions.EncodedSession
	err = json.Unmarshal(b, &es)
	if err != nil {
		return nil, err
	}

	return &es, nil
}

// New returns a new redis sessions database. The connection is verified
// with a ping.
func New(ctx context.Context, sessionMaxAge int64, opts Opts) (*redisdb, error) {
	if sessionMaxAge <= 0 {
		return nil, errors.Errorf("invalid session max age %v", sessionMaxAge)
	}
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	err := c.Ping(ctx).Err()
	if err != nil {
		return nil, errors.Wrapf(err, "ping %v", opts.Addr)
	}

	return newRedisDB(c, sessionMaxAge), nil
}

func newRedisDB(c client, sessionMaxAge int64) *redisdb {
	return &redisdb{
		client:    c,
		ttl:       time.Duration(sessionMaxAge) * time.Second,
		opTimeout: defaultOpTimeout,
	}
}
