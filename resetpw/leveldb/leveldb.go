// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agromarket/agromarket/resetpw"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// dbDirname is the directory name that the leveldb database is saved
	// to inside of the data dir.
	dbDirname = "resetcodes"

	// keyPrefix is prepended to every code hash.
	keyPrefix = "resetcode:"
)

var (
	_ resetpw.DB      = (*localdb)(nil)
	_ resetpw.Cleaner = (*localdb)(nil)

	// ErrShutdown is returned when the database has been closed.
	ErrShutdown = errors.New("database is shutdown")
)

// localdb implements the resetpw.DB interface using leveldb.
type localdb struct {
	sync.Mutex
	db       *leveldb.DB
	shutdown bool
}

func codeKey(codeHash string) []byte {
	return []byte(keyPrefix + codeHash)
}

func (l *localdb) get(codeHash string) (*resetpw.Code, error) {
	b, err := l.db.Get(codeKey(codeHash), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, resetpw.ErrNotFound
	case err != nil:
		return nil, errors.WithStack(err)
	}
	var c resetpw.Code
	err = json.Unmarshal(b, &c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (l *localdb) put(c resetpw.Code) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	err = l.db.Put(codeKey(c.CodeHash), b, nil)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Save saves a new reset code.
//
// Save satisfies the resetpw.DB interface.
func (l *localdb) Save(ctx context.Context, c resetpw.Code) error {
	log.Tracef("Save %v", c.Email)

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return ErrShutdown
	}

	return l.put(c)
}

// Get returns the reset code for the hash.
//
// Get satisfies the resetpw.DB interface.
func (l *localdb) Get(ctx context.Context, codeHash string) (*resetpw.Code, error) {
	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return nil, ErrShutdown
	}

	return l.get(codeHash)
}

// update applies fn to the stored code and saves it.
func (l *localdb) update(codeHash string, fn func(*resetpw.Code)) error {
	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return ErrShutdown
	}

	c, err := l.get(codeHash)
	if err != nil {
		return err
	}
	fn(c)
	return l.put(*c)
}

// SetVerified marks the code verified.
//
// SetVerified satisfies the resetpw.DB interface.
func (l *localdb) SetVerified(ctx context.Context, codeHash string) error {
	return l.update(codeHash, func(c *resetpw.Code) {
		c.Verified = true
	})
}

// SetUsed marks the code used.
//
// SetUsed satisfies the resetpw.DB interface.
func (l *localdb) SetUsed(ctx context.Context, codeHash string) error {
	return l.update(codeHash, func(c *resetpw.Code) {
		c.Used = true
	})
}

// Cleanup deletes the codes that are expired or used.
//
// Cleanup satisfies the resetpw.Cleaner interface.
func (l *localdb) Cleanup(ctx context.Context) (int64, error) {
	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return 0, ErrShutdown
	}

	now := time.Now()
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	for iter.Next() {
		var c resetpw.Code
		err := json.Unmarshal(iter.Value(), &c)
		if err != nil || c.Used || c.Expired(now) {
			batch.Delete(append([]byte{}, iter.Key()...))
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, errors.WithStack(err)
	}

	err := l.db.Write(batch, nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}

	log.Debugf("Deleted %v reset codes from the database", batch.Len())

	return int64(batch.Len()), nil
}

// Close closes the database.
func (l *localdb) Close() error {
	l.Lock()
	defer l.Unlock()

	l.shutdown = true
	return l.db.Close()
}

// New opens the leveldb reset codes database that lives in the data dir.
func New(dataDir string) (*localdb, error) {
	if dataDir == "" {
		return nil, errors.Errorf("data dir not provided")
	}

	fp := filepath.Join(dataDir, dbDirname)
	err := os.MkdirAll(fp, 0700)
	if err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(fp, nil)
	if err != nil {
		return nil, err
	}

	return &localdb{
		db: db,
	}, nil
}
