// Copyright (c) 2025 The AgroMarket developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agromarket/agromarket/sessions"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// dbDirname is the directory name that the leveldb database is saved
	// to inside of the data dir.
	dbDirname = "sessions"

	// keyPrefix is prepended to every session ID.
	keyPrefix = "session:"
)

var (
	_ sessions.DB      = (*localdb)(nil)
	_ sessions.Cleaner = (*localdb)(nil)

	// ErrShutdown is returned when the database has been closed.
	ErrShutdown = errors.New("database is shutdown")
)

// localdb implements the sessions.DB interface using leveldb. All exported
// calls are locked against concurrent access.
type localdb struct {
	sync.Mutex
	db            *leveldb.DB
	sessionMaxAge int64
	shutdown      bool
}

func sessionKey(sessionID string) []byte {
	return []byte(keyPrefix + sessionID)
}

// Save saves a session to the database.
//
// Save satisfies the sessions.DB interface.
func (l *localdb) Save(sessionID string, s sessions.EncodedSession) error {
	log.Tracef("Save %v", sessionID)

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return ErrShutdown
	}

	if s.CreatedAt == 0 {
		s.CreatedAt = time.Now().Unix()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	err = l.db.Put(sessionKey(sessionID), b, nil)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Del deletes a session from the database. An error is not returned if the
// session does not exist.
//
// Del satisfies the sessions.DB interface.
func (l *localdb) Del(sessionID string) error {
	log.Tracef("Del %v", sessionID)

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return ErrShutdown
	}

	err := l.db.Delete(sessionKey(sessionID), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Get gets a session from the database. An ErrNotFound error is returned if
// a session is not found for the session ID.
//
// Get satisfies the sessions.DB interface.
func (l *localdb) Get(sessionID string) (*sessions.EncodedSession, error) {
	log.Tracef("Get %v", sessionID)

	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return nil, ErrShutdown
	}

	b, err := l.db.Get(sessionKey(sessionID), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
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

// Cleanup deletes all sessions that have expired.
//
// Cleanup satisfies the sessions.Cleaner interface.
func (l *localdb) Cleanup() (int64, error) {
	l.Lock()
	defer l.Unlock()
	if l.shutdown {
		return 0, ErrShutdown
	}

	now := time.Now().Unix()
	batch := new(leveldb.Batch)
	iter := l.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	for iter.Next() {
		var es sessions.EncodedSession
		err := json.Unmarshal(iter.Value(), &es)
		if err != nil {
			log.Errorf("Cleanup: corrupt session %s: %v", iter.Key(), err)
			batch.Delete(append([]byte{}, iter.Key()...))
			continue
		}
		if es.CreatedAt+l.sessionMaxAge <= now {
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

	log.Debugf("Deleted %v expired sessions from the database", batch.Len())

	return int64(batch.Len()), nil
}

// Close closes the database.
func (l *localdb) Close() error {
	log.Tracef("Close")

	l.Lock()
	defer l.Unlock()

	l.shutdown = true
	return l.db.Close()
}

// New opens the leveldb sessions database that lives in the data dir.
func New(dataDir string, sessionMaxAge int64) (*localdb, error) {
	switch {
	case dataDir == "":
		return nil, errors.Errorf("data dir not provided")
	case sessionMaxAge <= 0:
		return nil, errors.Errorf("invalid session max age %v", sessionMaxAge)
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
		db:            db,
		sessionMaxAge: sessionMaxAge,
	}, nil
}
