// Package storage implements tangle.Storage on top of a LevelDB-family
// LSM-tree key/value store, the on-disk persistence layer the in-memory
// tangle index is optionally layered over (pkg/model/tangle.Storage).
package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

var (
	transactionPrefix = []byte("tx:")
	milestonePrefix   = []byte("ms:")
)

// LevelDB persists transactions as raw trytes keyed by hash, and milestones
// as their tail hash keyed by big-endian index.
type LevelDB struct {
	db *leveldb.DB
}

// Open opens (creating if absent) a LevelDB database at path.
func Open(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %q", path)
	}
	return &LevelDB{db: db}, nil
}

// Close releases the underlying database handle.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

func transactionKey(hash trinary.Hash) []byte {
	return append(append([]byte{}, transactionPrefix...), []byte(hash)...)
}

func milestoneKey(index milestone.Index) []byte {
	key := make([]byte, len(milestonePrefix)+4)
	copy(key, milestonePrefix)
	binary.BigEndian.PutUint32(key[len(milestonePrefix):], uint32(index))
	return key
}

// LoadTransaction reconstructs a Transaction from its stored trytes.
func (l *LevelDB) LoadTransaction(hash trinary.Hash) (*tangle.Transaction, bool, error) {
	data, err := l.db.Get(transactionKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading transaction")
	}

	tx, err := tangle.FromTrytes(trinary.Trytes(data), hash)
	if err != nil {
		return nil, false, errors.Wrap(err, "decoding stored transaction")
	}
	return tx, true, nil
}

// StoreTransaction persists tx's canonical trytes under its hash.
func (l *LevelDB) StoreTransaction(tx *tangle.Transaction) error {
	return l.db.Put(transactionKey(tx.Hash), []byte(tx.RawTrytes), nil)
}

// DeleteTransaction removes a previously stored transaction, if present.
func (l *LevelDB) DeleteTransaction(hash trinary.Hash) error {
	return l.db.Delete(transactionKey(hash), nil)
}

// LoadMilestone reconstructs a Milestone from its stored tail hash.
func (l *LevelDB) LoadMilestone(index milestone.Index) (*milestone.Milestone, bool, error) {
	data, err := l.db.Get(milestoneKey(index), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading milestone")
	}
	return &milestone.Milestone{Index: index, Hash: trinary.Hash(data)}, true, nil
}

// StoreMilestone persists ms's tail hash under its index.
func (l *LevelDB) StoreMilestone(ms *milestone.Milestone) error {
	return l.db.Put(milestoneKey(ms.Index), []byte(ms.Hash), nil)
}

// DeleteMilestone removes a previously stored milestone, if present.
func (l *LevelDB) DeleteMilestone(index milestone.Index) error {
	return l.db.Delete(milestoneKey(index), nil)
}
