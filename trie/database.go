// Copyright 2024 The olavm Authors
// This file is part of the olavm library.
//
// The olavm library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The olavm library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the olavm library. If not, see <http://www.gnu.org/licenses/>.

package trie

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// leafPrefix namespaces persisted leaves in the key-value store.
var leafPrefix = []byte("l")

// Database is the write layer between the account tree and the disk
// store: reads go through a clean LRU cache, writes are batched until
// Commit.
type Database struct {
	diskdb *leveldb.DB
	cleans *lru.Cache
	batch  *leveldb.Batch
}

// NewDatabase opens (or creates) the persistent store at path. cacheSize
// bounds the number of cached leaves.
func NewDatabase(path string, cacheSize int) (*Database, error) {
	diskdb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return newDatabase(diskdb, cacheSize)
}

// NewMemoryDatabase backs the store with an in-memory key-value store,
// for tests and ephemeral runs.
func NewMemoryDatabase() (*Database, error) {
	diskdb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return newDatabase(diskdb, 1024)
}

func newDatabase(diskdb *leveldb.DB, cacheSize int) (*Database, error) {
	cleans, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Database{
		diskdb: diskdb,
		cleans: cleans,
		batch:  new(leveldb.Batch),
	}, nil
}

// GetLeaf retrieves a persisted leaf, consulting the clean cache first.
func (db *Database) GetLeaf(path [32]byte) ([]byte, bool) {
	if enc, ok := db.cleans.Get(path); ok {
		return enc.([]byte), true
	}
	enc, err := db.diskdb.Get(append(leafPrefix, path[:]...), nil)
	if err != nil || enc == nil {
		return nil, false
	}
	db.cleans.Add(path, enc)
	return enc, true
}

// PutLeaf queues a leaf write into the pending batch and refreshes the
// cache.
func (db *Database) PutLeaf(path [32]byte, value []byte) {
	db.batch.Put(append(leafPrefix, path[:]...), value)
	db.cleans.Add(path, value)
}

// Commit flushes the pending batch to disk.
func (db *Database) Commit() error {
	if err := db.diskdb.Write(db.batch, nil); err != nil {
		return err
	}
	db.batch.Reset()
	return nil
}

// Close releases the underlying store.
func (db *Database) Close() error {
	return db.diskdb.Close()
}
