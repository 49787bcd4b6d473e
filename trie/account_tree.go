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

// Package trie implements the account storage tree the VM's storage
// opcodes read through and the trace builder commits to: a depth-256
// sparse Merkle tree over Poseidon whose leaves are four-element slot
// values addressed by hashed tree keys.
package trie

import (
	"github.com/Hodgeson/olavm/core/state"
	"github.com/Hodgeson/olavm/crypto/poseidon"
	"github.com/holiman/uint256"
	"github.com/inconshreveable/log15"
)

// RootTreeDepth is the number of hash layers between a leaf and the root.
const RootTreeDepth = 256

var logger = log15.New("module", "trie")

// LayerTrace is one hash evaluation along a leaf-to-root path: the child
// on the accessed path, its sibling, and the Poseidon row combining them.
type LayerTrace struct {
	Row     *poseidon.Row
	Path    state.TreeValue
	Sibling state.TreeValue
}

// AccountTree is the sparse Merkle tree over the storage slots. Leaves
// live in memory until Save persists them through the database layer;
// absent subtrees hash to precomputed defaults.
type AccountTree struct {
	db     *Database
	leaves map[[32]byte]state.TreeValue

	// defaults[d] is the hash of an empty subtree whose root sits at
	// depth d (defaults[RootTreeDepth] is the empty leaf).
	defaults [RootTreeDepth + 1]state.TreeValue
}

// NewAccountTree builds a tree over db.
func NewAccountTree(db *Database) *AccountTree {
	t := &AccountTree{
		db:     db,
		leaves: make(map[[32]byte]state.TreeValue),
	}
	for d := RootTreeDepth - 1; d >= 0; d-- {
		t.defaults[d], _ = poseidon.HashPair(t.defaults[d+1], t.defaults[d+1])
	}
	return t
}

// Hash returns the stored leaf at path, or false when the slot has never
// been written.
func (t *AccountTree) Hash(path [32]byte) (state.TreeValue, bool) {
	if v, ok := t.leaves[path]; ok {
		return v, true
	}
	enc, ok := t.db.GetLeaf(path)
	if !ok || len(enc) != 32 {
		return state.EmptyTreeValue(), false
	}
	var b [32]byte
	copy(b[:], enc)
	v := state.TreeValueFromBytes(b)
	t.leaves[path] = v
	return v, true
}

// ProcessBlock applies the execution's storage log and returns, per log
// entry, the 256 layer traces of the affected path ordered leaf to root.
// Reads re-prove the current path without mutating it.
func (t *AccountTree) ProcessBlock(logs []state.WitnessStorageLog) [][]LayerTrace {
	traces := make([][]LayerTrace, 0, len(logs))
	for _, wl := range logs {
		key := wl.Log.Key
		path := state.TreeKeyToLeafPath(key)
		if wl.Log.Kind == state.LogWrite {
			t.leaves[path] = wl.Log.Value
		}
		traces = append(traces, t.provePath(key))
	}
	logger.Debug("processed storage block", "logs", len(logs))
	return traces
}

// provePath recomputes the leaf-to-root hash chain for key.
func (t *AccountTree) provePath(key state.TreeKey) []LayerTrace {
	bits := state.TreeKeyToU256(key)
	path := state.TreeKeyToLeafPath(key)

	current, ok := t.leaves[path]
	if !ok {
		if v, found := t.Hash(path); found {
			current = v
		} else {
			current = t.defaults[RootTreeDepth]
		}
	}

	layers := make([]LayerTrace, 0, RootTreeDepth)
	prefix := new(uint256.Int).Set(bits)
	for depth := RootTreeDepth - 1; depth >= 0; depth-- {
		bit := prefix[0] & 1
		prefix.Rsh(prefix, 1)

		sibling := t.subtreeHash(uint(depth)+1, siblingPrefix(prefix, bit))
		var left, right state.TreeValue
		if bit == 0 {
			left, right = current, sibling
		} else {
			left, right = sibling, current
		}
		parent, row := poseidon.HashPair(left, right)
		layers = append(layers, LayerTrace{Row: row, Path: current, Sibling: sibling})
		current = parent
	}
	return layers
}

// siblingPrefix derives the sibling subtree's prefix from the parent
// prefix and the path bit.
func siblingPrefix(parent *uint256.Int, bit uint64) *uint256.Int {
	s := new(uint256.Int).Lsh(parent, 1)
	if bit == 0 {
		s.Or(s, uint256.NewInt(1))
	}
	return s
}

// subtreeHash computes the hash of the subtree rooted at depth with the
// given leading path bits. Subtrees holding no leaves resolve to the
// precomputed defaults without hashing.
func (t *AccountTree) subtreeHash(depth uint, prefix *uint256.Int) state.TreeValue {
	if !t.hasLeafUnder(depth, prefix) {
		return t.defaults[depth]
	}
	if depth == RootTreeDepth {
		path := new(uint256.Int).Set(prefix).Bytes32()
		if v, ok := t.leaves[path]; ok {
			return v
		}
		if v, ok := t.Hash(path); ok {
			return v
		}
		return t.defaults[RootTreeDepth]
	}
	left := t.subtreeHash(depth+1, new(uint256.Int).Lsh(prefix, 1))
	right := t.subtreeHash(depth+1, new(uint256.Int).Or(new(uint256.Int).Lsh(prefix, 1), uint256.NewInt(1)))
	parent, _ := poseidon.HashPair(left, right)
	return parent
}

// hasLeafUnder reports whether any in-memory leaf lives below the prefix.
func (t *AccountTree) hasLeafUnder(depth uint, prefix *uint256.Int) bool {
	for path := range t.leaves {
		leaf := new(uint256.Int).SetBytes32(path[:])
		if new(uint256.Int).Rsh(leaf, 256-depth).Eq(prefix) {
			return true
		}
	}
	return false
}

// Save persists every in-memory leaf through the database layer.
func (t *AccountTree) Save() error {
	for path, value := range t.leaves {
		b := state.TreeValueToBytes(value)
		t.db.PutLeaf(path, b[:])
	}
	return t.db.Commit()
}

// Root returns the current root hash of the whole tree.
func (t *AccountTree) Root() state.TreeValue {
	return t.subtreeHash(0, new(uint256.Int))
}
