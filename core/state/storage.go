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

// Package state implements the keyed storage the SLOAD/SSTORE opcodes
// operate on: tree-key derivation by Poseidon-hashing the contract
// address with the slot key, the in-run access log consumed by the
// account tree after execution, and the per-key access history the
// storage sub-table is sorted from.
package state

import (
	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/crypto/poseidon"
	"github.com/holiman/uint256"
)

// TreeValueLen is the width of keys and values in field elements.
const TreeValueLen = 4

// TreeKey addresses one slot of the global storage tree.
type TreeKey = [TreeValueLen]felt.Element

// TreeValue is one stored slot value.
type TreeValue = [TreeValueLen]felt.Element

// EmptyTreeValue is the value of an absent slot.
func EmptyTreeValue() TreeValue {
	return TreeValue{}
}

// TreeKeyToU256 packs a tree key into a 256-bit path, key[0] most
// significant.
func TreeKeyToU256(key TreeKey) *uint256.Int {
	z := new(uint256.Int)
	z[3] = felt.U64(key[0])
	z[2] = felt.U64(key[1])
	z[1] = felt.U64(key[2])
	z[0] = felt.U64(key[3])
	return z
}

// TreeKeyToLeafPath renders the key as the 32-byte big-endian path used
// by the account tree's persistent store.
func TreeKeyToLeafPath(key TreeKey) [32]byte {
	return TreeKeyToU256(key).Bytes32()
}

// TreeValueFromBytes unpacks a 32-byte stored leaf back into four field
// elements.
func TreeValueFromBytes(b [32]byte) TreeValue {
	var v TreeValue
	z := new(uint256.Int).SetBytes32(b[:])
	v[0] = felt.New(z[3])
	v[1] = felt.New(z[2])
	v[2] = felt.New(z[1])
	v[3] = felt.New(z[0])
	return v
}

// TreeValueToBytes is the inverse of TreeValueFromBytes.
func TreeValueToBytes(v TreeValue) [32]byte {
	return TreeKeyToU256(v).Bytes32()
}

// StorageKey is a (contract address, slot key) pair before hashing.
type StorageKey struct {
	ContractAddr TreeKey
	SlotKey      TreeKey
}

// HashedKey derives the tree key by hashing the address alongside the
// slot key, returning the Poseidon trace row that produced it.
func (k StorageKey) HashedKey() (TreeKey, *poseidon.Row) {
	var input [poseidon.InputValueLen]felt.Element
	copy(input[:TreeValueLen], k.ContractAddr[:])
	copy(input[TreeValueLen:], k.SlotKey[:])
	digest, row := poseidon.HashValues(input)
	row.FilterLookedTreeKey = true
	return digest, row
}

// LogKind discriminates storage log entries.
type LogKind uint8

const (
	LogRead LogKind = iota
	LogWrite
)

// StorageLog is one access in execution order.
type StorageLog struct {
	Kind  LogKind
	Key   TreeKey
	Value TreeValue
}

// NewReadLog records a read that observed value.
func NewReadLog(key TreeKey, value TreeValue) StorageLog {
	return StorageLog{Kind: LogRead, Key: key, Value: value}
}

// NewWriteLog records a write of value.
func NewWriteLog(key TreeKey, value TreeValue) StorageLog {
	return StorageLog{Kind: LogWrite, Key: key, Value: value}
}

// WitnessStorageLog pairs a log entry with the overwritten value, the
// shape the account tree consumes.
type WitnessStorageLog struct {
	Log           StorageLog
	PreviousValue TreeValue
}

// Cell is one recorded access to a tree key.
type Cell struct {
	Clk      uint32
	Op       felt.Element
	Value    TreeValue
	PrevValue TreeValue
}

// Storage is the in-run view of the tree: the newest value per key plus
// the full access history the storage sub-table is derived from.
type Storage struct {
	cells map[[32]byte][]Cell
	keys  map[[32]byte]TreeKey
}

// NewStorage creates an empty in-run storage view.
func NewStorage() *Storage {
	return &Storage{
		cells: make(map[[32]byte][]Cell),
		keys:  make(map[[32]byte]TreeKey),
	}
}

// Write appends a write access.
func (s *Storage) Write(clk uint32, op felt.Element, key TreeKey, value, prev TreeValue) {
	path := TreeKeyToLeafPath(key)
	s.keys[path] = key
	s.cells[path] = append(s.cells[path], Cell{Clk: clk, Op: op, Value: value, PrevValue: prev})
}

// Read appends a read access observing value.
func (s *Storage) Read(clk uint32, op felt.Element, key TreeKey, value TreeValue) {
	path := TreeKeyToLeafPath(key)
	s.keys[path] = key
	s.cells[path] = append(s.cells[path], Cell{Clk: clk, Op: op, Value: value})
}

// Latest returns the newest in-run value for key, if any access touched
// it.
func (s *Storage) Latest(key TreeKey) (TreeValue, bool) {
	cells, ok := s.cells[TreeKeyToLeafPath(key)]
	if !ok || len(cells) == 0 {
		return EmptyTreeValue(), false
	}
	return cells[len(cells)-1].Value, true
}

// Accesses flattens the history into (key, cell) pairs for the trace
// builder.
func (s *Storage) Accesses() []KeyedCell {
	var out []KeyedCell
	for path, cells := range s.cells {
		key := s.keys[path]
		for _, c := range cells {
			out = append(out, KeyedCell{Key: key, Cell: c})
		}
	}
	return out
}

// KeyedCell is one access paired with its tree key.
type KeyedCell struct {
	Key  TreeKey
	Cell Cell
}
