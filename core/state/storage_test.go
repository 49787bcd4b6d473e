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

package state

import (
	"testing"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeKeyU256RoundTrip(t *testing.T) {
	key := TreeKey{felt.New(1), felt.New(2), felt.New(3), felt.New(4)}
	path := TreeKeyToLeafPath(key)
	back := TreeValueFromBytes(path)
	assert.Equal(t, TreeValue(key), back)

	// key[0] occupies the most significant limb.
	u := TreeKeyToU256(key)
	assert.Equal(t, uint64(1), u[3])
	assert.Equal(t, uint64(4), u[0])
}

func TestHashedKeyStable(t *testing.T) {
	k := StorageKey{
		ContractAddr: TreeKey{felt.New(7)},
		SlotKey:      TreeKey{felt.New(1), felt.New(2), felt.New(3), felt.New(4)},
	}
	key1, row1 := k.HashedKey()
	key2, _ := k.HashedKey()
	assert.Equal(t, key1, key2)
	assert.True(t, row1.FilterLookedTreeKey)

	// A different contract salts the key.
	other := StorageKey{ContractAddr: TreeKey{felt.New(8)}, SlotKey: k.SlotKey}
	key3, _ := other.HashedKey()
	assert.NotEqual(t, key1, key3)
}

func TestStorageLatest(t *testing.T) {
	s := NewStorage()
	key := TreeKey{felt.New(5)}

	_, ok := s.Latest(key)
	assert.False(t, ok)

	v1 := TreeValue{felt.New(10)}
	v2 := TreeValue{felt.New(20)}
	s.Write(1, felt.New(1), key, v1, EmptyTreeValue())
	s.Read(2, felt.New(2), key, v1)
	s.Write(3, felt.New(1), key, v2, v1)

	got, ok := s.Latest(key)
	require.True(t, ok)
	assert.Equal(t, v2, got)
	assert.Len(t, s.Accesses(), 3)
}
