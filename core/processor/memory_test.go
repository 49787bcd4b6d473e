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

package processor

import (
	"testing"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadWriteRegion(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Write(0x100, 1, vm.OpMStore.Mask(), true, felt.New(8)))
	v, err := m.Read(0x100, 2, vm.OpMLoad.Mask(), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), felt.U64(v))

	// Read-write addresses may be overwritten; reads observe the newest
	// value.
	require.NoError(t, m.Write(0x100, 3, vm.OpMStore.Mask(), true, felt.New(9)))
	v, err = m.Read(0x100, 4, vm.OpMLoad.Mask(), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), felt.U64(v))
}

func TestMemoryWriteOnce(t *testing.T) {
	m := NewMemory()
	addr := vm.PspStartAddr + 3
	require.NoError(t, m.Write(addr, 0, 0, false, felt.New(7)))

	// Any number of reads return the sole stored value.
	for clk := uint32(1); clk < 4; clk++ {
		v, err := m.Read(addr, clk, vm.OpMLoad.Mask(), true)
		require.NoError(t, err)
		assert.Equal(t, uint64(7), felt.U64(v))
	}

	err := m.Write(addr, 5, vm.OpMStore.Mask(), true, felt.New(8))
	assert.ErrorIs(t, err, ErrWriteOnceViolation)
}

func TestMemoryReadBeforeWrite(t *testing.T) {
	m := NewMemory()
	_, err := m.Read(0x55, 1, vm.OpMLoad.Mask(), true)
	assert.ErrorIs(t, err, ErrReadBeforeWrite)

	_, err = m.Read(vm.PoseidonStartAddr, 1, vm.OpMLoad.Mask(), true)
	assert.ErrorIs(t, err, ErrReadBeforeWrite)
}

func TestRegionDispatch(t *testing.T) {
	assert.Equal(t, vm.RegionReadWrite, vm.RegionOf(0))
	assert.Equal(t, vm.RegionReadWrite, vm.RegionOf(vm.EcdsaStartAddr-1))
	assert.Equal(t, vm.RegionEcdsa, vm.RegionOf(vm.EcdsaStartAddr))
	assert.Equal(t, vm.RegionPoseidon, vm.RegionOf(vm.PoseidonStartAddr))
	assert.Equal(t, vm.RegionProphet, vm.RegionOf(vm.PspStartAddr))
	assert.Equal(t, vm.RegionProphet, vm.RegionOf(felt.Order-1))

	assert.False(t, vm.RegionReadWrite.WriteOnce())
	assert.True(t, vm.RegionProphet.WriteOnce())
	assert.True(t, vm.RegionPoseidon.WriteOnce())
	assert.True(t, vm.RegionEcdsa.WriteOnce())
}

func TestMemoryCellFlags(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Write(vm.PspStartAddr, 0, 0, false, felt.New(1)))
	cells := m.Cells()[vm.PspStartAddr]
	require.Len(t, cells, 1)
	assert.True(t, cells[0].RegionProphet.IsOne())
	assert.True(t, cells[0].IsRW.IsZero())
	assert.True(t, cells[0].IsWrite.IsOne())
}
