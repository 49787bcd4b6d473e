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
	"fmt"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/trace"
	"github.com/Hodgeson/olavm/core/vm"
)

// Memory keeps, per address, the append-only access history the memory
// sub-table is built from. Whether an address is read-write or write-once
// is decided by its region bucket alone.
type Memory struct {
	cells map[uint64][]trace.MemCell
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{cells: make(map[uint64][]trace.MemCell)}
}

// regionFlags expands a region into the three trace flag columns.
func regionFlags(region vm.MemoryRegion) (prophet, poseidon, ecdsa felt.Element) {
	switch region {
	case vm.RegionProphet:
		prophet = felt.One()
	case vm.RegionPoseidon:
		poseidon = felt.One()
	case vm.RegionEcdsa:
		ecdsa = felt.One()
	}
	return
}

// Write appends a write cell. A second write into a write-once region is
// a fault.
func (m *Memory) Write(addr uint64, clk uint32, opMask uint64, filterMain bool, value felt.Element) error {
	region := vm.RegionOf(addr)
	if region.WriteOnce() && len(m.cells[addr]) > 0 {
		return fmt.Errorf("%w: addr %#x (%s region)", ErrWriteOnceViolation, addr, region)
	}
	rp, rq, re := regionFlags(region)
	m.cells[addr] = append(m.cells[addr], trace.MemCell{
		Clk:            clk,
		Op:             felt.New(opMask),
		IsRW:           felt.Bool(!region.WriteOnce()),
		IsWrite:        felt.One(),
		FilterLooked:   felt.Bool(filterMain),
		RegionProphet:  rp,
		RegionPoseidon: rq,
		RegionEcdsa:    re,
		Value:          value,
	})
	return nil
}

// Read appends a read cell observing the newest value at addr and
// returns that value. Reading an address with no prior write is a fault
// in every region.
func (m *Memory) Read(addr uint64, clk uint32, opMask uint64, filterMain bool) (felt.Element, error) {
	cells := m.cells[addr]
	if len(cells) == 0 {
		return felt.Zero(), fmt.Errorf("%w: addr %#x", ErrReadBeforeWrite, addr)
	}
	value := cells[len(cells)-1].Value

	region := vm.RegionOf(addr)
	rp, rq, re := regionFlags(region)
	m.cells[addr] = append(cells, trace.MemCell{
		Clk:            clk,
		Op:             felt.New(opMask),
		IsRW:           felt.Bool(!region.WriteOnce()),
		IsWrite:        felt.Zero(),
		FilterLooked:   felt.Bool(filterMain),
		RegionProphet:  rp,
		RegionPoseidon: rq,
		RegionEcdsa:    re,
		Value:          value,
	})
	return value, nil
}

// Cells exposes the raw history for trace building.
func (m *Memory) Cells() map[uint64][]trace.MemCell {
	return m.cells
}
