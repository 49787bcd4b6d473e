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

package vm

import (
	"math"

	"github.com/Hodgeson/olavm/core/felt"
)

// Memory region boundaries. The top three spans of the address space are
// write-once; region membership is a pure function of the address, so no
// state is needed to classify an access.
const (
	// MemSpanSize is the size of one specialised region.
	MemSpanSize = uint64(math.MaxUint32)

	// PspStartAddr opens the prophet region, the highest span.
	PspStartAddr = felt.Order - MemSpanSize
	// PoseidonStartAddr opens the poseidon region.
	PoseidonStartAddr = felt.Order - 2*MemSpanSize
	// EcdsaStartAddr opens the ecdsa region.
	EcdsaStartAddr = felt.Order - 3*MemSpanSize
	// HpStartAddr is where prophet heap allocation begins.
	HpStartAddr = felt.Order - 3*MemSpanSize
)

// MemoryRegion classifies an address.
type MemoryRegion uint8

const (
	RegionReadWrite MemoryRegion = iota
	RegionProphet
	RegionPoseidon
	RegionEcdsa
)

// RegionOf buckets an address into its region.
func RegionOf(addr uint64) MemoryRegion {
	switch {
	case addr >= PspStartAddr:
		return RegionProphet
	case addr >= PoseidonStartAddr:
		return RegionPoseidon
	case addr >= EcdsaStartAddr:
		return RegionEcdsa
	default:
		return RegionReadWrite
	}
}

// WriteOnce reports whether cells in the region may be written at most
// once.
func (r MemoryRegion) WriteOnce() bool {
	return r != RegionReadWrite
}

func (r MemoryRegion) String() string {
	switch r {
	case RegionProphet:
		return "prophet"
	case RegionPoseidon:
		return "poseidon"
	case RegionEcdsa:
		return "ecdsa"
	default:
		return "read-write"
	}
}
