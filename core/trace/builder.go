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

package trace

import (
	"sort"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/vm"
)

// BuildMemory sorts the raw per-address cells by (address, clk) and fills
// the derived columns. For every row it also appends a range-check
// request for the row's rc_value, which is
//
//   - the address delta when the address changes inside the read-write
//     region,
//   - the distance to the region boundary (diff_addr_cond) on write-once
//     rows, and
//   - the clock delta when the address repeats in the read-write region.
func (t *Trace) BuildMemory(cells map[uint64][]MemCell) {
	addrs := make([]uint64, 0, len(cells))
	for addr := range cells {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var (
		originAddr uint64
		originClk  uint64
		firstRow   = true
	)
	for _, addr := range addrs {
		rows := cells[addr]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Clk < rows[j].Clk })

		newAddr := true
		for _, cell := range rows {
			var diffAddrCond felt.Element
			writeOnce := false
			switch {
			case cell.RegionProphet.IsOne():
				diffAddrCond = felt.New(felt.Order - addr)
				writeOnce = true
			case cell.RegionPoseidon.IsOne():
				diffAddrCond = felt.New(felt.Order - vm.MemSpanSize - addr)
				writeOnce = true
			case cell.RegionEcdsa.IsOne():
				diffAddrCond = felt.New(felt.Order - 2*vm.MemSpanSize - addr)
				writeOnce = true
			}

			row := MemoryRow{
				Addr:            felt.New(addr),
				Clk:             felt.New(uint64(cell.Clk)),
				IsRW:            cell.IsRW,
				Op:              cell.Op,
				IsWrite:         cell.IsWrite,
				DiffAddrCond:    diffAddrCond,
				FilterLooked:    cell.FilterLooked,
				RegionProphet:   cell.RegionProphet,
				RegionPoseidon:  cell.RegionPoseidon,
				RegionEcdsa:     cell.RegionEcdsa,
				Value:           cell.Value,
				FilterLookingRc: felt.One(),
			}
			switch {
			case firstRow:
				firstRow = false
			case newAddr:
				row.DiffAddr = felt.New(addr - originAddr)
				if writeOnce {
					row.RcValue = diffAddrCond
				} else {
					row.DiffAddrInv = felt.InverseOrZero(row.DiffAddr)
					row.RcValue = row.DiffAddr
				}
			default:
				row.DiffClk = felt.New(uint64(cell.Clk) - originClk)
				if writeOnce {
					row.RcValue = diffAddrCond
				} else {
					row.RwAddrUnchanged = felt.One()
					row.RcValue = row.DiffClk
				}
			}
			t.Memory = append(t.Memory, row)
			t.InsertRangeCheck(row.RcValue, RequesterMemory)

			newAddr = false
			originClk = uint64(cell.Clk)
		}
		originAddr = addr
	}
}
