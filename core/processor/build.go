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
	"sort"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/state"
	"github.com/Hodgeson/olavm/core/trace"
	"github.com/Hodgeson/olavm/trie"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// finalize derives the sorted sub-tables after END. The memory table and
// the storage tables are independent, so they are built concurrently and
// merged back in a fixed order to keep the trace byte-stable.
func (p *Process) finalize() error {
	var (
		memTrace     = new(trace.Trace)
		storageTrace = new(trace.Trace)
	)
	var g errgroup.Group
	g.Go(func() error {
		memTrace.BuildMemory(p.Memory.Cells())
		return nil
	})
	g.Go(func() error {
		return p.buildStorageTables(storageTrace)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	p.Trace.Storage = storageTrace.Storage
	p.Trace.StorageHash = storageTrace.StorageHash
	p.Trace.RangeCheck = append(p.Trace.RangeCheck, storageTrace.RangeCheck...)
	p.Trace.Memory = memTrace.Memory
	p.Trace.RangeCheck = append(p.Trace.RangeCheck, memTrace.RangeCheck...)
	return nil
}

// buildStorageTables replays the storage log against the account tree,
// building the hash sub-table from the per-layer traces and the storage
// sub-table from the clock-sorted access history.
func (p *Process) buildStorageTables(out *trace.Trace) error {
	if len(p.StorageLog) == 0 {
		return nil
	}
	if p.tree == nil {
		// Storage opcodes without a tree have already produced their
		// in-run rows; a missing collaborator only forfeits persistence.
		logger.Warn("storage log dropped, no account tree bound", "logs", len(p.StorageLog))
		return nil
	}

	hashTraces := p.tree.ProcessBlock(p.StorageLog)
	if err := p.tree.Save(); err != nil {
		return err
	}

	rootHashes := make([]state.TreeValue, 0, len(hashTraces))
	for idx, layers := range hashTraces {
		key := p.StorageLog[idx].Log.Key
		rootHashes = append(rootHashes, rootOf(layers))
		appendHashRows(out, uint64(idx+1), key, layers)
	}

	p.buildStorageTable(out, rootHashes)
	return nil
}

// rootOf extracts the root digest from a leaf-to-root layer list.
func rootOf(layers []trie.LayerTrace) state.TreeValue {
	var root state.TreeValue
	copy(root[:], layers[len(layers)-1].Row.Output[:state.TreeValueLen])
	return root
}

// appendHashRows converts one path recomputation into hash sub-table
// rows, walking root to leaf. The address accumulator folds the path bits
// in and restarts on every 64-layer boundary.
func appendHashRows(out *trace.Trace, idxStorage uint64, key state.TreeKey, layers []trie.LayerTrace) {
	bits := state.TreeKeyToU256(key)
	acc := felt.Zero()
	two := felt.New(2)

	for i := 0; i < len(layers); i++ {
		// layers is leaf-to-root; row i descends from the root.
		lt := layers[len(layers)-1-i]
		layerBit := new(uint256.Int).Rsh(bits, uint(255-i))[0] & 1
		layer := uint64(i + 1)

		acc = felt.Add(felt.Mul(acc, two), felt.New(layerBit))

		var deltas [state.TreeValueLen]felt.Element
		if layerBit == 1 {
			for j := 0; j < state.TreeValueLen; j++ {
				deltas[j] = felt.Sub(lt.Sibling[j], lt.Path[j])
			}
		}
		row := trace.StorageHashRow{
			IdxStorage: idxStorage,
			Layer:      layer,
			LayerBit:   layerBit,
			AddrAcc:    acc,
			IsLayer64:  layer == 64,
			IsLayer128: layer == 128,
			IsLayer192: layer == 192,
			IsLayer256: layer == 256,
			Addr:       key,
			Caps:       [state.TreeValueLen]felt.Element{felt.One()},
			Paths:      lt.Path,
			Siblings:   lt.Sibling,
			Deltas:     deltas,
			Hash:       lt.Row,
		}
		if layer%64 == 0 {
			acc = felt.Zero()
		}
		out.StorageHash = append(out.StorageHash, row)
	}
}

// buildStorageTable sorts the access history by clock and pairs each row
// with the root its replay produced, range-checking the clock deltas.
func (p *Process) buildStorageTable(out *trace.Trace, rootHashes []state.TreeValue) {
	accesses := p.Storage.Accesses()
	sort.SliceStable(accesses, func(i, j int) bool {
		return accesses[i].Cell.Clk < accesses[j].Cell.Clk
	})

	var preClk uint32
	for i, access := range accesses {
		if i >= len(rootHashes) {
			break
		}
		var diffClk uint32
		if i != 0 {
			diffClk = access.Cell.Clk - preClk
		}
		out.Storage = append(out.Storage, trace.StorageRow{
			Clk:     access.Cell.Clk,
			DiffClk: diffClk,
			Op:      access.Cell.Op,
			Root:    rootHashes[i],
			Addr:    access.Key,
			Value:   access.Cell.Value,
		})
		out.InsertRangeCheck(felt.New(uint64(diffClk)), trace.RequesterStorage)
		preClk = access.Cell.Clk
	}
}
