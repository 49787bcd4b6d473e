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

// Package trace holds the per-subtable row records the processor emits
// and the post-execution derivations the constraint polynomials assume:
// sorted memory rows with address/clock difference columns, clock-sorted
// storage rows, and the lookup filter flags tying sub-tables together.
package trace

import (
	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/crypto/poseidon"
)

// RegisterSelector carries the operand values and one-hot register flags
// of one executed step.
type RegisterSelector struct {
	Op0  felt.Element `json:"op0"`
	Op1  felt.Element `json:"op1"`
	Dst  felt.Element `json:"dst"`
	Aux0 felt.Element `json:"aux0"`
	Aux1 felt.Element `json:"aux1"`

	Op0RegSel [vm.RegisterNum]felt.Element `json:"op0_reg_sel"`
	Op1RegSel [vm.RegisterNum]felt.Element `json:"op1_reg_sel"`
	DstRegSel [vm.RegisterNum]felt.Element `json:"dst_reg_sel"`
}

// CpuRow is one executed step: the machine state before the step plus the
// decoded instruction and its operand view.
type CpuRow struct {
	Clk           uint32                       `json:"clk"`
	Pc            uint64                       `json:"pc"`
	Psp           felt.Element                 `json:"psp"`
	Registers     [vm.RegisterNum]felt.Element `json:"registers"`
	Instruction   felt.Element                 `json:"instruction"`
	ImmediateData felt.Element                 `json:"immediate_data"`
	Op1Imm        felt.Element                 `json:"op1_imm"`
	OpcodeMask    felt.Element                 `json:"opcode"`
	Selector      RegisterSelector             `json:"register_selector"`
}

// MemCell is one raw memory access, appended per address during
// execution and turned into MemoryRows after END.
type MemCell struct {
	Clk            uint32       `json:"clk"`
	Op             felt.Element `json:"op"`
	IsRW           felt.Element `json:"is_rw"`
	IsWrite        felt.Element `json:"is_write"`
	FilterLooked   felt.Element `json:"filter_looked_for_main"`
	RegionProphet  felt.Element `json:"region_prophet"`
	RegionPoseidon felt.Element `json:"region_poseidon"`
	RegionEcdsa    felt.Element `json:"region_ecdsa"`
	Value          felt.Element `json:"value"`
}

// MemoryRow is one row of the sorted memory sub-table.
type MemoryRow struct {
	Addr            felt.Element `json:"addr"`
	Clk             felt.Element `json:"clk"`
	IsRW            felt.Element `json:"is_rw"`
	Op              felt.Element `json:"op"`
	IsWrite         felt.Element `json:"is_write"`
	DiffAddr        felt.Element `json:"diff_addr"`
	DiffAddrInv     felt.Element `json:"diff_addr_inv"`
	DiffClk         felt.Element `json:"diff_clk"`
	DiffAddrCond    felt.Element `json:"diff_addr_cond"`
	FilterLooked    felt.Element `json:"filter_looked_for_main"`
	RwAddrUnchanged felt.Element `json:"rw_addr_unchanged"`
	RegionProphet   felt.Element `json:"region_prophet"`
	RegionPoseidon  felt.Element `json:"region_poseidon"`
	RegionEcdsa     felt.Element `json:"region_ecdsa"`
	Value           felt.Element `json:"value"`
	FilterLookingRc felt.Element `json:"filter_looking_rc"`
	RcValue         felt.Element `json:"rc_value"`
}

// RangeCheckRow is one u32 range-check request. Exactly one filter flag
// is set, naming the requesting sub-table.
type RangeCheckRow struct {
	Value            felt.Element `json:"value"`
	FilterForMemory  felt.Element `json:"filter_looked_for_memory"`
	FilterForCpu     felt.Element `json:"filter_looked_for_cpu"`
	FilterForCmp     felt.Element `json:"filter_looked_for_comparison"`
	FilterForStorage felt.Element `json:"filter_looked_for_storage"`
}

// BitwiseRow is one AND/OR/XOR request.
type BitwiseRow struct {
	OpcodeMask felt.Element `json:"opcode"`
	Op0        felt.Element `json:"op0"`
	Op1        felt.Element `json:"op1"`
	Res        felt.Element `json:"res"`
}

// ComparisonRow is one GTE request with its range-checked difference.
type ComparisonRow struct {
	Op0             felt.Element `json:"op0"`
	Op1             felt.Element `json:"op1"`
	Gte             felt.Element `json:"gte"`
	AbsDiff         felt.Element `json:"abs_diff"`
	FilterLookingRc felt.Element `json:"filter_looking_rc"`
}

// StorageRow is one clock-sorted storage access paired with the tree root
// it produced.
type StorageRow struct {
	Clk     uint32                                `json:"clk"`
	DiffClk uint32                                `json:"diff_clk"`
	Op      felt.Element                          `json:"op"`
	Root    [poseidon.OutputValueLen]felt.Element `json:"root"`
	Addr    [poseidon.OutputValueLen]felt.Element `json:"addr"`
	Value   [poseidon.OutputValueLen]felt.Element `json:"value"`
}

// StorageHashRow is one layer of a Merkle path recomputation.
type StorageHashRow struct {
	IdxStorage uint64       `json:"idx_storage"`
	Layer      uint64       `json:"layer"`
	LayerBit   uint64       `json:"layer_bit"`
	AddrAcc    felt.Element `json:"addr_acc"`
	IsLayer64  bool         `json:"is_layer_64"`
	IsLayer128 bool         `json:"is_layer_128"`
	IsLayer192 bool         `json:"is_layer_192"`
	IsLayer256 bool         `json:"is_layer_256"`

	Addr     [poseidon.OutputValueLen]felt.Element `json:"addr"`
	Caps     [poseidon.OutputValueLen]felt.Element `json:"caps"`
	Paths    [poseidon.OutputValueLen]felt.Element `json:"paths"`
	Siblings [poseidon.OutputValueLen]felt.Element `json:"siblings"`
	Deltas   [poseidon.OutputValueLen]felt.Element `json:"deltas"`

	Hash *poseidon.Row `json:"hash"`
}

// Trace is the full execution witness handed to the prover frontend.
type Trace struct {
	Cpu         []CpuRow         `json:"cpu"`
	Memory      []MemoryRow      `json:"memory"`
	RangeCheck  []RangeCheckRow  `json:"builtin_rangecheck"`
	Bitwise     []BitwiseRow     `json:"builtin_bitwise"`
	Comparison  []ComparisonRow  `json:"builtin_comparison"`
	Poseidon    []*poseidon.Row  `json:"builtin_poseidon"`
	Storage     []StorageRow     `json:"builtin_storage"`
	StorageHash []StorageHashRow `json:"builtin_storage_hash"`

	// RawBinaryInstructions preserves the program's hex element lines for
	// the program table commitment.
	RawBinaryInstructions []string `json:"raw_binary_instructions"`
}

// InsertStep appends a CPU row.
func (t *Trace) InsertStep(clk uint32, pc uint64, psp felt.Element,
	registers [vm.RegisterNum]felt.Element, instruction, immediate, op1Imm, opcodeMask felt.Element,
	sel RegisterSelector) {
	t.Cpu = append(t.Cpu, CpuRow{
		Clk:           clk,
		Pc:            pc,
		Psp:           psp,
		Registers:     registers,
		Instruction:   instruction,
		ImmediateData: immediate,
		Op1Imm:        op1Imm,
		OpcodeMask:    opcodeMask,
		Selector:      sel,
	})
}

// Requester names the sub-table asking for a range check.
type Requester uint8

const (
	RequesterMemory Requester = iota
	RequesterCpu
	RequesterCmp
	RequesterStorage
)

// InsertRangeCheck appends a range-check row flagged for the requester.
func (t *Trace) InsertRangeCheck(value felt.Element, from Requester) {
	row := RangeCheckRow{Value: value}
	switch from {
	case RequesterMemory:
		row.FilterForMemory = felt.One()
	case RequesterCpu:
		row.FilterForCpu = felt.One()
	case RequesterCmp:
		row.FilterForCmp = felt.One()
	case RequesterStorage:
		row.FilterForStorage = felt.One()
	}
	t.RangeCheck = append(t.RangeCheck, row)
}

// InsertBitwise appends a bitwise row.
func (t *Trace) InsertBitwise(opcodeMask uint64, op0, op1, res felt.Element) {
	t.Bitwise = append(t.Bitwise, BitwiseRow{
		OpcodeMask: felt.New(opcodeMask),
		Op0:        op0,
		Op1:        op1,
		Res:        res,
	})
}

// InsertCmp appends a comparison row.
func (t *Trace) InsertCmp(op0, op1, gte, absDiff felt.Element) {
	t.Comparison = append(t.Comparison, ComparisonRow{
		Op0:             op0,
		Op1:             op1,
		Gte:             gte,
		AbsDiff:         absDiff,
		FilterLookingRc: felt.One(),
	})
}

// InsertPoseidon appends a hash row stamped with its requesting step.
func (t *Trace) InsertPoseidon(row *poseidon.Row, clk uint32, opcodeMask uint64) {
	row.Clk = clk
	row.Opcode = opcodeMask
	t.Poseidon = append(t.Poseidon, row)
}
