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
	"errors"
	"fmt"
	"math/bits"

	"github.com/Hodgeson/olavm/prophet"
)

// Instruction element bit layout. The immediate flag and the three
// register selector blocks sit above the opcode one-hot block; bit 63 and
// bits 0..11 are reserved and must stay clear.
const (
	op1ImmBit  = 62
	op0SelBase = 53
	op1SelBase = 44
	dstSelBase = 35
)

// ErrUnknownOpcodeMask is returned by Decode when the opcode block does
// not contain exactly one known bit.
var ErrUnknownOpcodeMask = errors.New("vm: unknown opcode mask")

// ErrSelectorNotOneHot is returned by Decode when a register selector
// block carries more than one bit.
var ErrSelectorNotOneHot = errors.New("vm: register selector is not one-hot")

// ErrMissingImmediate is returned by Decode when the immediate flag is set
// but no immediate element follows.
var ErrMissingImmediate = errors.New("vm: immediate element missing")

// ErrBadOperand is returned by Encode for an operand that cannot occupy
// its slot.
var ErrBadOperand = errors.New("vm: operand not encodable in slot")

// BinaryInstruction is one relocated instruction. For MLOAD/MSTORE the
// operands follow the flattened three-slot layout: Op0 anchors the
// address, Op1 is the offset immediate or factored offset register, and
// Dst names the value register.
type BinaryInstruction struct {
	Opcode  OpCode
	Op0     Operand
	Op1     Operand
	Dst     Operand
	Prophet *prophet.Prophet
}

// BinaryLength is the number of field elements the instruction occupies.
func (inst *BinaryInstruction) BinaryLength() uint64 {
	if _, imm := inst.immediate(); imm {
		return 2
	}
	return 1
}

// immediate returns the literal carried in the immediate slot, if any.
func (inst *BinaryInstruction) immediate() (Immediate, bool) {
	switch op := inst.Op1.(type) {
	case ImmediateOperand:
		return op.Value, true
	case RegisterWithFactor:
		return op.Factor, true
	}
	if op, ok := inst.Op0.(ImmediateOperand); ok {
		return op.Value, true
	}
	return Immediate{}, false
}

// Encode packs the instruction into its opcode element and optional
// immediate element.
func (inst *BinaryInstruction) Encode() (uint64, *uint64, error) {
	var e uint64
	e |= uint64(1) << uint(inst.Opcode)

	setSel := func(op Operand, base uint, slot string) error {
		switch o := op.(type) {
		case nil:
			return nil
		case RegisterOperand:
			e |= uint64(1) << (base + uint(o.Register))
			return nil
		case RegisterWithFactor:
			e |= uint64(1) << (base + uint(o.Register))
			return nil
		case ImmediateOperand:
			return nil
		case SpecialRegOperand:
			// psp reads encode as an empty slot; the decoder
			// reconstructs them from the opcode shape.
			if o.SpecialReg == SpecialPSP {
				return nil
			}
			return fmt.Errorf("%w: %s in %s", ErrBadOperand, o.SpecialReg, slot)
		default:
			return fmt.Errorf("%w: %T in %s", ErrBadOperand, op, slot)
		}
	}
	if err := setSel(inst.Op0, op0SelBase, "op0"); err != nil {
		return 0, nil, err
	}
	if err := setSel(inst.Op1, op1SelBase, "op1"); err != nil {
		return 0, nil, err
	}
	if err := setSel(inst.Dst, dstSelBase, "dst"); err != nil {
		return 0, nil, err
	}

	if imm, ok := inst.immediate(); ok {
		e |= uint64(1) << op1ImmBit
		v := imm.U64()
		return e, &v, nil
	}
	return e, nil, nil
}

// decodeSelector extracts the register selector at base, insisting on a
// one-hot (or empty) block.
func decodeSelector(e uint64, base uint) (Register, bool, error) {
	block := (e >> base) & 0x1ff
	if block == 0 {
		return 0, false, nil
	}
	if bits.OnesCount64(block) != 1 {
		return 0, false, fmt.Errorf("%w: %#x", ErrSelectorNotOneHot, block)
	}
	return Register(bits.TrailingZeros64(block)), true, nil
}

// Decode is the exact inverse of Encode. imm must be non-nil iff the
// immediate flag is set.
func Decode(e uint64, imm *uint64) (*BinaryInstruction, error) {
	opBlock := e & (((uint64(1) << (opcodeHighBit - opcodeLowBit + 1)) - 1) << opcodeLowBit)
	if bits.OnesCount64(opBlock) != 1 {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownOpcodeMask, e)
	}
	opcode := OpCode(bits.TrailingZeros64(opBlock))
	if _, ok := opcodeMnemonics[opcode]; !ok {
		return nil, fmt.Errorf("%w: %#x", ErrUnknownOpcodeMask, e)
	}

	hasImm := e&(uint64(1)<<op1ImmBit) != 0
	if hasImm && imm == nil {
		return nil, ErrMissingImmediate
	}

	op0Reg, op0Set, err := decodeSelector(e, op0SelBase)
	if err != nil {
		return nil, err
	}
	op1Reg, op1Set, err := decodeSelector(e, op1SelBase)
	if err != nil {
		return nil, err
	}
	dstReg, dstSet, err := decodeSelector(e, dstSelBase)
	if err != nil {
		return nil, err
	}

	inst := &BinaryInstruction{Opcode: opcode}
	if op0Set {
		inst.Op0 = RegisterOperand{Register: op0Reg}
	}
	if dstSet {
		inst.Dst = RegisterOperand{Register: dstReg}
	}

	switch {
	case opcode.IsMemory() && hasImm && op1Set:
		factor, err := NewImmediate(*imm)
		if err != nil {
			return nil, err
		}
		inst.Op1 = RegisterWithFactor{Register: op1Reg, Factor: factor}
	case hasImm:
		value, err := NewImmediate(*imm)
		if err != nil {
			return nil, err
		}
		inst.Op1 = ImmediateOperand{Value: value}
	case op1Set:
		inst.Op1 = RegisterOperand{Register: op1Reg}
	case opcode == OpMov:
		// A mov with neither an op1 selector nor an immediate reads the
		// prophet stack pointer.
		inst.Op1 = SpecialRegOperand{SpecialReg: SpecialPSP}
	}
	return inst, nil
}

func (inst *BinaryInstruction) String() string {
	s := inst.Opcode.String()
	for _, op := range []Operand{inst.Op0, inst.Op1, inst.Dst} {
		if op == nil {
			continue
		}
		switch o := op.(type) {
		case ImmediateOperand:
			s += " " + o.Value.Hex
		case RegisterOperand:
			s += " " + o.Register.String()
		case RegisterWithFactor:
			s += fmt.Sprintf(" %s*%s", o.Factor.Hex, o.Register)
		case SpecialRegOperand:
			s += " " + o.SpecialReg.String()
		}
	}
	return s
}
