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

package asm

import (
	"encoding/json"
	"fmt"

	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/prophet"
	"github.com/inconshreveable/log15"
)

var logger = log15.New("module", "asm")

// Assemble runs the full pipeline: relocate the bundle, then encode it to
// a binary program.
func Assemble(bundle Bundle) (*vm.BinaryProgram, error) {
	relocated, err := Relocate(bundle)
	if err != nil {
		return nil, err
	}
	return EncodeToProgram(relocated)
}

// AssembleJSON assembles a bundle serialised as JSON, the format the
// compiler frontend emits.
func AssembleJSON(data []byte) (*vm.BinaryProgram, error) {
	var bundle Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("asm: bundle decode: %v", err)
	}
	return Assemble(bundle)
}

// EncodeToProgram lowers a relocated instruction list into binary
// instructions and serialises them.
func EncodeToProgram(bundle *RelocatedBundle) (*vm.BinaryProgram, error) {
	var instructions []*vm.BinaryInstruction
	var counter uint64
	for _, inst := range bundle.Instructions {
		bin, err := lowerInstruction(inst, bundle)
		if err != nil {
			return nil, fmt.Errorf("asm: pc %d (%s): %w", counter, inst.Asm, err)
		}
		if inst.Prophet != nil {
			bin.Prophet = &prophet.Prophet{
				Host:    counter,
				Code:    inst.Prophet.Code,
				Inputs:  inst.Prophet.Inputs,
				Outputs: inst.Prophet.Outputs,
			}
		}
		logger.Debug("encoded", "pc", counter, "asm", inst.Asm, "binary", bin.String())
		instructions = append(instructions, bin)
		counter += inst.BinaryLength()
	}
	return vm.NewBinaryProgram(instructions)
}

// lowerInstruction converts one assembly instruction's operands into
// binary operands. Memory instructions are flattened into the
// anchor/offset/value three-slot layout.
func lowerInstruction(inst *Instruction, bundle *RelocatedBundle) (*vm.BinaryInstruction, error) {
	bin := &vm.BinaryInstruction{Opcode: inst.Opcode}
	if inst.Opcode.IsMemory() {
		anchor, offset, err := splitMemOperand(inst)
		if err != nil {
			return nil, err
		}
		value, err := memValueRegister(inst)
		if err != nil {
			return nil, err
		}
		bin.Op0 = anchor
		bin.Op1 = offset
		bin.Dst = value
		return bin, nil
	}

	var err error
	if bin.Op0, err = lowerOperand(inst.Op0, bundle); err != nil {
		return nil, err
	}
	if bin.Op1, err = lowerOperand(inst.Op1, bundle); err != nil {
		return nil, err
	}
	if bin.Dst, err = lowerOperand(inst.Dst, bundle); err != nil {
		return nil, err
	}
	return bin, nil
}

// splitMemOperand extracts the anchor register and the offset operand of
// a memory instruction's address expression.
func splitMemOperand(inst *Instruction) (vm.Operand, vm.Operand, error) {
	addr := inst.Op1
	if inst.Opcode == vm.OpMStore {
		addr = inst.Op0
	}
	switch a := addr.(type) {
	case vm.RegisterWithOffset:
		return vm.RegisterOperand{Register: a.Register},
			vm.ImmediateOperand{Value: a.Offset}, nil
	case vm.RegisterWithFactoredRegOffset:
		return vm.RegisterOperand{Register: a.Register},
			vm.RegisterWithFactor{Register: a.OffsetRegister, Factor: a.Factor}, nil
	}
	return nil, nil, fmt.Errorf("%w: address %q", ErrBadOperandShape, addr.Token())
}

// memValueRegister returns the value register slot of a memory
// instruction: the destination of an mload, the source of an mstore.
func memValueRegister(inst *Instruction) (vm.Operand, error) {
	value := inst.Dst
	if inst.Opcode == vm.OpMStore {
		value = inst.Op1
	}
	reg, ok := value.(vm.RegisterOperand)
	if !ok {
		return nil, fmt.Errorf("%w: value %q", ErrBadOperandShape, value.Token())
	}
	return vm.RegisterOperand{Register: reg.Register}, nil
}

// lowerOperand maps an assembly operand to its binary counterpart,
// resolving labels through the jump namespace and identifiers through the
// call namespace.
func lowerOperand(op vm.AsmOperand, bundle *RelocatedBundle) (vm.Operand, error) {
	switch o := op.(type) {
	case nil:
		return nil, nil
	case vm.ImmediateOperand:
		return o, nil
	case vm.RegisterOperand:
		return o, nil
	case vm.SpecialRegOperand:
		return o, nil
	case vm.LabelOperand:
		host, ok := bundle.LabelsJmp[o.Value]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvedLabel, o.Value)
		}
		imm, err := vm.NewImmediate(host)
		if err != nil {
			return nil, err
		}
		return vm.ImmediateOperand{Value: imm}, nil
	case vm.IdentifierOperand:
		host, ok := bundle.LabelsCall[o.Value]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvedLabel, o.Value)
		}
		imm, err := vm.NewImmediate(host)
		if err != nil {
			return nil, err
		}
		return vm.ImmediateOperand{Value: imm}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrBadOperandShape, op.Token())
}
