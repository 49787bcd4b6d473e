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

// Package asm turns labeled assembly text into a relocated binary
// program. The pipeline is tokenise (this file), relocate labels and
// prophet markers to binary PCs (relocate.go), then encode to field
// elements (encode.go).
package asm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/prophet"
)

// ErrUnknownOpcode is returned for an unrecognised mnemonic.
var ErrUnknownOpcode = errors.New("asm: unknown opcode")

// ErrBadOperandShape is returned when an operand cannot occupy its
// position for the given opcode.
var ErrBadOperandShape = errors.New("asm: bad operand shape")

// AsmProphet is a prophet sidecar as it arrives in the bundle, still
// keyed by its marker label.
type AsmProphet struct {
	Label   string          `json:"label"`
	Code    string          `json:"code"`
	Inputs  []prophet.Input `json:"inputs"`
	Outputs []string        `json:"outputs"`
}

// Bundle is the assembler input: the program text plus prophet sidecars.
type Bundle struct {
	Program  string       `json:"program"`
	Prophets []AsmProphet `json:"prophets"`
}

// Instruction is one tokenised assembly instruction before relocation.
type Instruction struct {
	Opcode vm.OpCode
	Op0    vm.AsmOperand
	Op1    vm.AsmOperand
	Dst    vm.AsmOperand
	// Asm preserves the source line for diagnostics and the origin map.
	Asm string
	// Prophet is attached by the relocator when the instruction follows a
	// prophet marker.
	Prophet *AsmProphet
}

// BinaryLength is 2 when any operand carries an immediate (literal,
// label, identifier or an offset form), else 1.
func (inst *Instruction) BinaryLength() uint64 {
	for _, op := range []vm.AsmOperand{inst.Op0, inst.Op1, inst.Dst} {
		if op != nil && vm.HasImmediate(op) {
			return 2
		}
	}
	return 1
}

// lineKind discriminates parsed source lines.
type lineKind uint8

const (
	lineInstruction lineKind = iota
	lineJumpLabel
	lineCallLabel
	lineProphetLabel
)

// sourceLine is one classified line of the program text.
type sourceLine struct {
	kind  lineKind
	label string
	inst  *Instruction
}

// parseLine classifies and tokenises a single trimmed source line.
func parseLine(line string) (*sourceLine, error) {
	if strings.HasSuffix(line, ":") {
		label := strings.TrimSuffix(line, ":")
		switch {
		case strings.HasPrefix(label, ".PROPHET"):
			return &sourceLine{kind: lineProphetLabel, label: label}, nil
		case strings.HasPrefix(label, "."):
			return &sourceLine{kind: lineJumpLabel, label: label}, nil
		default:
			return &sourceLine{kind: lineCallLabel, label: label}, nil
		}
	}
	inst, err := parseInstruction(line)
	if err != nil {
		return nil, err
	}
	return &sourceLine{kind: lineInstruction, inst: inst}, nil
}

// parseInstruction tokenises an instruction line and distributes the
// operand tokens into the op0/op1/dst slots mandated by the opcode.
func parseInstruction(line string) (*Instruction, error) {
	tokens := strings.Fields(line)
	opcode, ok := vm.OpCodeFromMnemonic(strings.ToLower(tokens[0]))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, tokens[0])
	}
	operands := make([]vm.AsmOperand, 0, 3)
	for _, tok := range tokens[1:] {
		op, err := vm.ParseAsmOperand(strings.TrimSuffix(tok, ","))
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
	}

	inst := &Instruction{Opcode: opcode, Asm: line}
	want := func(n int) error {
		if len(operands) != n {
			return fmt.Errorf("%w: %s takes %d operands, got %d", ErrBadOperandShape, opcode, n, len(operands))
		}
		return nil
	}

	switch opcode {
	case vm.OpMov, vm.OpNot:
		if err := want(2); err != nil {
			return nil, err
		}
		inst.Dst, inst.Op1 = operands[0], operands[1]
	case vm.OpAssert, vm.OpCJmp:
		if err := want(2); err != nil {
			return nil, err
		}
		inst.Op0, inst.Op1 = operands[0], operands[1]
	case vm.OpJmp, vm.OpCall, vm.OpRange:
		if err := want(1); err != nil {
			return nil, err
		}
		inst.Op1 = operands[0]
	case vm.OpRet, vm.OpEnd, vm.OpSStore, vm.OpSLoad, vm.OpPoseidon:
		if err := want(0); err != nil {
			return nil, err
		}
	case vm.OpAdd, vm.OpMul, vm.OpSub, vm.OpEq, vm.OpNeq,
		vm.OpAnd, vm.OpOr, vm.OpXor, vm.OpGte:
		if err := want(3); err != nil {
			return nil, err
		}
		inst.Dst, inst.Op0, inst.Op1 = operands[0], operands[1], operands[2]
	case vm.OpMStore:
		if err := want(2); err != nil {
			return nil, err
		}
		inst.Op0, inst.Op1 = operands[0], operands[1]
	case vm.OpMLoad:
		if err := want(2); err != nil {
			return nil, err
		}
		inst.Dst, inst.Op1 = operands[0], operands[1]
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, tokens[0])
	}
	if err := checkShapes(inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// checkShapes validates operand variants against their slots.
func checkShapes(inst *Instruction) error {
	badSlot := func(pos string, op vm.AsmOperand) error {
		return fmt.Errorf("%w: %s %s %q", ErrBadOperandShape, inst.Opcode, pos, op.Token())
	}
	isMemAddr := func(op vm.AsmOperand) bool {
		switch op.(type) {
		case vm.RegisterWithOffset, vm.RegisterWithFactoredRegOffset:
			return true
		}
		return false
	}
	isReg := func(op vm.AsmOperand) bool {
		_, ok := op.(vm.RegisterOperand)
		return ok
	}

	if inst.Dst != nil && !isReg(inst.Dst) {
		return badSlot("dst", inst.Dst)
	}
	switch inst.Opcode {
	case vm.OpMStore:
		if !isMemAddr(inst.Op0) {
			return badSlot("op0", inst.Op0)
		}
		if !isReg(inst.Op1) {
			return badSlot("op1", inst.Op1)
		}
	case vm.OpMLoad:
		if !isMemAddr(inst.Op1) {
			return badSlot("op1", inst.Op1)
		}
	case vm.OpRange:
		if !isReg(inst.Op1) {
			return badSlot("op1", inst.Op1)
		}
	default:
		if inst.Op0 != nil && !isReg(inst.Op0) {
			return badSlot("op0", inst.Op0)
		}
		if inst.Op1 != nil && isMemAddr(inst.Op1) {
			return badSlot("op1", inst.Op1)
		}
	}
	return nil
}
