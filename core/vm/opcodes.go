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

// Package vm defines the olavm instruction set: registers, immediates,
// operands and the bit-exact binary instruction encoding over Goldilocks
// field elements.
//
// A binary instruction is one or two field elements. The first element
// packs, from the most significant end: a reserved bit, the op1-immediate
// flag at bit 62, the op0 register selector one-hot at bits 53..61, the
// op1 selector at bits 44..52, the dst selector at bits 35..43, and the
// opcode one-hot at bits 12..34. The optional second element carries the
// immediate literal.
package vm

import "fmt"

// OpCode is an instruction code. Its numeric value is the bit position of
// the opcode's one-hot selector inside the instruction element, so
// 1 << op is the opcode's binary bit mask.
type OpCode uint8

const (
	OpSub      OpCode = 12
	OpSStore   OpCode = 13
	OpSLoad    OpCode = 14
	OpPoseidon OpCode = 15
	OpGte      OpCode = 16
	OpNeq      OpCode = 17
	OpNot      OpCode = 18
	OpXor      OpCode = 19
	OpOr       OpCode = 20
	OpAnd      OpCode = 21
	OpRange    OpCode = 22
	OpEnd      OpCode = 23
	OpMStore   OpCode = 24
	OpMLoad    OpCode = 25
	OpRet      OpCode = 26
	OpCall     OpCode = 27
	OpCJmp     OpCode = 28
	OpJmp      OpCode = 29
	OpMov      OpCode = 30
	OpAssert   OpCode = 31
	OpEq       OpCode = 32
	OpMul      OpCode = 33
	OpAdd      OpCode = 34
)

// opcodeLowBit and opcodeHighBit bound the opcode one-hot block.
const (
	opcodeLowBit  = 12
	opcodeHighBit = 34
)

// opcodeMnemonics maps every opcode to its assembly mnemonic.
var opcodeMnemonics = map[OpCode]string{
	OpAdd:      "add",
	OpMul:      "mul",
	OpSub:      "sub",
	OpEq:       "eq",
	OpNeq:      "neq",
	OpAssert:   "assert",
	OpMov:      "mov",
	OpJmp:      "jmp",
	OpCJmp:     "cjmp",
	OpCall:     "call",
	OpRet:      "ret",
	OpMLoad:    "mload",
	OpMStore:   "mstore",
	OpEnd:      "end",
	OpRange:    "range",
	OpAnd:      "and",
	OpOr:       "or",
	OpXor:      "xor",
	OpNot:      "not",
	OpGte:      "gte",
	OpPoseidon: "poseidon",
	OpSLoad:    "sload",
	OpSStore:   "sstore",
}

// opcodeByMnemonic is the reverse lookup used by the assembler.
var opcodeByMnemonic = func() map[string]OpCode {
	m := make(map[string]OpCode, len(opcodeMnemonics))
	for op, name := range opcodeMnemonics {
		m[name] = op
	}
	return m
}()

// OpCodeFromMnemonic resolves an assembly mnemonic to its opcode.
func OpCodeFromMnemonic(s string) (OpCode, bool) {
	op, ok := opcodeByMnemonic[s]
	return op, ok
}

// Mask returns the opcode's one-hot binary bit mask.
func (op OpCode) Mask() uint64 { return 1 << uint(op) }

func (op OpCode) String() string {
	if name, ok := opcodeMnemonics[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// IsMemory reports whether the opcode addresses memory through the
// flattened anchor/offset/value three-slot layout.
func (op OpCode) IsMemory() bool {
	return op == OpMLoad || op == OpMStore
}
