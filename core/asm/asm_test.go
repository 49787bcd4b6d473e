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
	"testing"

	"github.com/Hodgeson/olavm/core/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fiboProgram = `main:
.LBL0_0:
mov r0 8
mov r1 1
mov r2 1
mov r3 0
.LBL0_1:
eq r4 r0 r3
cjmp r4 .LBL0_2
add r4 r1 r2
mov r1 r2
mov r2 r4
mov r4 1
add r3 r3 r4
jmp .LBL0_1
.LBL0_2:
end`

func TestRelocateFibo(t *testing.T) {
	bundle, err := Relocate(Bundle{Program: fiboProgram})
	require.NoError(t, err)

	// Four two-element movs precede .LBL0_1.
	assert.Equal(t, uint64(8), bundle.LabelsJmp[".LBL0_1"])
	// eq(1) cjmp(2) add(1) mov(1) mov(1) mov(2) add(1) jmp(2) follow it.
	assert.Equal(t, uint64(19), bundle.LabelsJmp[".LBL0_2"])
	assert.Equal(t, uint64(0), bundle.LabelsCall["main"])
	assert.Len(t, bundle.Instructions, 13)
}

func TestAssembleFiboEncoding(t *testing.T) {
	program, err := Assemble(Bundle{Program: fiboProgram})
	require.NoError(t, err)

	lines := program.Lines()
	require.Equal(t, 20, len(lines))
	// mov r0 8 keeps its reference encoding.
	assert.Equal(t, "0x4000000840000000", lines[0])
	assert.Equal(t, "0x8", lines[1])
	// jmp back to the loop head resolves through the jump namespace.
	assert.Equal(t, "0x4000000020000000", lines[17])
	assert.Equal(t, "0x8", lines[18])
	// Final end.
	assert.Equal(t, "0x800000", lines[19])

	// The encoded program decodes back into an instruction table covering
	// every PC.
	table, length, err := program.InstructionTable()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), length)
	assert.Equal(t, vm.OpEnd, table[19].Opcode)
	assert.Equal(t, vm.OpEq, table[8].Opcode)
}

// Inserting a one-element prefix shifts every resolved target by one.
func TestRelocationStability(t *testing.T) {
	shifted := "mov r5 r5\n" + fiboProgram
	base, err := Relocate(Bundle{Program: fiboProgram})
	require.NoError(t, err)
	moved, err := Relocate(Bundle{Program: shifted})
	require.NoError(t, err)

	for label, pc := range base.LabelsJmp {
		assert.Equal(t, pc+1, moved.LabelsJmp[label], label)
	}
	for label, pc := range base.LabelsCall {
		assert.Equal(t, pc+1, moved.LabelsCall[label], label)
	}
}

func TestBinaryLength(t *testing.T) {
	cases := []struct {
		line string
		want uint64
	}{
		{"mov r0 r1", 1},
		{"mov r0 8", 2},
		{"mov r0 psp", 1},
		{"add r3 r3 r4", 1},
		{"add r3 r3 -2", 2},
		{"mstore [r8,-2] r0", 2},
		{"mload r1 [r8,4*r2]", 2},
		{"jmp .LBL0_0", 2},
		{"call main", 2},
		{"end", 1},
	}
	for _, tc := range cases {
		inst, err := parseInstruction(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, inst.BinaryLength(), tc.line)
	}
}

func TestParseErrors(t *testing.T) {
	_, err := parseInstruction("frobnicate r0 r1")
	assert.ErrorIs(t, err, ErrUnknownOpcode)

	_, err = parseInstruction("mov r0")
	assert.ErrorIs(t, err, ErrBadOperandShape)

	_, err = parseInstruction("mstore r0 r1")
	assert.ErrorIs(t, err, ErrBadOperandShape)

	_, err = parseInstruction("mload r1 r2")
	assert.ErrorIs(t, err, ErrBadOperandShape)

	_, err = parseInstruction("add r0 r1 [r8,1]")
	assert.ErrorIs(t, err, ErrBadOperandShape)

	_, err = parseInstruction("mov r0 0xffffffff00000001")
	assert.ErrorIs(t, err, vm.ErrImmediateOverflow)
}

func TestDuplicateAndUnresolvedLabels(t *testing.T) {
	_, err := Relocate(Bundle{Program: ".LBL0_0:\n.LBL0_0:\nend"})
	assert.ErrorIs(t, err, ErrDuplicateLabel)

	_, err = Relocate(Bundle{Program: "main:\nend"})
	assert.NoError(t, err)

	_, err = Assemble(Bundle{Program: "jmp .LBL9_9\nend"})
	assert.ErrorIs(t, err, ErrUnresolvedLabel)

	_, err = Assemble(Bundle{Program: "call missing\nend"})
	assert.ErrorIs(t, err, ErrUnresolvedLabel)
}

func TestProphetAttachment(t *testing.T) {
	program := `main:
mov r1 9
.PROPHET0_0:
mov r7 psp
end`
	bundle := Bundle{
		Program: program,
		Prophets: []AsmProphet{{
			Label:   ".PROPHET0_0",
			Code:    "%{\n  entry() {\n    uint cid.y = sqrt(cid.x);\n  }\n%}",
			Outputs: []string{"cid.y"},
		}},
	}
	relocated, err := Relocate(bundle)
	require.NoError(t, err)
	// The marker binds to the following instruction: mov r1 9 occupies
	// PCs 0..1, so the host is 2.
	_, ok := relocated.Prophets[2]
	assert.True(t, ok)

	binary, err := Assemble(bundle)
	require.NoError(t, err)
	ph, ok := binary.Prophets[2]
	require.True(t, ok)
	assert.Equal(t, uint64(2), ph.Host)

	table, _, err := binary.InstructionTable()
	require.NoError(t, err)
	require.NotNil(t, table[2].Prophet)
	assert.Equal(t, bundle.Prophets[0].Code, table[2].Prophet.Code)
}

func TestProphetWithoutSidecar(t *testing.T) {
	_, err := Relocate(Bundle{Program: ".PROPHET0_0:\nend"})
	assert.ErrorIs(t, err, ErrUnknownProphet)
}
