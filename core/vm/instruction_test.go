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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imm(t *testing.T, s string) Immediate {
	t.Helper()
	v, err := ParseImmediate(s)
	require.NoError(t, err)
	return v
}

func TestImmediateParse(t *testing.T) {
	_, err := ParseImmediate("0xffffffff00000002")
	assert.ErrorIs(t, err, ErrImmediateOverflow)

	v := imm(t, "999")
	assert.Equal(t, "0x3e7", v.Hex)
	assert.Equal(t, uint64(999), v.U64())

	hex := imm(t, "0xffffffff00000000")
	assert.Equal(t, uint64(0xffffffff00000000), hex.U64())

	neg := imm(t, "-2")
	assert.Equal(t, uint64(0xfffffffeffffffff), neg.U64())

	_, err = ParseImmediate("wtf")
	assert.ErrorIs(t, err, ErrImmediateMalformed)
}

func TestOperandParse(t *testing.T) {
	op, err := ParseAsmOperand("r6")
	require.NoError(t, err)
	assert.Equal(t, RegisterOperand{Register: R6}, op)

	op, err = ParseAsmOperand("[r0,-7]")
	require.NoError(t, err)
	assert.Equal(t, RegisterWithOffset{Register: R0, Offset: imm(t, "-7")}, op)

	op, err = ParseAsmOperand("[r8,4*r2]")
	require.NoError(t, err)
	assert.Equal(t, RegisterWithFactoredRegOffset{
		Register: R8, OffsetRegister: R2, Factor: imm(t, "4"),
	}, op)

	op, err = ParseAsmOperand("-999")
	require.NoError(t, err)
	assert.Equal(t, ImmediateOperand{Value: imm(t, "-999")}, op)

	op, err = ParseAsmOperand("psp")
	require.NoError(t, err)
	assert.Equal(t, SpecialRegOperand{SpecialReg: SpecialPSP}, op)

	op, err = ParseAsmOperand(".LBL0_1")
	require.NoError(t, err)
	assert.Equal(t, LabelOperand{Value: ".LBL0_1"}, op)

	op, err = ParseAsmOperand("fib_recursive")
	require.NoError(t, err)
	assert.Equal(t, IdentifierOperand{Value: "fib_recursive"}, op)

	_, err = ParseAsmOperand("[r9,1]")
	assert.Error(t, err)
}

// Known encodings of the reference binary format.
func TestEncodeVectors(t *testing.T) {
	cases := []struct {
		name string
		inst BinaryInstruction
		want uint64
		imm  *uint64
	}{
		{
			name: "mov r0 8",
			inst: BinaryInstruction{
				Opcode: OpMov,
				Op1:    ImmediateOperand{Value: imm(t, "8")},
				Dst:    RegisterOperand{Register: R0},
			},
			want: 0x4000000840000000,
			imm:  u64p(8),
		},
		{
			name: "mov r4 100",
			inst: BinaryInstruction{
				Opcode: OpMov,
				Op1:    ImmediateOperand{Value: imm(t, "100")},
				Dst:    RegisterOperand{Register: R4},
			},
			want: 0x4000008040000000,
			imm:  u64p(100),
		},
		{
			name: "add r6 r6 1",
			inst: BinaryInstruction{
				Opcode: OpAdd,
				Op0:    RegisterOperand{Register: R6},
				Op1:    ImmediateOperand{Value: imm(t, "1")},
				Dst:    RegisterOperand{Register: R6},
			},
			want: 0x4800020400000000,
			imm:  u64p(1),
		},
		{
			name: "add r6 r8 r6",
			inst: BinaryInstruction{
				Opcode: OpAdd,
				Op0:    RegisterOperand{Register: R8},
				Op1:    RegisterOperand{Register: R6},
				Dst:    RegisterOperand{Register: R6},
			},
			want: 0x2004020400000000,
		},
		{
			name: "not r6 2",
			inst: BinaryInstruction{
				Opcode: OpNot,
				Op1:    ImmediateOperand{Value: imm(t, "2")},
				Dst:    RegisterOperand{Register: R6},
			},
			want: 0x4000020000040000,
			imm:  u64p(2),
		},
		{
			name: "jmp 8",
			inst: BinaryInstruction{
				Opcode: OpJmp,
				Op1:    ImmediateOperand{Value: imm(t, "8")},
			},
			want: 0x4000000020000000,
			imm:  u64p(8),
		},
		{
			name: "call 2",
			inst: BinaryInstruction{
				Opcode: OpCall,
				Op1:    ImmediateOperand{Value: imm(t, "2")},
			},
			want: 0x4000000008000000,
			imm:  u64p(2),
		},
		{
			name: "ret",
			inst: BinaryInstruction{Opcode: OpRet},
			want: 0x0000000004000000,
		},
		{
			name: "end",
			inst: BinaryInstruction{Opcode: OpEnd},
			want: 0x0000000000800000,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, immediate, err := tc.inst.Encode()
			require.NoError(t, err)
			assert.Equal(t, tc.want, e)
			if tc.imm == nil {
				assert.Nil(t, immediate)
			} else {
				require.NotNil(t, immediate)
				assert.Equal(t, *tc.imm, *immediate)
			}
		})
	}
}

func u64p(v uint64) *uint64 { return &v }

// decode(encode(i)) must reproduce i for every well-formed instruction.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	instructions := []BinaryInstruction{
		{Opcode: OpMov, Op1: ImmediateOperand{Value: imm(t, "8")}, Dst: RegisterOperand{Register: R0}},
		{Opcode: OpMov, Op1: SpecialRegOperand{SpecialReg: SpecialPSP}, Dst: RegisterOperand{Register: R7}},
		{Opcode: OpNot, Op1: RegisterOperand{Register: R3}, Dst: RegisterOperand{Register: R5}},
		{Opcode: OpAdd, Op0: RegisterOperand{Register: R1}, Op1: RegisterOperand{Register: R2}, Dst: RegisterOperand{Register: R3}},
		{Opcode: OpSub, Op0: RegisterOperand{Register: R1}, Op1: ImmediateOperand{Value: imm(t, "7")}, Dst: RegisterOperand{Register: R1}},
		{Opcode: OpEq, Op0: RegisterOperand{Register: R0}, Op1: RegisterOperand{Register: R3}, Dst: RegisterOperand{Register: R4}},
		{Opcode: OpGte, Op0: RegisterOperand{Register: R4}, Op1: ImmediateOperand{Value: imm(t, "10")}, Dst: RegisterOperand{Register: R4}},
		{Opcode: OpAssert, Op0: RegisterOperand{Register: R0}, Op1: RegisterOperand{Register: R1}},
		{Opcode: OpCJmp, Op0: RegisterOperand{Register: R4}, Op1: ImmediateOperand{Value: imm(t, "19")}},
		{Opcode: OpJmp, Op1: RegisterOperand{Register: R2}},
		{Opcode: OpCall, Op1: ImmediateOperand{Value: imm(t, "18")}},
		{Opcode: OpRet},
		{Opcode: OpMLoad, Op0: RegisterOperand{Register: R8}, Op1: ImmediateOperand{Value: imm(t, "-7")}, Dst: RegisterOperand{Register: R0}},
		{Opcode: OpMStore, Op0: RegisterOperand{Register: R8}, Op1: ImmediateOperand{Value: imm(t, "-2")}, Dst: RegisterOperand{Register: R8}},
		{Opcode: OpMLoad, Op0: RegisterOperand{Register: R8}, Op1: RegisterWithFactor{Register: R2, Factor: imm(t, "4")}, Dst: RegisterOperand{Register: R1}},
		{Opcode: OpRange, Op1: RegisterOperand{Register: R4}},
		{Opcode: OpAnd, Op0: RegisterOperand{Register: R4}, Op1: RegisterOperand{Register: R3}, Dst: RegisterOperand{Register: R5}},
		{Opcode: OpEnd},
		{Opcode: OpSStore},
		{Opcode: OpSLoad},
		{Opcode: OpPoseidon},
	}
	for _, inst := range instructions {
		inst := inst
		t.Run(inst.String(), func(t *testing.T) {
			e, immediate, err := inst.Encode()
			require.NoError(t, err)
			decoded, err := Decode(e, immediate)
			require.NoError(t, err)
			assert.Equal(t, &inst, decoded)

			if immediate != nil {
				assert.Equal(t, uint64(2), inst.BinaryLength())
			} else {
				assert.Equal(t, uint64(1), inst.BinaryLength())
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	// No opcode bit at all.
	_, err := Decode(0, nil)
	assert.ErrorIs(t, err, ErrUnknownOpcodeMask)

	// Two opcode bits.
	_, err = Decode(OpAdd.Mask()|OpMul.Mask(), nil)
	assert.ErrorIs(t, err, ErrUnknownOpcodeMask)

	// Immediate flag with no immediate element.
	_, err = Decode(uint64(1)<<62|OpMov.Mask()|uint64(1)<<35, nil)
	assert.ErrorIs(t, err, ErrMissingImmediate)

	// Non one-hot dst selector.
	_, err = Decode(OpAdd.Mask()|uint64(3)<<35, nil)
	assert.ErrorIs(t, err, ErrSelectorNotOneHot)
}
