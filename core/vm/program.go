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
	"fmt"
	"strconv"
	"strings"

	"github.com/Hodgeson/olavm/prophet"
)

// BinaryProgram is the serialised form of a relocated program: one
// lowercase hex field element per line, plus the prophet side table keyed
// by host PC.
type BinaryProgram struct {
	Bytecode string                      `json:"bytecode"`
	Prophets map[uint64]prophet.Prophet  `json:"prophets"`
}

// NewBinaryProgram serialises a relocated instruction list. The prophet
// table is rebuilt from the instructions' attachments.
func NewBinaryProgram(instructions []*BinaryInstruction) (*BinaryProgram, error) {
	var lines []string
	prophets := make(map[uint64]prophet.Prophet)
	var counter uint64
	for _, inst := range instructions {
		e, imm, err := inst.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode pc %d: %w", counter, err)
		}
		lines = append(lines, fmt.Sprintf("%#x", e))
		if imm != nil {
			lines = append(lines, fmt.Sprintf("%#x", *imm))
		}
		if inst.Prophet != nil {
			p := *inst.Prophet
			p.Host = counter
			prophets[counter] = p
		}
		counter += inst.BinaryLength()
	}
	return &BinaryProgram{
		Bytecode: strings.Join(lines, "\n"),
		Prophets: prophets,
	}, nil
}

// InstructionTable decodes the bytecode into a PC-keyed instruction map
// and returns it together with the program length in field elements.
// Prophets are re-attached to their host instructions.
func (p *BinaryProgram) InstructionTable() (map[uint64]*BinaryInstruction, uint64, error) {
	lines := p.Lines()
	table := make(map[uint64]*BinaryInstruction)
	var pc uint64
	for i := 0; i < len(lines); {
		e, err := parseHexElement(lines[i])
		if err != nil {
			return nil, 0, fmt.Errorf("program line %d: %w", i, err)
		}
		var imm *uint64
		step := 1
		if e&(uint64(1)<<op1ImmBit) != 0 {
			if i+1 >= len(lines) {
				return nil, 0, fmt.Errorf("program line %d: %w", i, ErrMissingImmediate)
			}
			v, err := parseHexElement(lines[i+1])
			if err != nil {
				return nil, 0, fmt.Errorf("program line %d: %w", i+1, err)
			}
			imm = &v
			step = 2
		}
		inst, err := Decode(e, imm)
		if err != nil {
			return nil, 0, fmt.Errorf("program line %d: %w", i, err)
		}
		if ph, ok := p.Prophets[pc]; ok {
			cp := ph
			inst.Prophet = &cp
		}
		table[pc] = inst
		pc += uint64(step)
		i += step
	}
	return table, pc, nil
}

// Lines splits the bytecode into trimmed non-empty lines.
func (p *BinaryProgram) Lines() []string {
	var out []string
	for _, line := range strings.Split(p.Bytecode, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseHexElement(s string) (uint64, error) {
	if !strings.HasPrefix(s, "0x") {
		return 0, fmt.Errorf("vm: element %q is not 0x-prefixed hex", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("vm: element %q: %v", s, err)
	}
	return v, nil
}
