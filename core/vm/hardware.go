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
)

// RegisterNum is the number of general purpose registers.
const RegisterNum = 9

// Register identifies one of the general purpose registers r0..r8.
// R8 doubles as the frame pointer by calling convention.
type Register uint8

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
)

// FpRegister is the register used as the frame pointer.
const FpRegister = R8

// ParseRegister parses a register token of the form "r0".."r8".
func ParseRegister(s string) (Register, error) {
	if !strings.HasPrefix(s, "r") {
		return 0, fmt.Errorf("vm: invalid register %q", s)
	}
	idx, err := strconv.Atoi(s[1:])
	if err != nil || idx < 0 || idx >= RegisterNum {
		return 0, fmt.Errorf("vm: invalid register %q", s)
	}
	return Register(idx), nil
}

// Index returns the register's index into the register file.
func (r Register) Index() int { return int(r) }

func (r Register) String() string {
	return fmt.Sprintf("r%d", uint8(r))
}

// SpecialRegister identifies a register outside the general purpose file.
type SpecialRegister uint8

const (
	// SpecialPC is the program counter. It is read-only and never a
	// binary operand.
	SpecialPC SpecialRegister = iota
	// SpecialPSP is the prophet stack pointer. It advances by one for
	// every value a prophet materialises into write-once memory.
	SpecialPSP
)

// ParseSpecialRegister parses "pc" or "psp".
func ParseSpecialRegister(s string) (SpecialRegister, error) {
	switch s {
	case "pc":
		return SpecialPC, nil
	case "psp":
		return SpecialPSP, nil
	}
	return 0, fmt.Errorf("vm: invalid special register %q", s)
}

func (sr SpecialRegister) String() string {
	switch sr {
	case SpecialPC:
		return "pc"
	case SpecialPSP:
		return "psp"
	}
	return "unknown"
}
