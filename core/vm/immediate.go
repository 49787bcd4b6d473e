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
	"math/big"
	"strings"

	"github.com/Hodgeson/olavm/core/felt"
)

// ErrImmediateOverflow is returned when a literal does not fit the field.
var ErrImmediateOverflow = errors.New("vm: immediate overflow")

// ErrImmediateMalformed is returned when a literal is not a number.
var ErrImmediateMalformed = errors.New("vm: immediate is not a valid number")

// Immediate holds a field-canonical literal as its lowercase hex form plus
// the cached u64 value. Negative decimal literals are folded to p - |v| at
// parse time, so the stored value is always canonical.
type Immediate struct {
	Hex string `json:"hex"`

	value uint64
}

// NewImmediate builds an immediate from a canonical u64.
func NewImmediate(v uint64) (Immediate, error) {
	if v >= felt.Order {
		return Immediate{}, fmt.Errorf("%w: %#x", ErrImmediateOverflow, v)
	}
	return Immediate{Hex: fmt.Sprintf("%#x", v), value: v}, nil
}

// ParseImmediate parses a decimal (optionally negative) or 0x-prefixed hex
// literal, rejecting values outside [-(p-1), p).
func ParseImmediate(s string) (Immediate, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return Immediate{}, fmt.Errorf("%w: %q", ErrImmediateMalformed, s)
		}
		if !v.IsUint64() || v.Uint64() >= felt.Order {
			return Immediate{}, fmt.Errorf("%w: %q", ErrImmediateOverflow, s)
		}
		return NewImmediate(v.Uint64())
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Immediate{}, fmt.Errorf("%w: %q", ErrImmediateMalformed, s)
	}
	order := new(big.Int).SetUint64(felt.Order)
	if new(big.Int).Abs(v).Cmp(order) >= 0 {
		return Immediate{}, fmt.Errorf("%w: %q", ErrImmediateOverflow, s)
	}
	if v.Sign() < 0 {
		v.Add(order, v)
	}
	return NewImmediate(v.Uint64())
}

// U64 returns the cached canonical value. Immediates deserialised from
// JSON only carry the hex form, so the cache is refilled lazily.
func (imm Immediate) U64() uint64 {
	if imm.value == 0 && imm.Hex != "" && imm.Hex != "0x0" {
		v, _ := new(big.Int).SetString(strings.TrimPrefix(imm.Hex, "0x"), 16)
		if v != nil && v.IsUint64() {
			return v.Uint64()
		}
	}
	return imm.value
}

// Felt returns the immediate as a field element.
func (imm Immediate) Felt() felt.Element {
	return felt.New(imm.U64())
}

func (imm Immediate) String() string {
	return fmt.Sprintf("%s(%d)", imm.Hex, imm.U64())
}
