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

// Package felt provides value-style helpers around the Goldilocks field
// element used throughout the VM. Arithmetic is delegated to
// gnark-crypto's goldilocks implementation; this package only smooths the
// pointer-based API into expression-friendly calls and fixes the
// canonical u64 conversions.
package felt

import (
	"github.com/consensys/gnark-crypto/field/goldilocks"
)

// Element is the Goldilocks field element, p = 2^64 - 2^32 + 1.
type Element = goldilocks.Element

// Order is the field modulus as a u64.
const Order uint64 = 18446744069414584321

// Zero returns the additive identity.
func Zero() Element {
	var z Element
	return z
}

// One returns the multiplicative identity.
func One() Element {
	var z Element
	z.SetOne()
	return z
}

// New returns the field element for the canonical value v.
func New(v uint64) Element {
	var z Element
	z.SetUint64(v)
	return z
}

// Bool maps true to one and false to zero.
func Bool(b bool) Element {
	if b {
		return One()
	}
	return Zero()
}

// U64 returns the canonical u64 representation of e, in [0, Order).
func U64(e Element) uint64 {
	return e.Bits()[0]
}

// Add returns a + b.
func Add(a, b Element) Element {
	var z Element
	z.Add(&a, &b)
	return z
}

// Sub returns a - b.
func Sub(a, b Element) Element {
	var z Element
	z.Sub(&a, &b)
	return z
}

// Mul returns a * b.
func Mul(a, b Element) Element {
	var z Element
	z.Mul(&a, &b)
	return z
}

// Neg returns -a.
func Neg(a Element) Element {
	var z Element
	z.Neg(&a)
	return z
}

// InverseOrZero returns a^-1 when a is nonzero and zero otherwise. The
// comparison sub-tables rely on exactly this convention for their aux
// columns.
func InverseOrZero(a Element) Element {
	if a.IsZero() {
		return Zero()
	}
	var z Element
	z.Inverse(&a)
	return z
}
