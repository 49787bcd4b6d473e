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

// Package prophet defines the boundary to the off-chain hint interpreter.
// A prophet is a script attached to a host instruction; the processor
// feeds it inputs pulled from registers or frame slots and materialises
// its outputs into write-once memory. The script language itself is the
// collaborator's concern: the core only ships code strings across this
// interface and never parses script syntax.
package prophet

// StoredIn values for Input.
const (
	StoredInReg = "reg"
	StoredInMem = "mem"
)

// Input describes one declared prophet input.
type Input struct {
	Name     string `json:"name"`
	Length   uint64 `json:"length"`
	IsRef    bool   `json:"is_ref"`
	StoredIn string `json:"stored_in"`
	Anchor   string `json:"anchor"`
}

// Prophet is a hint bound to a host PC after relocation.
type Prophet struct {
	Host    uint64   `json:"host"`
	Code    string   `json:"code"`
	Inputs  []Input  `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ResultKind discriminates the two shapes a script run may return.
type ResultKind uint8

const (
	// SingleResult is a scalar return. The processor rejects it: prophet
	// scripts must return the PSP outputs plus the new heap pointer.
	SingleResult ResultKind = iota
	// MultipleResult is a list return; the final element is the new heap
	// pointer and the preceding elements are PSP outputs.
	MultipleResult
)

// NumberResult is the value returned by a script run.
type NumberResult struct {
	Kind   ResultKind
	Values []uint64
}

// Single builds a scalar result.
func Single(v uint64) NumberResult {
	return NumberResult{Kind: SingleResult, Values: []uint64{v}}
}

// Multiple builds a list result.
func Multiple(vs []uint64) NumberResult {
	return NumberResult{Kind: MultipleResult, Values: vs}
}

// Runner executes a prophet script body with the given inputs. The ctx
// map carries named ambient values; the processor always supplies the
// current heap pointer under "hp".
type Runner interface {
	Run(code string, inputs []uint64, ctx map[string]uint64) (NumberResult, error)
}
