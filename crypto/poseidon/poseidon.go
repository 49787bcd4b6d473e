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

// Package poseidon implements the Poseidon permutation over the
// Goldilocks field: state width 12, x^7 S-box, 4 + 22 + 4 rounds, and an
// MDS layer built from a circulant matrix plus a diagonal correction.
// Besides the plain permutation it emits the intermediate state snapshots
// the hash sub-table of the execution trace is built from.
package poseidon

import (
	"github.com/Hodgeson/olavm/core/felt"
)

const (
	// Width is the permutation state width in field elements.
	Width = 12
	// InputValueLen is the number of rate elements fed from registers.
	InputValueLen = 8
	// OutputValueLen is the number of digest elements taken from the
	// permuted state.
	OutputValueLen = 4

	fullRoundsHalf = 4
	partialRounds  = 22
	totalRounds    = 2*fullRoundsHalf + partialRounds
)

// mdsCirc is the first row of the circulant part of the MDS matrix.
var mdsCirc = [Width]uint64{17, 15, 41, 16, 2, 28, 13, 13, 39, 18, 34, 20}

// mdsDiag is the diagonal correction; only the first entry is nonzero.
var mdsDiag = [Width]uint64{8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

// Row captures the intermediate states of one permutation, in the shape
// the hash sub-table consumes: the state after each of the first three
// opening full rounds, the first state element after every partial round,
// the state after each of the first three closing full rounds, and the
// final state.
type Row struct {
	Clk       uint32          `json:"clk"`
	Opcode    uint64          `json:"opcode"`
	Input     [Width]felt.Element `json:"input"`
	Full0     [fullRoundsHalf - 1][Width]felt.Element `json:"full_0"`
	Partial   [partialRounds]felt.Element             `json:"partial"`
	Full1     [fullRoundsHalf - 1][Width]felt.Element `json:"full_1"`
	Output    [Width]felt.Element `json:"output"`
	FilterLookedNormal bool `json:"filter_looked_normal"`
	FilterLookedTreeKey bool `json:"filter_looked_tree_key"`
}

// sbox is the x^7 monomial.
func sbox(x felt.Element) felt.Element {
	var x2, x4, x6, x7 felt.Element
	x2.Square(&x)
	x4.Square(&x2)
	x6.Mul(&x4, &x2)
	x7.Mul(&x6, &x)
	return x7
}

// mdsLayer multiplies the state by the MDS matrix.
func mdsLayer(state *[Width]felt.Element) {
	var out [Width]felt.Element
	for r := 0; r < Width; r++ {
		var acc felt.Element
		for c := 0; c < Width; c++ {
			coeff := felt.New(mdsCirc[(c-r+Width)%Width])
			var term felt.Element
			term.Mul(&coeff, &state[c])
			acc.Add(&acc, &term)
		}
		if mdsDiag[r] != 0 {
			coeff := felt.New(mdsDiag[r])
			var term felt.Element
			term.Mul(&coeff, &state[r])
			acc.Add(&acc, &term)
		}
		out[r] = acc
	}
	*state = out
}

// addRoundConstants adds the constants of round r to the state.
func addRoundConstants(state *[Width]felt.Element, round int) {
	for i := 0; i < Width; i++ {
		state[i].Add(&state[i], &roundConstants[round*Width+i])
	}
}

// Permute runs the permutation on a copy of input and returns the output
// state together with the trace snapshots.
func Permute(input [Width]felt.Element) ([Width]felt.Element, *Row) {
	row := &Row{Input: input}
	state := input

	round := 0
	for f := 0; f < fullRoundsHalf; f++ {
		addRoundConstants(&state, round)
		for i := 0; i < Width; i++ {
			state[i] = sbox(state[i])
		}
		mdsLayer(&state)
		if f < fullRoundsHalf-1 {
			row.Full0[f] = state
		}
		round++
	}
	for p := 0; p < partialRounds; p++ {
		addRoundConstants(&state, round)
		state[0] = sbox(state[0])
		mdsLayer(&state)
		row.Partial[p] = state[0]
		round++
	}
	for f := 0; f < fullRoundsHalf; f++ {
		addRoundConstants(&state, round)
		for i := 0; i < Width; i++ {
			state[i] = sbox(state[i])
		}
		mdsLayer(&state)
		if f < fullRoundsHalf-1 {
			row.Full1[f] = state
		}
		round++
	}
	row.Output = state
	return state, row
}

// HashValues absorbs up to eight rate elements with a zero capacity and
// returns the four digest elements plus the intermediate trace row.
func HashValues(values [InputValueLen]felt.Element) ([OutputValueLen]felt.Element, *Row) {
	var state [Width]felt.Element
	copy(state[:InputValueLen], values[:])
	out, row := Permute(state)
	var digest [OutputValueLen]felt.Element
	copy(digest[:], out[:OutputValueLen])
	return digest, row
}

// HashPair hashes two four-element children into a four-element parent,
// the node combiner of the account tree.
func HashPair(left, right [OutputValueLen]felt.Element) ([OutputValueLen]felt.Element, *Row) {
	var values [InputValueLen]felt.Element
	copy(values[:OutputValueLen], left[:])
	copy(values[OutputValueLen:], right[:])
	return HashValues(values)
}
