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

package poseidon

import "github.com/Hodgeson/olavm/core/felt"

// The round constant schedule is a nothing-up-my-sleeve sequence: a
// splitmix64 stream seeded with the field modulus, rejection-sampled into
// the canonical range. The schedule is normative for this VM; every
// implementation and the constraint system must reproduce it exactly.
const roundConstantSeed uint64 = felt.Order

// roundConstants holds Width constants per round for all rounds.
var roundConstants [totalRounds * Width]felt.Element

func init() {
	state := roundConstantSeed
	next := func() uint64 {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		return z ^ (z >> 31)
	}
	for i := range roundConstants {
		v := next()
		for v >= felt.Order {
			v = next()
		}
		roundConstants[i] = felt.New(v)
	}
}
