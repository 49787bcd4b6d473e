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

package processor

import (
	"fmt"
	"regexp"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/prophet"
)

// prophetBodyRe strips the %{ ... %} wrapper around a prophet script.
var prophetBodyRe = regexp.MustCompile(`(?s)^%\{(.*)%\}$`)

// Prophet inputs are pulled from the low argument registers first, then
// from frame slots starting at [fp-3].
const (
	prophetInputRegStart = 1
	prophetInputRegEnd   = 4
	prophetInputFpStart  = 3
)

// runProphet executes the hint attached to the instruction that just
// retired. Outputs are materialised into the write-once prophet region at
// PSP with clk 0; the final output becomes the new heap pointer.
func (p *Process) runProphet(ph *prophet.Prophet) error {
	if p.runner == nil {
		return fmt.Errorf("%w: host pc %d", ErrNoProphetRunner, ph.Host)
	}
	m := prophetBodyRe.FindStringSubmatch(ph.Code)
	if m == nil {
		return fmt.Errorf("%w: host pc %d", ErrProphetMalformed, ph.Host)
	}
	code := m[1]

	inputs, err := p.prophetInputs(ph)
	if err != nil {
		return err
	}

	result, err := p.runner.Run(code, inputs, map[string]uint64{
		"hp": felt.U64(p.Hp),
	})
	if err != nil {
		return err
	}
	if result.Kind != prophet.MultipleResult || len(result.Values) == 0 {
		return fmt.Errorf("%w: host pc %d", ErrProphetReturnType, ph.Host)
	}

	values := result.Values
	p.Hp = felt.New(values[len(values)-1])
	for _, v := range values[:len(values)-1] {
		if err := p.Memory.Write(felt.U64(p.Psp), 0, 0, false, felt.New(v)); err != nil {
			return err
		}
		p.Psp = felt.Add(p.Psp, felt.One())
	}
	logger.Debug("prophet ran", "host", ph.Host, "outputs", len(values)-1, "hp", felt.U64(p.Hp))
	return nil
}

// prophetInputs gathers the declared inputs. Register-anchored inputs
// read their named register; other register inputs take R1..R3 in turn;
// memory inputs, and register inputs once R1..R3 are used up, walk the
// caller's frame downward from [fp-3]. A declared reference reads through
// the collected value once more.
func (p *Process) prophetInputs(ph *prophet.Prophet) ([]uint64, error) {
	var values []uint64
	regIndex := prophetInputRegStart
	fpOffset := uint64(prophetInputFpStart)

	readOne := func(in prophet.Input) (uint64, error) {
		var v uint64
		if in.StoredIn == prophet.StoredInReg {
			if in.Anchor != "" {
				reg, err := vm.ParseRegister(in.Anchor)
				if err != nil {
					return 0, err
				}
				return felt.U64(p.Registers[reg.Index()]), nil
			}
			if regIndex < prophetInputRegEnd {
				v = felt.U64(p.Registers[regIndex])
				regIndex++
				return v, nil
			}
		}
		addr := felt.U64(p.fp()) - fpOffset
		cell, err := p.Memory.Read(addr, p.Clk, 0, false)
		if err != nil {
			return 0, err
		}
		fpOffset++
		return felt.U64(cell), nil
	}

	for _, in := range ph.Inputs {
		count := in.Length
		if count == 0 {
			count = 1
		}
		for i := uint64(0); i < count; i++ {
			v, err := readOne(in)
			if err != nil {
				return nil, err
			}
			if in.IsRef {
				cell, err := p.Memory.Read(v, p.Clk, 0, false)
				if err != nil {
					return nil, err
				}
				v = felt.U64(cell)
			}
			values = append(values, v)
		}
	}
	return values, nil
}
