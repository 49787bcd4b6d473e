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
	"errors"
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set"
)

// ErrDuplicateLabel is returned when a label or identifier is defined
// twice within its namespace.
var ErrDuplicateLabel = errors.New("asm: duplicate label")

// ErrUnresolvedLabel is returned when an operand names a label or
// identifier with no definition.
var ErrUnresolvedLabel = errors.New("asm: unresolved label")

// ErrUnknownProphet is returned when a prophet marker has no sidecar in
// the bundle.
var ErrUnknownProphet = errors.New("asm: prophet marker without sidecar")

// RelocatedBundle is the relocation output: the instruction list with
// prophets attached, plus the two disjoint resolution namespaces. Jump
// labels and call identifiers deliberately live in separate maps; the
// source language relies on that separation.
type RelocatedBundle struct {
	Instructions []*Instruction
	// LabelsJmp maps .LBLx_y jump labels to binary PCs.
	LabelsJmp map[string]uint64
	// LabelsCall maps call identifiers (main, procedures) to binary PCs.
	LabelsCall map[string]uint64
	// Prophets maps host binary PCs to their sidecars.
	Prophets map[uint64]AsmProphet
}

// Relocate walks the bundle's program text with a running binary counter,
// recording label definitions and rebinding prophet markers from source
// order to their host instruction's binary PC.
func Relocate(bundle Bundle) (*RelocatedBundle, error) {
	sidecars := make(map[string]AsmProphet, len(bundle.Prophets))
	for _, p := range bundle.Prophets {
		sidecars[p.Label] = p
	}

	out := &RelocatedBundle{
		LabelsJmp:  make(map[string]uint64),
		LabelsCall: make(map[string]uint64),
		Prophets:   make(map[uint64]AsmProphet),
	}
	seen := mapset.NewSet()
	hosts := mapset.NewSet()

	var counter uint64
	var pendingProphet *AsmProphet
	for _, raw := range strings.Split(bundle.Program, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		parsed, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		switch parsed.kind {
		case lineJumpLabel:
			if !seen.Add("jmp:" + parsed.label) {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, parsed.label)
			}
			out.LabelsJmp[parsed.label] = counter
		case lineCallLabel:
			if !seen.Add("call:" + parsed.label) {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, parsed.label)
			}
			out.LabelsCall[parsed.label] = counter
		case lineProphetLabel:
			sidecar, ok := sidecars[parsed.label]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownProphet, parsed.label)
			}
			pendingProphet = &sidecar
		case lineInstruction:
			inst := parsed.inst
			if pendingProphet != nil {
				if !hosts.Add(counter) {
					return nil, fmt.Errorf("asm: duplicate prophet host %d", counter)
				}
				inst.Prophet = pendingProphet
				out.Prophets[counter] = *pendingProphet
				pendingProphet = nil
			}
			out.Instructions = append(out.Instructions, inst)
			counter += inst.BinaryLength()
		}
	}
	return out, nil
}
