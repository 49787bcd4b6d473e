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

import "errors"

// Every fault is local to the step that raised it: the execution loop
// never retries, and the first error propagates to the caller verbatim.
var (
	// ErrAssertFail is returned when an assert compares unequal values.
	ErrAssertFail = errors.New("processor: assert fail")

	// ErrU32RangeCheckFail is returned when a range operand exceeds u32.
	ErrU32RangeCheckFail = errors.New("processor: u32 range check fail")

	// ErrWriteOnceViolation is returned on a second write to a write-once
	// address.
	ErrWriteOnceViolation = errors.New("processor: write-once violation")

	// ErrReadBeforeWrite is returned when a read observes an address that
	// was never written.
	ErrReadBeforeWrite = errors.New("processor: read of unwritten address")

	// ErrUnresolvedPC is returned when no instruction starts at PC.
	ErrUnresolvedPC = errors.New("processor: no instruction at pc")

	// ErrFlagNotBinary is returned when a cjmp flag is neither 0 nor 1.
	ErrFlagNotBinary = errors.New("processor: cjmp flag not binary")

	// ErrProphetReturnType is returned when a prophet script returns a
	// scalar instead of the outputs-plus-heap-pointer list.
	ErrProphetReturnType = errors.New("processor: prophet return type mismatch")

	// ErrNoProphetRunner is returned when a prophet fires with no script
	// collaborator configured.
	ErrNoProphetRunner = errors.New("processor: no prophet runner configured")

	// ErrRunAfterEnd is returned when execution is resumed past END.
	ErrRunAfterEnd = errors.New("processor: run after end")

	// ErrPCOperand is returned when pc is used as an instruction operand.
	ErrPCOperand = errors.New("processor: pc cannot be an operand")

	// ErrProphetMalformed is returned when a prophet code string is not
	// wrapped in %{ ... %}.
	ErrProphetMalformed = errors.New("processor: malformed prophet code")
)
