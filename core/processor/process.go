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

// Package processor implements the execution core: a deterministic,
// single-threaded register machine over the Goldilocks field that decodes
// a binary program, drives the memory and storage subsystems, invokes
// prophet hints, and emits the per-subtable trace rows the prover
// consumes.
package processor

import (
	"fmt"

	"github.com/Hodgeson/olavm/core/felt"
	"github.com/Hodgeson/olavm/core/state"
	"github.com/Hodgeson/olavm/core/trace"
	"github.com/Hodgeson/olavm/core/vm"
	"github.com/Hodgeson/olavm/crypto/poseidon"
	"github.com/Hodgeson/olavm/prophet"
	"github.com/Hodgeson/olavm/trie"
	"github.com/inconshreveable/log15"
)

var logger = log15.New("module", "processor")

// Process owns the whole machine state of one execution. Nothing in it is
// shared: the memory map, storage view and trace buffers belong to this
// instance alone, and the loop has no suspension points.
type Process struct {
	Clk       uint32
	Pc        uint64
	Registers [vm.RegisterNum]felt.Element
	Psp       felt.Element
	Hp        felt.Element

	// CtxRegisters stacks the executing contract address; the top entry
	// salts storage key hashing.
	CtxRegisters []state.TreeKey

	Memory     *Memory
	Storage    *state.Storage
	StorageLog []state.WitnessStorageLog
	Trace      *trace.Trace

	tree   *trie.AccountTree
	runner prophet.Runner

	instructions map[uint64]*vm.BinaryInstruction
	programLen   uint64
	ended        bool

	sel trace.RegisterSelector
}

// NewProcess creates a process bound to an account tree and an optional
// prophet runner. The context stack starts with the zero address.
func NewProcess(tree *trie.AccountTree, runner prophet.Runner) *Process {
	return &Process{
		Psp:          felt.New(vm.PspStartAddr),
		Hp:           felt.New(vm.HpStartAddr),
		CtxRegisters: []state.TreeKey{{}},
		Memory:       NewMemory(),
		Storage:      state.NewStorage(),
		Trace:        new(trace.Trace),
		tree:         tree,
		runner:       runner,
	}
}

// Execute decodes the program and runs it to END or the first fault,
// then derives the sorted sub-tables. The returned trace is only valid
// on a nil error; partial traces are discarded by the caller.
func (p *Process) Execute(program *vm.BinaryProgram) (*trace.Trace, error) {
	if p.ended {
		return nil, ErrRunAfterEnd
	}
	table, length, err := program.InstructionTable()
	if err != nil {
		return nil, err
	}
	p.instructions = table
	p.programLen = length
	p.Trace.RawBinaryInstructions = program.Lines()

	for !p.ended {
		if err := p.step(); err != nil {
			return nil, err
		}
		if p.Pc >= p.programLen {
			break
		}
	}
	if err := p.finalize(); err != nil {
		return nil, err
	}
	return p.Trace, nil
}

// step executes exactly one instruction and appends its CPU row.
func (p *Process) step() error {
	inst, ok := p.instructions[p.Pc]
	if !ok {
		return fmt.Errorf("%w: clk %d pc %d", ErrUnresolvedPC, p.Clk, p.Pc)
	}

	pcStatus := p.Pc
	registersStatus := p.Registers
	pspStatus := p.Psp
	p.sel = trace.RegisterSelector{}

	encoded, imm, err := inst.Encode()
	if err != nil {
		return err
	}
	var immediate felt.Element
	op1Imm := felt.Zero()
	if imm != nil {
		immediate = felt.New(*imm)
		op1Imm = felt.One()
	}

	if err := p.execute(inst); err != nil {
		return err
	}

	if inst.Prophet != nil {
		if err := p.runProphet(inst.Prophet); err != nil {
			return err
		}
	}

	p.Trace.InsertStep(p.Clk, pcStatus, pspStatus, registersStatus,
		felt.New(encoded), immediate, op1Imm, felt.New(inst.Opcode.Mask()), p.sel)

	p.Clk++
	return nil
}

// operandValue evaluates a binary operand and records its register
// selector flag.
func (p *Process) operandValue(op vm.Operand, sel *[vm.RegisterNum]felt.Element) (felt.Element, error) {
	switch o := op.(type) {
	case vm.ImmediateOperand:
		return o.Value.Felt(), nil
	case vm.RegisterOperand:
		sel[o.Register.Index()] = felt.One()
		return p.Registers[o.Register.Index()], nil
	case vm.SpecialRegOperand:
		switch o.SpecialReg {
		case vm.SpecialPSP:
			return p.Psp, nil
		default:
			return felt.Zero(), ErrPCOperand
		}
	}
	return felt.Zero(), fmt.Errorf("processor: unexpected operand %T", op)
}

// registerOf insists the operand is a plain register.
func registerOf(op vm.Operand) (vm.Register, error) {
	reg, ok := op.(vm.RegisterOperand)
	if !ok {
		return 0, fmt.Errorf("processor: operand %T is not a register", op)
	}
	return reg.Register, nil
}

// setDst writes the result register and records its selector.
func (p *Process) setDst(op vm.Operand, value felt.Element) error {
	reg, err := registerOf(op)
	if err != nil {
		return err
	}
	p.Registers[reg.Index()] = value
	p.sel.Dst = value
	p.sel.DstRegSel[reg.Index()] = felt.One()
	return nil
}

// fp returns the current frame pointer value.
func (p *Process) fp() felt.Element {
	return p.Registers[vm.FpRegister.Index()]
}

// execute dispatches one decoded instruction.
func (p *Process) execute(inst *vm.BinaryInstruction) error {
	step := inst.BinaryLength()

	switch inst.Opcode {
	case vm.OpMov:
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op1 = op1
		p.Pc += step
		return p.setDst(inst.Dst, op1)

	case vm.OpNot:
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op1 = op1
		result := felt.Sub(felt.Neg(felt.One()), op1)
		p.Pc += step
		return p.setDst(inst.Dst, result)

	case vm.OpAdd, vm.OpMul, vm.OpSub, vm.OpEq, vm.OpNeq,
		vm.OpAnd, vm.OpOr, vm.OpXor, vm.OpGte:
		return p.executeBinaryOp(inst, step)

	case vm.OpAssert:
		op0, err := p.operandValue(inst.Op0, &p.sel.Op0RegSel)
		if err != nil {
			return err
		}
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op0, p.sel.Op1 = op0, op1
		if !op0.Equal(&op1) {
			return fmt.Errorf("%w: clk %d pc %d left %d right %d",
				ErrAssertFail, p.Clk, p.Pc, felt.U64(op0), felt.U64(op1))
		}
		p.Pc += step
		return nil

	case vm.OpJmp:
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op1 = op1
		p.Pc = felt.U64(op1)
		return nil

	case vm.OpCJmp:
		op0, err := p.operandValue(inst.Op0, &p.sel.Op0RegSel)
		if err != nil {
			return err
		}
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op0, p.sel.Op1 = op0, op1
		switch felt.U64(op0) {
		case 1:
			p.Pc = felt.U64(op1)
		case 0:
			p.Pc += step
		default:
			return fmt.Errorf("%w: clk %d pc %d flag %d",
				ErrFlagNotBinary, p.Clk, p.Pc, felt.U64(op0))
		}
		return nil

	case vm.OpCall:
		return p.executeCall(inst, step)

	case vm.OpRet:
		return p.executeRet(inst)

	case vm.OpMLoad, vm.OpMStore:
		return p.executeMemOp(inst, step)

	case vm.OpRange:
		op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
		if err != nil {
			return err
		}
		p.sel.Op1 = op1
		if felt.U64(op1) > uint64(^uint32(0)) {
			return fmt.Errorf("%w: value %d", ErrU32RangeCheckFail, felt.U64(op1))
		}
		p.Trace.InsertRangeCheck(op1, trace.RequesterCpu)
		p.Pc += step
		return nil

	case vm.OpSStore:
		return p.executeSStore(step)

	case vm.OpSLoad:
		return p.executeSLoad(step)

	case vm.OpPoseidon:
		var input [poseidon.InputValueLen]felt.Element
		for i := 0; i < poseidon.InputValueLen; i++ {
			input[i] = p.Registers[i+1]
		}
		digest, row := poseidon.HashValues(input)
		row.FilterLookedNormal = true
		for i := 0; i < poseidon.OutputValueLen; i++ {
			p.Registers[i+1] = digest[i]
		}
		p.updateHashKey(digest)
		p.Trace.InsertPoseidon(row, p.Clk, inst.Opcode.Mask())
		p.Pc += step
		return nil

	case vm.OpEnd:
		p.ended = true
		return nil
	}
	return fmt.Errorf("%w: %s", vm.ErrUnknownOpcodeMask, inst.Opcode)
}

// executeBinaryOp covers the three-operand arithmetic, comparison and
// bitwise instructions.
func (p *Process) executeBinaryOp(inst *vm.BinaryInstruction, step uint64) error {
	op0, err := p.operandValue(inst.Op0, &p.sel.Op0RegSel)
	if err != nil {
		return err
	}
	op1, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
	if err != nil {
		return err
	}
	p.sel.Op0, p.sel.Op1 = op0, op1

	var result felt.Element
	switch inst.Opcode {
	case vm.OpAdd:
		result = felt.Add(op0, op1)
	case vm.OpMul:
		result = felt.Mul(op0, op1)
	case vm.OpSub:
		result = felt.Sub(op0, op1)
	case vm.OpEq:
		p.sel.Aux0 = felt.InverseOrZero(felt.Sub(op0, op1))
		result = felt.Bool(op0.Equal(&op1))
	case vm.OpNeq:
		p.sel.Aux0 = felt.InverseOrZero(felt.Sub(op0, op1))
		result = felt.Bool(!op0.Equal(&op1))
	case vm.OpAnd:
		result = felt.New(felt.U64(op0) & felt.U64(op1))
		p.Trace.InsertBitwise(inst.Opcode.Mask(), op0, op1, result)
	case vm.OpOr:
		result = felt.New(felt.U64(op0) | felt.U64(op1))
		p.Trace.InsertBitwise(inst.Opcode.Mask(), op0, op1, result)
	case vm.OpXor:
		result = felt.New(felt.U64(op0) ^ felt.U64(op1))
		p.Trace.InsertBitwise(inst.Opcode.Mask(), op0, op1, result)
	case vm.OpGte:
		gte := felt.U64(op0) >= felt.U64(op1)
		result = felt.Bool(gte)
		var absDiff felt.Element
		if gte {
			absDiff = felt.Sub(op0, op1)
		} else {
			absDiff = felt.Sub(op1, op0)
		}
		p.Trace.InsertRangeCheck(absDiff, trace.RequesterCmp)
		p.Trace.InsertCmp(op0, op1, result, absDiff)
	}
	p.Pc += step
	return p.setDst(inst.Dst, result)
}

// executeCall saves the return PC into the frame and transfers control.
// The saved frame pointer at [fp-2] is read through so the CPU row can
// expose it in aux1.
func (p *Process) executeCall(inst *vm.BinaryInstruction, step uint64) error {
	target, err := p.operandValue(inst.Op1, &p.sel.Op1RegSel)
	if err != nil {
		return err
	}
	fp := felt.U64(p.fp())
	returnPc := felt.New(p.Pc + step)

	if err := p.Memory.Write(fp-1, p.Clk, inst.Opcode.Mask(), true, returnPc); err != nil {
		return err
	}
	savedFp, err := p.Memory.Read(fp-2, p.Clk, inst.Opcode.Mask(), true)
	if err != nil {
		return err
	}

	p.sel.Op0 = felt.New(fp - 1)
	p.sel.Op1 = target
	p.sel.Dst = returnPc
	p.sel.Aux0 = felt.New(fp - 2)
	p.sel.Aux1 = savedFp

	p.Pc = felt.U64(target)
	return nil
}

// executeRet restores PC and the frame pointer from the frame.
func (p *Process) executeRet(inst *vm.BinaryInstruction) error {
	fp := felt.U64(p.fp())
	returnPc, err := p.Memory.Read(fp-1, p.Clk, inst.Opcode.Mask(), true)
	if err != nil {
		return err
	}
	savedFp, err := p.Memory.Read(fp-2, p.Clk, inst.Opcode.Mask(), true)
	if err != nil {
		return err
	}

	p.sel.Op0 = felt.New(fp - 1)
	p.sel.Aux0 = felt.New(fp - 2)
	p.sel.Dst = returnPc
	p.sel.Aux1 = savedFp

	p.Registers[vm.FpRegister.Index()] = savedFp
	p.Pc = felt.U64(returnPc)
	return nil
}

// executeMemOp handles the flattened three-slot memory instructions.
func (p *Process) executeMemOp(inst *vm.BinaryInstruction, step uint64) error {
	anchorReg, err := registerOf(inst.Op0)
	if err != nil {
		return err
	}
	anchor := p.Registers[anchorReg.Index()]
	p.sel.Op0 = anchor
	p.sel.Op0RegSel[anchorReg.Index()] = felt.One()

	var offset felt.Element
	switch o := inst.Op1.(type) {
	case vm.ImmediateOperand:
		offset = o.Value.Felt()
	case vm.RegisterWithFactor:
		p.sel.Op1RegSel[o.Register.Index()] = felt.One()
		offset = felt.Mul(o.Factor.Felt(), p.Registers[o.Register.Index()])
	default:
		return fmt.Errorf("processor: bad memory offset operand %T", inst.Op1)
	}
	addr := felt.U64(felt.Add(anchor, offset))
	p.sel.Op1 = offset
	p.sel.Aux0 = offset
	p.sel.Aux1 = felt.New(addr)

	valueReg, err := registerOf(inst.Dst)
	if err != nil {
		return err
	}

	if inst.Opcode == vm.OpMStore {
		value := p.Registers[valueReg.Index()]
		p.sel.Dst = value
		p.sel.DstRegSel[valueReg.Index()] = felt.One()
		if err := p.Memory.Write(addr, p.Clk, inst.Opcode.Mask(), true, value); err != nil {
			return err
		}
	} else {
		value, err := p.Memory.Read(addr, p.Clk, inst.Opcode.Mask(), true)
		if err != nil {
			return err
		}
		p.Registers[valueReg.Index()] = value
		p.sel.Dst = value
		p.sel.DstRegSel[valueReg.Index()] = felt.One()
	}
	p.Pc += step
	return nil
}

// updateHashKey mirrors a four-element digest into the operand columns of
// the CPU row, the link the hash sub-table lookup uses.
func (p *Process) updateHashKey(key [poseidon.OutputValueLen]felt.Element) {
	p.sel.Op0 = key[0]
	p.sel.Op1 = key[1]
	p.sel.Dst = key[2]
	p.sel.Aux0 = key[3]
}

// executeSStore writes R5..R8 under the tree key hashed from the current
// contract address and the slot key in R1..R4.
func (p *Process) executeSStore(step uint64) error {
	var slotKey state.TreeKey
	var value state.TreeValue
	for i := 0; i < state.TreeValueLen; i++ {
		slotKey[i] = p.Registers[i+1]
		value[i] = p.Registers[i+5]
	}
	storageKey := state.StorageKey{ContractAddr: p.contractAddr(), SlotKey: slotKey}
	treeKey, hashRow := storageKey.HashedKey()

	prev, ok := p.Storage.Latest(treeKey)
	if !ok && p.tree != nil {
		if leaf, found := p.tree.Hash(state.TreeKeyToLeafPath(treeKey)); found {
			prev = leaf
		}
	}
	p.StorageLog = append(p.StorageLog, state.WitnessStorageLog{
		Log:           state.NewWriteLog(treeKey, value),
		PreviousValue: prev,
	})
	p.Storage.Write(p.Clk, felt.New(vm.OpSStore.Mask()), treeKey, value, prev)
	p.updateHashKey(treeKey)
	p.Trace.InsertPoseidon(hashRow, p.Clk, vm.OpSStore.Mask())

	p.Pc += step
	return nil
}

// executeSLoad reads the slot keyed by R1..R4 into R1..R4: the newest
// in-run value if the key was touched, else the persisted leaf, else
// zeros.
func (p *Process) executeSLoad(step uint64) error {
	var slotKey state.TreeKey
	for i := 0; i < state.TreeValueLen; i++ {
		slotKey[i] = p.Registers[i+1]
	}
	storageKey := state.StorageKey{ContractAddr: p.contractAddr(), SlotKey: slotKey}
	treeKey, hashRow := storageKey.HashedKey()

	value, ok := p.Storage.Latest(treeKey)
	if !ok {
		if p.tree != nil {
			if leaf, found := p.tree.Hash(state.TreeKeyToLeafPath(treeKey)); found {
				value = leaf
			} else {
				logger.Warn("sload of absent key", "key", state.TreeKeyToLeafPath(treeKey))
				value = state.EmptyTreeValue()
			}
		} else {
			value = state.EmptyTreeValue()
		}
	}
	for i := 0; i < state.TreeValueLen; i++ {
		p.Registers[i+1] = value[i]
	}

	p.StorageLog = append(p.StorageLog, state.WitnessStorageLog{
		Log:           state.NewReadLog(treeKey, value),
		PreviousValue: state.EmptyTreeValue(),
	})
	p.Storage.Read(p.Clk, felt.New(vm.OpSLoad.Mask()), treeKey, value)
	p.updateHashKey(value)
	p.Trace.InsertPoseidon(hashRow, p.Clk, vm.OpSLoad.Mask())

	p.Pc += step
	return nil
}

// contractAddr is the top of the context register stack.
func (p *Process) contractAddr() state.TreeKey {
	return p.CtxRegisters[len(p.CtxRegisters)-1]
}
