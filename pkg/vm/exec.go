package vm

import "stcc1/pkg/tac"

// Step executes exactly one instruction following the seven-step sequence
// of §4.7.4.
func (e *Engine) Step() ReturnCode {
	if e.state != StateRunning {
		return e.fail(InvalidState)
	}

	// 2. pc >= code_count -> FINISHED. Addresses are 1-based, so pc runs
	// off the end when it exceeds len(code).
	if e.pc == 0 || int(e.pc) > len(e.code) {
		e.state = StateFinished
		e.fireHooks(HookCodeEnd, HookEvent{Type: HookCodeEnd, Address: e.pc})
		return OK
	}

	// 3. Breakpoint check, before execution.
	if e.atBreakpoint(e.pc) {
		e.state = StatePaused
		e.fireHooks(HookBreakpoint, HookEvent{Type: HookBreakpoint, Address: e.pc})
		return e.fail(BreakpointHit)
	}

	instr := e.code[e.pc-1]

	// 4. INSTRUCTION hooks; a false suppresses execution for this step.
	if !e.fireHooks(HookInstruction, HookEvent{Type: HookInstruction, Address: e.pc, Opcode: uint16(instr.Opcode)}) {
		e.step++
		return OK
	}

	// 5. Trace.
	if e.tracing {
		e.trace.push(TraceEntry{Address: e.pc, Step: e.step, Opcode: instr.Opcode})
	}

	// 6. Dispatch.
	nextPC := e.pc + 1
	rc := e.execute(instr, &nextPC)
	if rc != OK {
		e.state = StateError
		return e.fail(rc)
	}
	e.pc = nextPC

	// 7. Step accounting and MAX_STEPS enforcement.
	e.step++
	if e.cfg.MaxSteps > 0 && e.step >= uint64(e.cfg.MaxSteps) {
		e.state = StateError
		return e.fail(MaxSteps)
	}
	if e.state == StateFinished {
		e.fireHooks(HookCodeEnd, HookEvent{Type: HookCodeEnd, Address: e.pc})
	}
	return OK
}

// Run steps until the engine leaves RUNNING state, returning the return
// code of the step that ended the loop (§5 "run() is a bounded loop of
// step").
func (e *Engine) Run() ReturnCode {
	for {
		rc := e.Step()
		if e.state != StateRunning {
			return rc
		}
	}
}

// readOperand evaluates op to an i32 value per §4.7.5's read rules.
func (e *Engine) readOperand(op tac.Operand) (int32, ReturnCode) {
	switch op.Kind {
	case tac.OperandNone:
		return 0, OK
	case tac.OperandImmediateI32:
		return op.Immediate, OK
	case tac.OperandTemp:
		if int(op.ID) >= len(e.temps) {
			return 0, InvalidOperand
		}
		return e.temps[op.ID].AsI32(), OK
	case tac.OperandVar:
		if int(op.ID) >= len(e.vars) {
			return 0, InvalidOperand
		}
		return e.vars[op.ID].AsI32(), OK
	case tac.OperandParam:
		if len(e.callStack) == 0 {
			return 0, InvalidOperand
		}
		fr := &e.callStack[len(e.callStack)-1]
		if int(op.Index) >= len(fr.incomingParams) {
			return 0, InvalidOperand
		}
		return fr.incomingParams[op.Index].AsI32(), OK
	default:
		// LABEL is only a valid jump/call target, never a readable
		// value; FUNCTION/GLOBAL/RETURN_VAL are reserved operand kinds
		// this translator never emits (§4.7.5 "must not silently
		// succeed" extended to unused operand kinds).
		return 0, InvalidOperand
	}
}

// writeResult stores v into the TEMP or VAR destination op names; any
// other destination kind is illegal (§4.7.5 "Writing the result").
func (e *Engine) writeResult(op tac.Operand, v int32) ReturnCode {
	switch op.Kind {
	case tac.OperandTemp:
		if int(op.ID) >= len(e.temps) {
			return InvalidOperand
		}
		e.temps[op.ID] = I32Value(v)
		return OK
	case tac.OperandVar:
		if int(op.ID) >= len(e.vars) {
			return InvalidOperand
		}
		e.vars[op.ID] = I32Value(v)
		return OK
	default:
		return InvalidOperand
	}
}

// execute dispatches a single decoded instruction, mutating *nextPC when
// control flow needs something other than the default pc+1.
func (e *Engine) execute(in tac.Instr, nextPC *uint32) ReturnCode {
	switch in.Opcode {
	case tac.OpNop, tac.OpLabel:
		return OK

	case tac.OpAdd, tac.OpSub, tac.OpMul,
		tac.OpAnd, tac.OpOr, tac.OpXor, tac.OpShl, tac.OpShr,
		tac.OpLogicalAnd, tac.OpLogicalOr,
		tac.OpEq, tac.OpNe, tac.OpLt, tac.OpLe, tac.OpGt, tac.OpGe:
		return e.executeBinary(in)

	case tac.OpDiv, tac.OpMod:
		return e.executeDivMod(in)

	case tac.OpNeg, tac.OpNot, tac.OpBitwiseNot:
		return e.executeUnary(in)

	case tac.OpAssign:
		v, rc := e.readOperand(in.Operand1)
		if rc != OK {
			return rc
		}
		return e.writeResult(in.Result, v)

	case tac.OpGoto:
		addr, rc := e.resolveLabel(in.Operand1)
		if rc != OK {
			return rc
		}
		*nextPC = addr
		return OK

	case tac.OpIfFalse, tac.OpIfTrue:
		cond, rc := e.readOperand(in.Operand1)
		if rc != OK {
			return rc
		}
		taken := (cond == 0) == (in.Opcode == tac.OpIfFalse)
		if taken {
			addr, rc := e.resolveLabel(in.Operand2)
			if rc != OK {
				return rc
			}
			*nextPC = addr
		}
		return OK

	case tac.OpParam:
		v, rc := e.readOperand(in.Operand1)
		if rc != OK {
			return rc
		}
		e.pendingParams = append(e.pendingParams, I32Value(v))
		return OK

	case tac.OpCall:
		return e.executeCall(in, nextPC)

	case tac.OpReturn, tac.OpReturnVoid:
		return e.executeReturn(in, nextPC)

	case tac.OpLoad:
		return e.executeLoad(in)
	case tac.OpStore:
		return e.executeStore(in)
	case tac.OpAddr, tac.OpIndex, tac.OpMember, tac.OpMemberPtr:
		// No struct/array/pointer arithmetic is emitted by this
		// translator (§1 scope); reserved for a later extension.
		return InvalidOperand

	case tac.OpCast, tac.OpSizeof, tac.OpPhi:
		// Unimplemented opcodes must not silently succeed (§4.7.5).
		return InvalidOperand

	default:
		return InvalidOperand
	}
}

func (e *Engine) resolveLabel(op tac.Operand) (uint32, ReturnCode) {
	if op.Kind != tac.OperandLabel {
		return 0, InvalidOperand
	}
	addr, ok := e.labelAddr[op.Label]
	if !ok {
		return 0, InvalidAddress
	}
	return addr, OK
}

func (e *Engine) executeBinary(in tac.Instr) ReturnCode {
	a, rc := e.readOperand(in.Operand1)
	if rc != OK {
		return rc
	}
	b, rc := e.readOperand(in.Operand2)
	if rc != OK {
		return rc
	}
	var r int32
	switch in.Opcode {
	case tac.OpAdd:
		r = a + b
	case tac.OpSub:
		r = a - b
	case tac.OpMul:
		r = a * b
	case tac.OpAnd:
		r = a & b
	case tac.OpOr:
		r = a | b
	case tac.OpXor:
		r = a ^ b
	case tac.OpShl:
		r = a << uint32(b&31)
	case tac.OpShr:
		r = a >> uint32(b&31)
	case tac.OpLogicalAnd:
		r = boolToI32(a != 0 && b != 0)
	case tac.OpLogicalOr:
		r = boolToI32(a != 0 || b != 0)
	case tac.OpEq:
		r = boolToI32(a == b)
	case tac.OpNe:
		r = boolToI32(a != b)
	case tac.OpLt:
		r = boolToI32(a < b)
	case tac.OpLe:
		r = boolToI32(a <= b)
	case tac.OpGt:
		r = boolToI32(a > b)
	case tac.OpGe:
		r = boolToI32(a >= b)
	}
	return e.writeResult(in.Result, r)
}

func (e *Engine) executeDivMod(in tac.Instr) ReturnCode {
	a, rc := e.readOperand(in.Operand1)
	if rc != OK {
		return rc
	}
	b, rc := e.readOperand(in.Operand2)
	if rc != OK {
		return rc
	}
	if b == 0 {
		return DivisionByZero
	}
	var r int32
	if in.Opcode == tac.OpDiv {
		r = a / b
	} else {
		r = a % b
	}
	return e.writeResult(in.Result, r)
}

func (e *Engine) executeUnary(in tac.Instr) ReturnCode {
	a, rc := e.readOperand(in.Operand1)
	if rc != OK {
		return rc
	}
	var r int32
	switch in.Opcode {
	case tac.OpNeg:
		r = -a
	case tac.OpNot:
		r = boolToI32(a == 0)
	case tac.OpBitwiseNot:
		r = ^a
	}
	return e.writeResult(in.Result, r)
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// executeCall implements §4.7.5 CALL: resolve the target, push a frame
// snapshotting the return address, the caller's temp window, the
// destination the RETURN value lands in, and the pending-params
// accumulated since the last CALL, then jump.
func (e *Engine) executeCall(in tac.Instr, nextPC *uint32) ReturnCode {
	addr, rc := e.resolveLabel(in.Operand1)
	if rc != OK {
		return rc
	}
	if len(e.callStack) >= e.cfg.MaxCallDepth {
		return StackOverflow
	}

	savedTemps := make([]Value, len(e.temps))
	copy(savedTemps, e.temps)

	fr := frame{
		returnAddr:     *nextPC,
		savedTemps:     savedTemps,
		resultDest:     in.Result,
		incomingParams: e.pendingParams,
	}
	e.pendingParams = nil
	e.callStack = append(e.callStack, fr)

	for i := range e.temps {
		e.temps[i] = Value{}
	}
	*nextPC = addr
	return OK
}

// executeReturn implements §4.7.5 RETURN/RETURN_VOID: pop the frame,
// restore the caller's temps, write the return value into the matching
// CALL's result destination, and resume at the return address. Popping
// the last frame finishes the program.
func (e *Engine) executeReturn(in tac.Instr, nextPC *uint32) ReturnCode {
	var v int32
	if in.Opcode == tac.OpReturn {
		var rc ReturnCode
		v, rc = e.readOperand(in.Operand1)
		if rc != OK {
			return rc
		}
	}

	if len(e.callStack) == 0 {
		if in.Opcode == tac.OpReturn {
			e.result = I32Value(v)
		}
		e.state = StateFinished
		return OK
	}

	top := e.callStack[len(e.callStack)-1]
	e.callStack = e.callStack[:len(e.callStack)-1]
	copy(e.temps, top.savedTemps)

	if in.Opcode == tac.OpReturn && top.resultDest.Kind != tac.OperandNone {
		if rc := e.writeResult(top.resultDest, v); rc != OK {
			return rc
		}
	}
	*nextPC = top.returnAddr
	return OK
}

func (e *Engine) executeLoad(in tac.Instr) ReturnCode {
	addr, rc := e.readOperand(in.Operand1)
	if rc != OK {
		return rc
	}
	v, rc := e.readMemI32(uint32(addr))
	if rc != OK {
		return rc
	}
	e.fireHooks(HookMemoryRead, HookEvent{Type: HookMemoryRead, Address: e.pc, MemAddr: uint32(addr), MemSize: 4})
	return e.writeResult(in.Result, v)
}

func (e *Engine) executeStore(in tac.Instr) ReturnCode {
	addr, rc := e.readOperand(in.Operand1)
	if rc != OK {
		return rc
	}
	v, rc := e.readOperand(in.Operand2)
	if rc != OK {
		return rc
	}
	if !e.fireHooks(HookMemoryWrite, HookEvent{Type: HookMemoryWrite, Address: e.pc, MemAddr: uint32(addr), MemSize: 4, Value: v}) {
		return OK
	}
	return e.writeMemI32(uint32(addr), v)
}

// readMemI32 always range-checks addr: a Go slice access cannot be made
// unchecked the way the spec's C lineage could. The VAR/TEMP operand
// checks are likewise unconditional; Config.EnableBoundsCheck is not
// consulted anywhere in the engine.
func (e *Engine) readMemI32(addr uint32) (int32, ReturnCode) {
	if int(addr)+4 > len(e.mem) {
		return 0, InvalidAddress
	}
	b := e.mem[addr : addr+4]
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16 | int32(b[3])<<24
	return v, OK
}

func (e *Engine) writeMemI32(addr uint32, v int32) ReturnCode {
	if int(addr)+4 > len(e.mem) {
		return InvalidAddress
	}
	e.mem[addr] = byte(v)
	e.mem[addr+1] = byte(v >> 8)
	e.mem[addr+2] = byte(v >> 16)
	e.mem[addr+3] = byte(v >> 24)
	return OK
}
