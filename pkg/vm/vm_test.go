package vm

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"stcc1/pkg/tac"
)

// writeCode builds a TAC file from instrs and returns its path.
func writeCode(t *testing.T, instrs []tac.Instr) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.tac")
	store, err := tac.Init(path)
	require.NoError(t, err)
	for _, in := range instrs {
		_, err := store.Append(in)
		require.NoError(t, err)
	}
	require.NoError(t, store.Close())
	return path
}

func runToFinish(t *testing.T, path string) *Engine {
	t.Helper()
	e := New(DefaultConfig())
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))
	require.Equal(t, OK, e.Start(0))
	rc := e.Run()
	require.Equal(t, OK, rc, "engine ended in error %v", e.GetLastError())
	require.Equal(t, StateFinished, e.GetState())
	return e
}

// TestS1ReturnZero: int main(){ return 0; }
func TestS1ReturnZero(t *testing.T) {
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpReturn, Operand1: tac.Immediate(0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 0, e.Result().AsI32())
}

// TestS2SequentialAssignments: int main(){ int x=10; int y=20; int z=x+y; return z; }
func TestS2SequentialAssignments(t *testing.T) {
	varX, varY, varZ := uint16(1), uint16(2), uint16(3)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Immediate(10)},
		{Opcode: tac.OpAssign, Result: tac.Var(varY, 0), Operand1: tac.Immediate(20)},
		{Opcode: tac.OpAdd, Result: tac.Temp(0, 0), Operand1: tac.Var(varX, 0), Operand2: tac.Var(varY, 0)},
		{Opcode: tac.OpAssign, Result: tac.Var(varZ, 0), Operand1: tac.Temp(0, 0)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varZ, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 30, e.Result().AsI32())
}

// TestS3OperatorPrecedence: int main(){ int x=1+2*3-4/2; return x; } == 5
func TestS3OperatorPrecedence(t *testing.T) {
	varX := uint16(1)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpMul, Result: tac.Temp(0, 0), Operand1: tac.Immediate(2), Operand2: tac.Immediate(3)},
		{Opcode: tac.OpAdd, Result: tac.Temp(1, 0), Operand1: tac.Immediate(1), Operand2: tac.Temp(0, 0)},
		{Opcode: tac.OpDiv, Result: tac.Temp(2, 0), Operand1: tac.Immediate(4), Operand2: tac.Immediate(2)},
		{Opcode: tac.OpSub, Result: tac.Temp(3, 0), Operand1: tac.Temp(1, 0), Operand2: tac.Temp(2, 0)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Temp(3, 0)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varX, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 5, e.Result().AsI32())
}

// TestS4IfElse: int main(){ int x=10; if(x>5)x=x+1; else x=x-1; return x; } == 11
func TestS4IfElse(t *testing.T) {
	varX := uint16(1)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Immediate(10)},
		{Opcode: tac.OpGt, Result: tac.Temp(0, 0), Operand1: tac.Var(varX, 0), Operand2: tac.Immediate(5)},
		{Opcode: tac.OpIfFalse, Operand1: tac.Temp(0, 0), Operand2: tac.Label(2)},
		{Opcode: tac.OpAdd, Result: tac.Temp(1, 0), Operand1: tac.Var(varX, 0), Operand2: tac.Immediate(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Temp(1, 0)},
		{Opcode: tac.OpGoto, Operand1: tac.Label(3)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(2)},
		{Opcode: tac.OpSub, Result: tac.Temp(2, 0), Operand1: tac.Var(varX, 0), Operand2: tac.Immediate(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Temp(2, 0)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(3)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varX, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 11, e.Result().AsI32())
}

// TestS5WhileLoop: int main(){ int i=0,s=0; while(i<10){s=s+i;i=i+1;} return s; } == 45
func TestS5WhileLoop(t *testing.T) {
	varI, varS := uint16(1), uint16(2)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varI, 0), Operand1: tac.Immediate(0)},
		{Opcode: tac.OpAssign, Result: tac.Var(varS, 0), Operand1: tac.Immediate(0)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(2)}, // start
		{Opcode: tac.OpLt, Result: tac.Temp(0, 0), Operand1: tac.Var(varI, 0), Operand2: tac.Immediate(10)},
		{Opcode: tac.OpIfFalse, Operand1: tac.Temp(0, 0), Operand2: tac.Label(3)}, // end
		{Opcode: tac.OpAdd, Result: tac.Temp(1, 0), Operand1: tac.Var(varS, 0), Operand2: tac.Var(varI, 0)},
		{Opcode: tac.OpAssign, Result: tac.Var(varS, 0), Operand1: tac.Temp(1, 0)},
		{Opcode: tac.OpAdd, Result: tac.Temp(2, 0), Operand1: tac.Var(varI, 0), Operand2: tac.Immediate(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varI, 0), Operand1: tac.Temp(2, 0)},
		{Opcode: tac.OpGoto, Operand1: tac.Label(2)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(3)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varS, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 45, e.Result().AsI32())
}

// TestS6FunctionCall: int add(int a,int b){return a+b;} int main(){return add(5,10);} == 15
func TestS6FunctionCall(t *testing.T) {
	varA, varB := uint16(1), uint16(2)
	path := writeCode(t, []tac.Instr{
		// main at address 1
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpParam, Operand1: tac.Immediate(5)},
		{Opcode: tac.OpParam, Operand1: tac.Immediate(10)},
		{Opcode: tac.OpCall, Result: tac.Temp(0, 0), Operand1: tac.Label(2)},
		{Opcode: tac.OpReturn, Operand1: tac.Temp(0, 0)},
		// add at label 2
		{Opcode: tac.OpLabel, Operand1: tac.Label(2)},
		{Opcode: tac.OpAssign, Result: tac.Var(varA, 0), Operand1: tac.Operand{Kind: tac.OperandParam, Index: 0}},
		{Opcode: tac.OpAssign, Result: tac.Var(varB, 0), Operand1: tac.Operand{Kind: tac.OperandParam, Index: 1}},
		{Opcode: tac.OpAdd, Result: tac.Temp(0, 0), Operand1: tac.Var(varA, 0), Operand2: tac.Var(varB, 0)},
		{Opcode: tac.OpReturn, Operand1: tac.Temp(0, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 15, e.Result().AsI32())
}

// TestS7FactorialCall mirrors S7's iterative factorial(5) == 120,
// exercised as a call into a loop-based callee rather than recursion (no
// test in this file makes a recursive call).
func TestS7FactorialCall(t *testing.T) {
	varN, varR, varI := uint16(1), uint16(2), uint16(3)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpParam, Operand1: tac.Immediate(5)},
		{Opcode: tac.OpCall, Result: tac.Temp(0, 0), Operand1: tac.Label(2)},
		{Opcode: tac.OpReturn, Operand1: tac.Temp(0, 0)},

		{Opcode: tac.OpLabel, Operand1: tac.Label(2)}, // factorial(n)
		{Opcode: tac.OpAssign, Result: tac.Var(varN, 0), Operand1: tac.Operand{Kind: tac.OperandParam, Index: 0}},
		{Opcode: tac.OpAssign, Result: tac.Var(varR, 0), Operand1: tac.Immediate(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varI, 0), Operand1: tac.Immediate(1)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(3)}, // start
		{Opcode: tac.OpLe, Result: tac.Temp(1, 0), Operand1: tac.Var(varI, 0), Operand2: tac.Var(varN, 0)},
		{Opcode: tac.OpIfFalse, Operand1: tac.Temp(1, 0), Operand2: tac.Label(4)}, // end
		{Opcode: tac.OpMul, Result: tac.Temp(2, 0), Operand1: tac.Var(varR, 0), Operand2: tac.Var(varI, 0)},
		{Opcode: tac.OpAssign, Result: tac.Var(varR, 0), Operand1: tac.Temp(2, 0)},
		{Opcode: tac.OpAdd, Result: tac.Temp(3, 0), Operand1: tac.Var(varI, 0), Operand2: tac.Immediate(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varI, 0), Operand1: tac.Temp(3, 0)},
		{Opcode: tac.OpGoto, Operand1: tac.Label(3)},
		{Opcode: tac.OpLabel, Operand1: tac.Label(4)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varR, 0)},
	})
	e := runToFinish(t, path)
	require.EqualValues(t, 120, e.Result().AsI32())
}

func TestDivisionByZeroReturnsErrorState(t *testing.T) {
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpDiv, Result: tac.Temp(0, 0), Operand1: tac.Immediate(1), Operand2: tac.Immediate(0)},
		{Opcode: tac.OpReturn, Operand1: tac.Temp(0, 0)},
	})
	e := New(DefaultConfig())
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))
	require.Equal(t, OK, e.Start(0))
	rc := e.Run()
	require.Equal(t, DivisionByZero, rc)
	require.Equal(t, StateError, e.GetState())
}

func TestMaxStepsEnforced(t *testing.T) {
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpGoto, Operand1: tac.Label(1)},
	})
	cfg := DefaultConfig()
	cfg.MaxSteps = 5
	e := New(cfg)
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))
	require.Equal(t, OK, e.Start(0))
	rc := e.Run()
	require.Equal(t, MaxSteps, rc)
	require.EqualValues(t, 5, e.GetStepCount())
}

func TestBreakpointHaltsBeforeExecution(t *testing.T) {
	varX := uint16(1)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Immediate(1)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varX, 0)},
	})
	e := New(DefaultConfig())
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))
	require.Equal(t, OK, e.AddBreakpoint(2))
	require.Equal(t, OK, e.Start(0))
	rc := e.Run()
	require.Equal(t, BreakpointHit, rc)
	require.Equal(t, StatePaused, e.GetState())
	require.EqualValues(t, 2, e.GetPC())

	v, code := e.GetVariable(varX)
	require.Equal(t, OK, code)
	require.EqualValues(t, 0, v.AsI32(), "instruction at the breakpoint must not have executed")
}

func TestTracingRecordsExecutedInstructions(t *testing.T) {
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpReturn, Operand1: tac.Immediate(7)},
	})
	cfg := DefaultConfig()
	cfg.EnableTracing = true
	e := New(cfg)
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))
	require.Equal(t, OK, e.Start(0))
	require.Equal(t, OK, e.Run())

	require.Equal(t, 2, e.GetTraceCount())
	entry, code := e.GetTraceEntry(0)
	require.Equal(t, OK, code)
	require.EqualValues(t, 1, entry.Address)
}

func TestHookCanSuppressInstructionExecution(t *testing.T) {
	varX := uint16(1)
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpAssign, Result: tac.Var(varX, 0), Operand1: tac.Immediate(99)},
		{Opcode: tac.OpReturn, Operand1: tac.Var(varX, 0)},
	})
	e := New(DefaultConfig())
	require.NoError(t, e.LoadCode(path))
	require.Equal(t, OK, e.SetEntryPoint(1))

	fired := 0
	e.AddHook(HookInstruction, func(eng *Engine, ev HookEvent, ud any) bool {
		fired++
		return ev.Address != 2 // suppress the ASSIGN at address 2
	}, nil)

	require.Equal(t, OK, e.Start(0))
	// Step through by hand: the label, then the suppressed assign (pc stays
	// at 2, so the return is never reached by these two steps).
	require.Equal(t, OK, e.Step())
	require.Equal(t, OK, e.Step())
	v, _ := e.GetVariable(varX)
	require.EqualValues(t, 0, v.AsI32(), "suppressed instruction must not have run")
	require.Greater(t, fired, 0)
}

func TestDeterministicAcrossReruns(t *testing.T) {
	path := writeCode(t, []tac.Instr{
		{Opcode: tac.OpLabel, Operand1: tac.Label(1)},
		{Opcode: tac.OpMul, Result: tac.Temp(0, 0), Operand1: tac.Immediate(6), Operand2: tac.Immediate(7)},
		{Opcode: tac.OpReturn, Operand1: tac.Temp(0, 0)},
	})
	var results []int32
	for i := 0; i < 3; i++ {
		e := runToFinish(t, path)
		results = append(results, e.Result().AsI32())
	}
	require.Equal(t, []int32{42, 42, 42}, results)
}
