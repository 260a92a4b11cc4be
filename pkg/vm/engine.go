// Package vm implements the TAC execution engine (C9): a small
// interpreting virtual machine that loads a flat array of three-address
// instructions and runs them via a fetch-decode-execute loop, per spec
// §4.7. It consumes only the TAC file to execute, and optionally the
// symbol table and string pool for diagnostic name resolution.
package vm

import (
	"fmt"

	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
	"stcc1/pkg/tac"
)

// Engine is the VM instance. Not safe for concurrent use: the pipeline is
// single-threaded and cooperative (§5), and Engine is driven by exactly
// one logical owner at a time, same as the stores it may open.
type Engine struct {
	cfg Config

	code      []tac.Instr
	labelAddr map[uint16]uint32 // label id -> 1-based instruction address

	pc    uint32
	step  uint64
	state State

	temps []Value
	vars  []Value
	mem   []byte

	callStack []frame

	breakpoints map[uint32]struct{}

	hooks      map[HookType][]hookEntry
	nextHookID uint32

	trace   *traceRing
	tracing bool

	symtab         *symtab.Table
	sstore         *sstore.Pool
	functionLabels map[string]uint16
	symCache       []symCacheEntry

	lastError ReturnCode

	// result holds the value of the outermost RETURN, i.e. the program's
	// overall result, since the entry function has no CALL frame of its
	// own for a result destination to live in.
	result Value

	// pendingParams accumulates PARAM pushes for the next CALL issued by
	// the currently executing frame (§4.7.5 "PARAM v").
	pendingParams []Value
}

// New creates an engine with cfg, applying documented defaults for any
// zero-valued sizing field (MaxSteps is the one exception: a bare
// Config{} leaves it at 0/unlimited, since callers wanting the documented
// 1,000,000-step default must start from DefaultConfig()).
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:         cfg,
		temps:       make([]Value, cfg.MaxTemporaries),
		vars:        make([]Value, cfg.MaxVariables),
		mem:         make([]byte, cfg.MaxMemorySize),
		breakpoints: make(map[uint32]struct{}),
		hooks:       make(map[HookType][]hookEntry),
		trace:       newTraceRing(cfg.MaxTraceEntries),
		tracing:     cfg.EnableTracing,
		state:       StateStopped,
	}
	return e
}

// LoadCode reads every instruction from the TAC store at path into the
// engine's flat code array and builds the label->address table (§4.7.6).
// When cfg.EnableSymbolResolution is set, it also opens the symbol table
// and string pool named in the configuration for name resolution.
func (e *Engine) LoadCode(path string) error {
	store, err := tac.Open(path)
	if err != nil {
		return fmt.Errorf("vm: open tac file: %w", err)
	}
	defer store.Close()

	instrs, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("vm: load tac: %w", err)
	}
	labels := make(map[uint16]uint32, 16)
	for i, ins := range instrs {
		if ins.Opcode != tac.OpLabel {
			continue
		}
		id := ins.Operand1.Label
		if _, dup := labels[id]; dup {
			return fmt.Errorf("vm: duplicate label %d at address %d", id, i+1)
		}
		labels[id] = uint32(i + 1)
	}

	e.code = instrs
	e.labelAddr = labels
	e.pc = 0
	e.step = 0
	e.state = StateStopped
	e.callStack = nil
	e.pendingParams = nil

	if e.cfg.EnableSymbolResolution {
		if err := e.openSymbolResolution(e.cfg); err != nil {
			return err
		}
	}
	return nil
}

// Close releases any symbol/string-pool files opened for resolution.
func (e *Engine) Close() error {
	return e.closeSymbolResolution()
}

// SetEntryPoint sets pc to address directly.
func (e *Engine) SetEntryPoint(address uint32) ReturnCode {
	if address == 0 || address > uint32(len(e.code)) {
		return e.fail(InvalidAddress)
	}
	e.pc = address
	return OK
}

// SetEntryLabel resolves label to its instruction address via the
// load-time label table and sets pc there.
func (e *Engine) SetEntryLabel(label uint16) ReturnCode {
	addr, ok := e.labelAddr[label]
	if !ok {
		return e.fail(NotFound)
	}
	e.pc = addr
	return OK
}

// SetEntryFunction resolves name to a label via the function table built
// from the symbol table at load time, then to an address via the label
// table. Requires symbol resolution to have been enabled (§4.7.6).
func (e *Engine) SetEntryFunction(name string) ReturnCode {
	if e.functionLabels == nil {
		return e.fail(InvalidState)
	}
	label, ok := e.functionLabels[name]
	if !ok {
		return e.fail(NotFound)
	}
	return e.SetEntryLabel(label)
}

// Start transitions the engine to RUNNING at the current pc (set via one
// of the SetEntry* calls). Passing a nonzero pc sets the entry point
// first, mirroring the C contract's start(pc) taking an explicit address.
func (e *Engine) Start(pc uint32) ReturnCode {
	if pc != 0 {
		if rc := e.SetEntryPoint(pc); rc != OK {
			return rc
		}
	}
	if e.pc == 0 {
		return e.fail(InvalidState)
	}
	e.state = StateRunning
	e.lastError = OK
	e.fireHooks(HookCodeStart, HookEvent{Type: HookCodeStart, Address: e.pc})
	return OK
}

// Stop requests a clean halt, callable from within a hook (§5
// "Cancellation/timeout").
func (e *Engine) Stop() ReturnCode {
	if e.state == StateRunning || e.state == StatePaused {
		e.state = StateStopped
	}
	return OK
}

// Reset clears execution state back to STOPPED at pc 0, without
// reloading code or breakpoints/hooks.
func (e *Engine) Reset() ReturnCode {
	e.pc = 0
	e.step = 0
	e.state = StateStopped
	e.callStack = nil
	e.pendingParams = nil
	e.result = Value{}
	for i := range e.temps {
		e.temps[i] = Value{}
	}
	for i := range e.vars {
		e.vars[i] = Value{}
	}
	e.lastError = OK
	return OK
}

// GetState returns the current run state.
func (e *Engine) GetState() State { return e.state }

// GetPC returns the current program counter.
func (e *Engine) GetPC() uint32 { return e.pc }

// GetStepCount returns the number of instructions executed so far.
func (e *Engine) GetStepCount() uint64 { return e.step }

// GetLastError returns the most recent non-OK return code, OK if none.
func (e *Engine) GetLastError() ReturnCode { return e.lastError }

// Result returns the value of the outermost RETURN once the engine has
// reached FINISHED. Zero-value before then.
func (e *Engine) Result() Value { return e.result }

func (e *Engine) fail(code ReturnCode) ReturnCode {
	e.lastError = code
	return code
}

// GetTemp reads temps[id].
func (e *Engine) GetTemp(id uint16) (Value, ReturnCode) {
	if int(id) >= len(e.temps) {
		return Value{}, e.fail(InvalidOperand)
	}
	return e.temps[id], OK
}

// SetTemp writes temps[id].
func (e *Engine) SetTemp(id uint16, v Value) ReturnCode {
	if int(id) >= len(e.temps) {
		return e.fail(InvalidOperand)
	}
	e.temps[id] = v
	return OK
}

// GetVariable reads vars[id].
func (e *Engine) GetVariable(id uint16) (Value, ReturnCode) {
	if int(id) >= len(e.vars) {
		return Value{}, e.fail(InvalidOperand)
	}
	return e.vars[id], OK
}

// SetVariable writes vars[id].
func (e *Engine) SetVariable(id uint16, v Value) ReturnCode {
	if int(id) >= len(e.vars) {
		return e.fail(InvalidOperand)
	}
	e.vars[id] = v
	return OK
}

// AddBreakpoint registers address as a breakpoint.
func (e *Engine) AddBreakpoint(address uint32) ReturnCode {
	e.breakpoints[address] = struct{}{}
	return OK
}

// RemoveBreakpoint clears a single breakpoint address. Removing an
// address with no breakpoint is not an error (idempotent, unlike
// RemoveHook, since addresses are not allocated ids).
func (e *Engine) RemoveBreakpoint(address uint32) ReturnCode {
	delete(e.breakpoints, address)
	return OK
}

// ClearBreakpoints removes every registered breakpoint.
func (e *Engine) ClearBreakpoints() ReturnCode {
	e.breakpoints = make(map[uint32]struct{})
	return OK
}

func (e *Engine) atBreakpoint(addr uint32) bool {
	_, ok := e.breakpoints[addr]
	return ok
}
