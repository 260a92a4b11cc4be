package vm

// HookType enumerates the events an embedder can observe (§4.7.8).
type HookType uint8

const (
	HookCodeStart HookType = iota
	HookCodeEnd
	HookInstruction
	HookMemoryRead
	HookMemoryWrite
	HookBreakpoint
)

// HookEvent carries the event-specific detail passed to a hook callback.
// Fields not meaningful for a given HookType are left zero.
type HookEvent struct {
	Type    HookType
	Address uint32     // CODE_START/CODE_END/INSTRUCTION/BREAKPOINT: the pc
	Opcode  uint16     // INSTRUCTION: the about-to-execute opcode
	MemAddr uint32     // MEMORY_READ/MEMORY_WRITE: the linear-memory address
	MemSize int        // MEMORY_READ/MEMORY_WRITE: access width in bytes
	Value   int32       // MEMORY_WRITE: the value being written
}

// HookFunc is a registered callback. Returning false suppresses the
// default behavior for the current event (§4.7.8); userData is passed
// through unmodified for the embedder's own bookkeeping.
type HookFunc func(e *Engine, event HookEvent, userData any) bool

type hookEntry struct {
	id       uint32
	fn       HookFunc
	userData any
}

// AddHook registers fn for events of kind typ, firing after any
// previously registered hooks of the same type, and returns a stable id
// for later removal.
func (e *Engine) AddHook(typ HookType, fn HookFunc, userData any) uint32 {
	e.nextHookID++
	id := e.nextHookID
	e.hooks[typ] = append(e.hooks[typ], hookEntry{id: id, fn: fn, userData: userData})
	return id
}

// RemoveHook removes the hook with the given id. Returns NotFound if no
// hook with that id is registered, under any type.
func (e *Engine) RemoveHook(id uint32) ReturnCode {
	for typ, entries := range e.hooks {
		for i, h := range entries {
			if h.id == id {
				e.hooks[typ] = append(entries[:i], entries[i+1:]...)
				return OK
			}
		}
	}
	return NotFound
}

// fireHooks invokes every registered hook of typ in registration order and
// reports whether the default behavior should proceed: a single hook
// returning false suppresses it.
func (e *Engine) fireHooks(typ HookType, event HookEvent) bool {
	proceed := true
	for _, h := range e.hooks[typ] {
		if !h.fn(e, event, h.userData) {
			proceed = false
		}
	}
	return proceed
}
