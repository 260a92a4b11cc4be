package vm

// Config enumerates the engine's create-time configuration (§4.7.2). Zero
// sizing fields are replaced by their documented defaults in New; a zero
// MaxSteps is kept and means unlimited.
type Config struct {
	MaxTemporaries int
	MaxVariables   int
	MaxMemorySize  int
	MaxCallDepth   int
	MaxSteps       int // 0 = unlimited

	EnableTracing    bool
	MaxTraceEntries  int
	EnableBoundsCheck bool
	EnableTypeCheck   bool

	SymtabFile             string
	SstoreFile             string
	EnableSymbolResolution bool
}

// DefaultConfig returns the documented defaults (§4.7.2) with tracing,
// bounds checking, type checking, and symbol resolution all off.
func DefaultConfig() Config {
	return Config{
		MaxTemporaries:  1024,
		MaxVariables:    1024,
		MaxMemorySize:   65536,
		MaxCallDepth:    256,
		MaxSteps:        1_000_000,
		MaxTraceEntries: 1024,
	}
}

// withDefaults fills any zero-valued sizing field with its default,
// leaving explicit zero (MaxSteps = unlimited) alone since that is a
// documented, meaningful value rather than "unset".
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTemporaries == 0 {
		c.MaxTemporaries = d.MaxTemporaries
	}
	if c.MaxVariables == 0 {
		c.MaxVariables = d.MaxVariables
	}
	if c.MaxMemorySize == 0 {
		c.MaxMemorySize = d.MaxMemorySize
	}
	if c.MaxCallDepth == 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.MaxTraceEntries == 0 {
		c.MaxTraceEntries = d.MaxTraceEntries
	}
	return c
}
