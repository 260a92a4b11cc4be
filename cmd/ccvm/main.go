// ccvm - STCC1 embedded VM runner / interactive debugger
//
// Usage: ccvm [flags] <tac.bin>
//
// Loads a TAC file and runs it to completion, or, with -step, drops into
// a single-key interactive debugger (step/continue/breakpoints/trace)
// modeled on emul/main.go's raw-terminal setup for the WUT-4 emulator.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"stcc1/pkg/vm"
)

var (
	symFile    = flag.String("sym", "", "symbol table file, for name resolution in traces/dumps")
	sstoreFile = flag.String("sstore", "", "string pool file, required alongside -sym")
	entry      = flag.String("entry", "main", `entry point: a function name, "@<label>", or "#<address>"`)
	traceFile  = flag.String("trace", "", "write execution trace to file after the run")
	maxSteps   = flag.Int("max-steps", 0, "override the engine's default step limit (0 = engine default)")
	breakAt    = flag.String("break", "", "comma-separated breakpoint addresses")
	step       = flag.Bool("step", false, "drop into the interactive single-key debugger instead of running to completion")
)

var savedTermState *term.State

func setupTerminal() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("get terminal state: %w", err)
	}
	savedTermState = state
	if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	return nil
}

func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
		savedTermState = nil
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "ccvm: %v\n", err)
		os.Exit(1)
	}
}

func run(tacPath string) error {
	cfg := vm.DefaultConfig()
	if *maxSteps != 0 {
		cfg.MaxSteps = *maxSteps
	}
	if *traceFile != "" || *step {
		cfg.EnableTracing = true
	}
	if *symFile != "" {
		if *sstoreFile == "" {
			return fmt.Errorf("-sym requires -sstore")
		}
		cfg.EnableSymbolResolution = true
		cfg.SymtabFile = *symFile
		cfg.SstoreFile = *sstoreFile
	}

	e := vm.New(cfg)
	if err := e.LoadCode(tacPath); err != nil {
		return fmt.Errorf("load tac: %w", err)
	}
	defer e.Close()

	if rc := resolveEntry(e, *entry); rc != vm.OK {
		return fmt.Errorf("resolve entry %q: %s", *entry, rc)
	}
	for _, addr := range parseBreakpoints(*breakAt) {
		e.AddBreakpoint(addr)
	}

	if rc := e.Start(0); rc != vm.OK {
		return fmt.Errorf("start: %s", rc)
	}

	var runErr error
	if *step {
		runErr = interactiveLoop(e)
	} else {
		if rc := e.Run(); rc != vm.OK && rc != vm.BreakpointHit {
			runErr = fmt.Errorf("run: %s", rc)
		}
		printSummary(e)
	}

	if *traceFile != "" {
		if err := writeTrace(e, *traceFile); err != nil {
			fmt.Fprintf(os.Stderr, "ccvm: writing trace: %v\n", err)
		}
	}
	return runErr
}

func resolveEntry(e *vm.Engine, spec string) vm.ReturnCode {
	switch {
	case strings.HasPrefix(spec, "@"):
		n, err := strconv.ParseUint(spec[1:], 10, 16)
		if err != nil {
			return vm.InvalidParam
		}
		return e.SetEntryLabel(uint16(n))
	case strings.HasPrefix(spec, "#"):
		n, err := strconv.ParseUint(spec[1:], 10, 32)
		if err != nil {
			return vm.InvalidParam
		}
		return e.SetEntryPoint(uint32(n))
	default:
		return e.SetEntryFunction(spec)
	}
}

func parseBreakpoints(csv string) []uint32 {
	if csv == "" {
		return nil
	}
	var out []uint32
	for _, tok := range strings.Split(csv, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			continue
		}
		out = append(out, uint32(n))
	}
	return out
}

func printSummary(e *vm.Engine) {
	fmt.Fprintf(os.Stderr, "state=%s pc=%d steps=%d", e.GetState(), e.GetPC(), e.GetStepCount())
	if e.GetState() == vm.StateFinished {
		fmt.Fprintf(os.Stderr, " result=%d", e.Result().I32)
	}
	if e.GetLastError() != vm.OK {
		fmt.Fprintf(os.Stderr, " error=%s", e.GetLastError())
	}
	fmt.Fprintln(os.Stderr)
}

func writeTrace(e *vm.Engine, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	n := e.GetTraceCount()
	for i := 0; i < n; i++ {
		entry, rc := e.GetTraceEntry(i)
		if rc != vm.OK {
			break
		}
		fmt.Fprintf(w, "%6d: addr=%-6d step=%-8d %s\n", i, entry.Address, entry.Step, vm.Mnemonic(entry.Opcode))
	}
	return nil
}

// interactiveLoop runs a single-key debugger REPL in raw terminal mode:
// s steps one instruction, c continues to the next breakpoint or finish,
// p prints engine state, l lists the instruction at the current pc, and
// q quits. Raw mode means commands take effect the instant a key is
// pressed, with no Enter and no line buffering to get in the way.
func interactiveLoop(e *vm.Engine) error {
	if err := setupTerminal(); err != nil {
		return fmt.Errorf("setup terminal: %w", err)
	}
	defer restoreTerminal()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		restoreTerminal()
		os.Exit(130)
	}()

	reader := bufio.NewReader(os.Stdin)
	printHelp()
	for {
		if e.GetState() == vm.StateFinished || e.GetState() == vm.StateError {
			printStatusCRLF(e)
			return nil
		}

		b, err := reader.ReadByte()
		if err != nil {
			return fmt.Errorf("read command: %w", err)
		}
		switch b {
		case 's', 'S':
			resumeIfPaused(e)
			rc := e.Step()
			if rc != vm.OK && rc != vm.BreakpointHit {
				fmt.Fprintf(os.Stderr, "step error: %s\r\n", rc)
			}
			printStatusCRLF(e)
		case 'c', 'C':
			resumeIfPaused(e)
			rc := e.Run()
			if rc != vm.OK && rc != vm.BreakpointHit {
				fmt.Fprintf(os.Stderr, "run error: %s\r\n", rc)
			}
			printStatusCRLF(e)
		case 'p', 'P':
			printStatusCRLF(e)
		case 'l', 'L':
			for _, line := range e.Disassemble(e.GetPC(), 1) {
				fmt.Fprintf(os.Stderr, "%s\r\n", line)
			}
		case 'h', 'H', '?':
			printHelp()
		case 'q', 'Q':
			return nil
		default:
			// Ignore unrecognized keys, including the bare newline a
			// terminal may still deliver between raw-mode keystrokes.
		}
	}
}

// resumeIfPaused un-pauses a breakpoint-halted engine by re-issuing
// Start at the current pc, since Step/Run both require StateRunning.
func resumeIfPaused(e *vm.Engine) {
	if e.GetState() == vm.StatePaused {
		e.Start(0)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, "commands: s=step c=continue p=print-state l=list q=quit h=help\r\n")
}

func printStatusCRLF(e *vm.Engine) {
	fmt.Fprintf(os.Stderr, "state=%s pc=%d steps=%d", e.GetState(), e.GetPC(), e.GetStepCount())
	if e.GetState() == vm.StateFinished {
		fmt.Fprintf(os.Stderr, " result=%d", e.Result().I32)
	}
	if e.GetLastError() != vm.OK {
		fmt.Fprintf(os.Stderr, " error=%s", e.GetLastError())
	}
	fmt.Fprintf(os.Stderr, "\r\n")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <tac.bin>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}
