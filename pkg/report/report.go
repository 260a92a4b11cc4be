// Package report implements the compile-time diagnostic sink described at
// contract in spec §7: a reporter object collecting severities and
// categories of diagnostic in report order, counted per severity and
// category, with graceful capping instead of a process-wide error list.
// Both internal/clex and internal/cparse and pkg/tacgen report through it.
package report

import "fmt"

// Severity classifies a diagnostic's impact on the pass.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Category classifies a diagnostic's origin.
type Category int

const (
	Lexical Category = iota
	Syntax
	Semantic
	Memory
	IO
	Internal
)

func (c Category) String() string {
	switch c {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	case Memory:
		return "memory"
	case IO:
		return "io"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// Location pinpoints a diagnostic in the source: the originating token
// index for cross-store lookups, plus the filename and line a reporter
// client already has in hand (it need not re-resolve the token to print a
// readable message).
type Location struct {
	TokenIdx uint32
	File     string
	Line     uint32
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Diagnostic is a single collected report.
type Diagnostic struct {
	Severity   Severity
	Category   Category
	Location   Location
	Code       int
	Message    string
	Suggestion string
}

func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s [%s E%04d]: %s", d.Location, d.Severity, d.Category, d.Code, d.Message)
	if d.Suggestion != "" {
		s += fmt.Sprintf(" (suggestion: %s)", d.Suggestion)
	}
	return s
}

// ErrCapped is returned by Add once a severity cap has already been hit;
// the reporter itself keeps collecting nothing further for that severity.
var ErrCapped = fmt.Errorf("report: diagnostic cap reached")

// Reporter collects diagnostics in report order for one compiler pass. It
// is passed explicitly to whatever needs to emit diagnostics rather than
// kept as a process-global list, per spec §9's design note.
type Reporter struct {
	MaxErrors   int // 0 = unlimited
	MaxWarnings int // 0 = unlimited

	diags      []Diagnostic
	errCount   int
	warnCount  int
	bySeverity map[Severity]int
	byCategory map[Category]int
	capped     bool
}

// New creates a Reporter with the given caps (0 = unlimited for either).
func New(maxErrors, maxWarnings int) *Reporter {
	return &Reporter{
		MaxErrors:   maxErrors,
		MaxWarnings: maxWarnings,
		bySeverity:  make(map[Severity]int),
		byCategory:  make(map[Category]int),
	}
}

// Add records d in report order. It returns ErrCapped, without recording
// d, once the relevant cap has already been reached; callers in the
// middle of a pass should treat that as "stop reporting, but keep
// compiling" per the recoverable-error propagation policy of spec §7.
func (r *Reporter) Add(d Diagnostic) error {
	switch d.Severity {
	case Error, Fatal:
		if r.MaxErrors > 0 && r.errCount >= r.MaxErrors {
			r.capped = true
			return ErrCapped
		}
		r.errCount++
	case Warning:
		if r.MaxWarnings > 0 && r.warnCount >= r.MaxWarnings {
			r.capped = true
			return ErrCapped
		}
		r.warnCount++
	}
	r.diags = append(r.diags, d)
	r.bySeverity[d.Severity]++
	r.byCategory[d.Category]++
	return nil
}

// Errorf is a convenience wrapper around Add for ERROR-severity reports.
func (r *Reporter) Errorf(cat Category, loc Location, code int, format string, args ...any) error {
	return r.Add(Diagnostic{Severity: Error, Category: cat, Location: loc, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Warnf is a convenience wrapper around Add for WARNING-severity reports.
func (r *Reporter) Warnf(cat Category, loc Location, code int, format string, args ...any) error {
	return r.Add(Diagnostic{Severity: Warning, Category: cat, Location: loc, Code: code, Message: fmt.Sprintf(format, args...)})
}

// ErrorCount returns the number of ERROR+FATAL diagnostics collected.
func (r *Reporter) ErrorCount() int { return r.errCount }

// WarningCount returns the number of WARNING diagnostics collected.
func (r *Reporter) WarningCount() int { return r.warnCount }

// HasErrors reports whether any ERROR or FATAL diagnostic was collected.
// The driver uses this to decide whether to skip downstream passes.
func (r *Reporter) HasErrors() bool { return r.errCount > 0 }

// Capped reports whether a cap has been hit and further diagnostics of
// that severity are being silently dropped (the drop itself is not
// silent to the reporter's owner: Add's return value signals it).
func (r *Reporter) Capped() bool { return r.capped }

// CountBySeverity returns the number of collected diagnostics of sev.
func (r *Reporter) CountBySeverity(sev Severity) int { return r.bySeverity[sev] }

// CountByCategory returns the number of collected diagnostics of cat.
func (r *Reporter) CountByCategory(cat Category) int { return r.byCategory[cat] }

// All returns every collected diagnostic in report order. The returned
// slice is owned by the caller and safe to mutate.
func (r *Reporter) All() []Diagnostic {
	out := make([]Diagnostic, len(r.diags))
	copy(out, r.diags)
	return out
}

// Emit writes every collected diagnostic to w, one per line, in report
// order, via fmt.Fprintln.
func (r *Reporter) Emit(w interface{ Write([]byte) (int, error) }) error {
	for _, d := range r.diags {
		if _, err := fmt.Fprintln(w, d.String()); err != nil {
			return fmt.Errorf("report: emit: %w", err)
		}
	}
	return nil
}
