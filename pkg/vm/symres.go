package vm

import (
	"fmt"

	"stcc1/pkg/hbuf"
	"stcc1/pkg/sstore"
	"stcc1/pkg/symtab"
)

// symCacheSize is the 256-entry modulo cache capacity from §4.7.7.
const symCacheSize = 256

type symCacheEntry struct {
	valid bool
	id    uint32
	name  string
}

// openSymbolResolution opens the symbol table and string pool named in
// cfg for read-only diagnostic lookups, and pre-builds the name->label
// function table the same way pkg/tacgen does (Open question #15): a
// sequential scan of KindFunction entries in index order, assigning
// label ids 1, 2, 3, ... in that same order, since nothing in the TAC
// file itself records which label id belongs to which function name.
func (e *Engine) openSymbolResolution(cfg Config) error {
	syms, err := symtab.Open(cfg.SymtabFile, hbuf.New(nil, hbuf.DefaultCapacity, hbuf.DefaultBuckets))
	if err != nil {
		return fmt.Errorf("vm: open symtab: %w", err)
	}
	strs, err := sstore.Open(cfg.SstoreFile)
	if err != nil {
		syms.Close()
		return fmt.Errorf("vm: open sstore: %w", err)
	}

	entries, err := syms.All()
	if err != nil {
		syms.Close()
		strs.Close()
		return fmt.Errorf("vm: scan symtab: %w", err)
	}
	funcsByName := make(map[string]uint16)
	var nextLabel uint16 = 1
	for _, ie := range entries {
		if ie.Entry.Kind != symtab.KindFunction {
			continue
		}
		name, err := strs.GetString(ie.Entry.Name)
		if err != nil {
			syms.Close()
			strs.Close()
			return fmt.Errorf("vm: function name at symbol %d: %w", ie.Index, err)
		}
		if _, exists := funcsByName[name]; exists {
			continue
		}
		funcsByName[name] = nextLabel
		nextLabel++
	}

	e.symtab = syms
	e.sstore = strs
	e.functionLabels = funcsByName
	e.symCache = make([]symCacheEntry, symCacheSize)
	return nil
}

// resolveVariableName looks up a human-readable name for variable id,
// consulting the modulo cache first. Resolution failures degrade to a
// synthetic name rather than propagate an error (§4.7.7): they are used
// only to enrich trace lines and diagnostics.
func (e *Engine) resolveVariableName(id uint16) string {
	if e.symtab == nil {
		return fmt.Sprintf("var_%d", id)
	}
	slot := int(id) % symCacheSize
	c := &e.symCache[slot]
	if c.valid && c.id == uint32(id) {
		return c.name
	}

	entries, err := e.symtab.All()
	if err != nil {
		return fmt.Sprintf("var_%d", id)
	}
	for _, ie := range entries {
		if ie.Index != uint32(id) {
			continue
		}
		name, err := e.sstore.GetString(ie.Entry.Name)
		if err != nil {
			return fmt.Sprintf("var_%d", id)
		}
		*c = symCacheEntry{valid: true, id: uint32(id), name: name}
		return name
	}
	return fmt.Sprintf("var_%d", id)
}

// closeSymbolResolution releases the symbol/string-pool files, if opened.
func (e *Engine) closeSymbolResolution() error {
	var firstErr error
	if e.symtab != nil {
		if err := e.symtab.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.symtab = nil
	}
	if e.sstore != nil {
		if err := e.sstore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.sstore = nil
	}
	return firstErr
}
