package mockeval

import (
	"sort"
	"strings"
)

type symbolEntry struct {
	ns       string
	typ      string
	doc      string
	arglists []string
	file     string
	line     int
}

var symbolTable = map[string]symbolEntry{
	"+": {
		ns:       "core",
		typ:      "function",
		doc:      "Returns the sum of nums. (+) returns 0.",
		arglists: []string{"[]", "[x]", "[x y & more]"},
		file:     "core.clj",
		line:     984,
	},
	"-": {
		ns:       "core",
		typ:      "function",
		doc:      "Subtracts the ys from x.",
		arglists: []string{"[x]", "[x y & more]"},
		file:     "core.clj",
		line:     1011,
	},
	"*": {
		ns:       "core",
		typ:      "function",
		doc:      "Returns the product of nums. (*) returns 1.",
		arglists: []string{"[]", "[x]", "[x y & more]"},
		file:     "core.clj",
		line:     1032,
	},
	"println": {
		ns:       "core",
		typ:      "function",
		doc:      "Prints arguments followed by a newline.",
		arglists: []string{"[& more]"},
		file:     "core.clj",
		line:     3733,
	},
	"in-ns": {
		ns:       "core",
		typ:      "function",
		doc:      "Sets the current namespace to the named one, creating it if needed.",
		arglists: []string{"[name]"},
		file:     "core.clj",
		line:     4112,
	},
}

func symbolInfo(symbol, ns string) []map[string]any {
	entry, ok := symbolTable[symbol]
	if !ok {
		return []map[string]any{{"error": "no info for " + symbol, "status": []string{"done", "error"}}}
	}
	return []map[string]any{{
		"name":     symbol,
		"ns":       entry.ns,
		"type":     entry.typ,
		"doc":      entry.doc,
		"arglists": entry.arglists,
		"source":   map[string]any{"file": entry.file, "line": entry.line},
		"status":   "done",
	}}
}

func findDef(symbol, ns string) []map[string]any {
	entry, ok := symbolTable[symbol]
	if !ok {
		return []map[string]any{{"error": "no definition for " + symbol, "status": []string{"done", "error"}}}
	}
	return []map[string]any{{
		"file":   entry.file,
		"line":   entry.line,
		"column": 1,
		"status": "done",
	}}
}

func complete(prefix string) []string {
	var matches []string
	for symbol := range symbolTable {
		if strings.HasPrefix(symbol, prefix) {
			matches = append(matches, symbol)
		}
	}
	sort.Strings(matches)
	return matches
}

func protocolTable() map[string]any {
	return map[string]any{
		"Countable": map[string]any{
			"methods":    []string{"count"},
			"doc":        "Things that know their element count.",
			"structural": true,
			"impls":      []string{"Vector", "Map", "String"},
		},
		"Printable": map[string]any{
			"methods":    []string{"print-str"},
			"doc":        "Things that render themselves.",
			"structural": false,
			"impls":      []string{"Vector", "Long", "String"},
		},
	}
}
