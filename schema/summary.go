package schema

// ValueSummary is the structured description of an inspected remote
// value. The facets are additive: a summary may carry any subset of
// them simultaneously.
type ValueSummary struct {
	// Type is the peer-side type name.
	Type string
	// Value is the primitive rendering, when the value is scalar.
	Value string
	// HasValue distinguishes an absent primitive rendering from an
	// empty one.
	HasValue bool
	// Count is the element count for sized collections; negative when
	// absent.
	Count int
	// Preview holds rendered leading elements of an indexed collection.
	Preview []string
	// Keys lists the keys of a keyed collection.
	Keys []string
	// Attrs lists attribute names of a structured object.
	Attrs []string
}

// SummaryFromWire parses a summary mapping from a response frame.
func SummaryFromWire(raw map[string]any) ValueSummary {
	summary := ValueSummary{Count: -1}
	if raw == nil {
		return summary
	}
	if s, ok := raw["type"].(string); ok {
		summary.Type = s
	}
	if v, ok := raw["value"]; ok {
		if s, ok := v.(string); ok {
			summary.Value = s
		}
		summary.HasValue = true
	}
	if n, ok := raw["count"].(float64); ok {
		summary.Count = int(n)
	}
	summary.Preview = stringsFromWire(raw["preview"])
	summary.Keys = stringsFromWire(raw["keys"])
	summary.Attrs = stringsFromWire(raw["attributes"])
	return summary
}

// SymbolInfo carries symbol metadata from an info response.
type SymbolInfo struct {
	Name     string
	NS       Namespace
	Type     string
	Doc      string
	Arglists []string
	Protocol string
	Methods  []string
	Impls    []string
	Source   DefLocation
}

// InfoFromWire parses symbol metadata from a response frame.
func InfoFromWire(r Response) SymbolInfo {
	info := SymbolInfo{
		Name:     r.String("name"),
		NS:       Namespace(r.String("ns")),
		Type:     r.String("type"),
		Doc:      r.String("doc"),
		Arglists: r.Strings("arglists"),
		Protocol: r.String("protocol"),
		Methods:  r.Strings("methods"),
		Impls:    r.Strings("impls"),
	}
	if source := r.Map("source"); source != nil {
		if file, ok := source["file"].(string); ok {
			info.Source.File = file
		}
		if line, ok := source["line"].(float64); ok {
			info.Source.Line = int(line)
		}
	}
	return info
}

// DefLocation names a source position of a definition.
type DefLocation struct {
	File string
	Line int
	Col  int
}

// ProtocolInfo describes one protocol from a protocols response.
type ProtocolInfo struct {
	Methods    []string
	Doc        string
	Structural bool
	Impls      []string
}

// ProtocolsFromWire parses the protocols mapping from a response frame.
func ProtocolsFromWire(raw map[string]any) map[string]ProtocolInfo {
	if raw == nil {
		return nil
	}
	out := make(map[string]ProtocolInfo, len(raw))
	for name, value := range raw {
		entry, ok := value.(map[string]any)
		if !ok {
			continue
		}
		info := ProtocolInfo{
			Methods: stringsFromWire(entry["methods"]),
			Impls:   stringsFromWire(entry["impls"]),
		}
		if doc, ok := entry["doc"].(string); ok {
			info.Doc = doc
		}
		if structural, ok := entry["structural"].(bool); ok {
			info.Structural = structural
		}
		out[name] = info
	}
	return out
}

func stringsFromWire(value any) []string {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
