package schema

import (
	"strings"
	"unicode"
)

// NormalizeNamespace validates and trims a namespace name. Namespaces
// are dotted symbol names without whitespace.
func NormalizeNamespace(ns string) (Namespace, error) {
	trimmed := strings.TrimSpace(ns)
	if trimmed == "" {
		return "", ErrInvalidNamespace
	}
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			return "", ErrInvalidNamespace
		}
	}
	return Namespace(trimmed), nil
}
