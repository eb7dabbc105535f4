package mockeval

import (
	"fmt"
	"strconv"
	"strings"
)

// mockValue is an inspectable value: either a vector of scalars or a
// single scalar.
type mockValue struct {
	scalar   string
	elements []string
}

func (v mockValue) isVector() bool { return v.elements != nil }

func (sess *mockSession) storeHandle(v mockValue) string {
	sess.nextH++
	handle := fmt.Sprintf("h%d", sess.nextH)
	sess.handles[handle] = v
	return handle
}

func (sess *mockSession) inspectStart(code string) []map[string]any {
	v, err := parseInspectable(code)
	if err != nil {
		return []map[string]any{{"error": err.Error(), "status": []string{"done", "error"}}}
	}
	handle := sess.storeHandle(v)
	return []map[string]any{{
		"handle":  handle,
		"summary": summarize(v),
		"status":  "done",
	}}
}

func (sess *mockSession) inspectNav(handle, segment string) []map[string]any {
	v, ok := sess.handles[handle]
	if !ok {
		return []map[string]any{{"error": "unknown handle " + handle, "status": []string{"done", "error"}}}
	}
	if !v.isVector() {
		return []map[string]any{{"error": "value is not navigable", "status": []string{"done", "error"}}}
	}
	index, err := strconv.Atoi(segment)
	if err != nil || index < 0 || index >= len(v.elements) {
		return []map[string]any{{"error": "no element at " + segment, "status": []string{"done", "error"}}}
	}
	child, err := parseInspectable(v.elements[index])
	if err != nil {
		child = mockValue{scalar: v.elements[index]}
	}
	childHandle := sess.storeHandle(child)
	return []map[string]any{{
		"handle":  childHandle,
		"summary": summarize(child),
		"status":  "done",
	}}
}

func parseInspectable(code string) (mockValue, error) {
	form := strings.TrimSpace(code)
	if strings.HasPrefix(form, "[") && strings.HasSuffix(form, "]") {
		inner := strings.TrimSpace(form[1 : len(form)-1])
		if inner == "" {
			return mockValue{elements: []string{}}, nil
		}
		return mockValue{elements: strings.Fields(inner)}, nil
	}
	value, _, _, err := evalForm(form, "user")
	if err != nil {
		return mockValue{}, err
	}
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		return parseInspectable(value)
	}
	return mockValue{scalar: value}, nil
}

func summarize(v mockValue) map[string]any {
	if v.isVector() {
		preview := v.elements
		if len(preview) > 5 {
			preview = preview[:5]
		}
		return map[string]any{
			"type":    "Vector",
			"count":   len(v.elements),
			"preview": preview,
		}
	}
	typ := "Long"
	if _, err := strconv.Atoi(v.scalar); err != nil {
		typ = "String"
	}
	return map[string]any{
		"type":  typ,
		"value": v.scalar,
	}
}
