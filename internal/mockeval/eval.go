package mockeval

import (
	"fmt"
	"strconv"
	"strings"
)

// eval interprets one form. The vocabulary is tiny on purpose:
// integer arithmetic, println, in-ns, and self-evaluating literals.
func (sess *mockSession) eval(code string) []map[string]any {
	form := strings.TrimSpace(code)
	if form == "" {
		return []map[string]any{{"error": "empty form", "status": []string{"done", "error"}}}
	}
	if depth := parenDepth(form); depth > 0 {
		return []map[string]any{{"status": []string{"done", "error", "incomplete"}}}
	} else if depth < 0 {
		return []map[string]any{{"error": "unmatched delimiter", "status": []string{"done", "error"}}}
	}

	var replies []map[string]any
	value, out, newNS, err := evalForm(form, sess.ns)
	if out != "" {
		replies = append(replies, map[string]any{"out": out})
	}
	if err != nil {
		replies = append(replies, map[string]any{"error": err.Error(), "status": []string{"done", "error"}})
		return replies
	}
	if newNS != "" {
		sess.ns = newNS
	}
	replies = append(replies, map[string]any{"value": value, "ns": sess.ns})
	replies = append(replies, map[string]any{"status": []string{"done"}})
	return replies
}

func (sess *mockSession) loadFile(file string) []map[string]any {
	forms := 0
	for _, line := range strings.Split(file, "\n") {
		if strings.TrimSpace(line) != "" {
			forms++
		}
	}
	return []map[string]any{
		{"value": strconv.Itoa(forms), "ns": sess.ns},
		{"status": "done"},
	}
}

func evalForm(form, ns string) (value, out, newNS string, err error) {
	if !strings.HasPrefix(form, "(") {
		if isLiteral(form) {
			return form, "", "", nil
		}
		return "", "", "", fmt.Errorf("unable to resolve symbol: %s in this context", form)
	}
	inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(form, "("), ")"))
	fields := strings.Fields(inner)
	if len(fields) == 0 {
		return "()", "", "", nil
	}
	switch fields[0] {
	case "+", "-", "*":
		total, err := arith(fields[0], fields[1:])
		if err != nil {
			return "", "", "", err
		}
		return strconv.Itoa(total), "", "", nil
	case "println":
		args := strings.TrimSpace(strings.TrimPrefix(inner, "println"))
		return "nil", unquote(args) + "\n", "", nil
	case "in-ns":
		if len(fields) != 2 {
			return "", "", "", fmt.Errorf("in-ns expects one namespace")
		}
		target := strings.TrimPrefix(fields[1], "'")
		return "#namespace[" + target + "]", "", target, nil
	case "ns":
		if len(fields) < 2 {
			return "", "", "", fmt.Errorf("ns expects a name")
		}
		return "nil", "", fields[1], nil
	}
	return "", "", "", fmt.Errorf("unable to resolve symbol: %s in this context", fields[0])
}

func arith(op string, args []string) (int, error) {
	if len(args) == 0 {
		switch op {
		case "+":
			return 0, nil
		case "*":
			return 1, nil
		}
		return 0, fmt.Errorf("wrong number of args (0) passed to: %s", op)
	}
	total, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("class cast: %s is not a number", args[0])
	}
	for _, arg := range args[1:] {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return 0, fmt.Errorf("class cast: %s is not a number", arg)
		}
		switch op {
		case "+":
			total += n
		case "-":
			total -= n
		case "*":
			total *= n
		}
	}
	return total, nil
}

func isLiteral(form string) bool {
	if form == "nil" || form == "true" || form == "false" {
		return true
	}
	if _, err := strconv.Atoi(form); err == nil {
		return true
	}
	if strings.HasPrefix(form, `"`) && strings.HasSuffix(form, `"`) && len(form) >= 2 {
		return true
	}
	if strings.HasPrefix(form, "[") && strings.HasSuffix(form, "]") {
		return true
	}
	if strings.HasPrefix(form, ":") {
		return true
	}
	return false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if unquoted, err := strconv.Unquote(s); err == nil {
		return unquoted
	}
	return s
}

// parenDepth reports unclosed delimiter depth, ignoring delimiters
// inside string literals.
func parenDepth(form string) int {
	depth := 0
	inString := false
	escaped := false
	for _, r := range form {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '(', '[', '{':
			if !inString {
				depth++
			}
		case ')', ']', '}':
			if !inString {
				depth--
			}
		}
	}
	return depth
}
