package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// sanitizeJSONLike removes the junk that most often breaks otherwise valid
// model output: trailing commas before closing brackets and invisible
// BOM / zero-width characters.
func sanitizeJSONLike(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "\uFEFF", "")
	s = strings.ReplaceAll(s, "​", "")
	return s
}

// stripCodeFence unwraps a markdown code fence if one is present.
func stripCodeFence(s string) string {
	if idx := strings.Index(s, "```json"); idx != -1 {
		rest := s[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return s
}

func tryDirectParse(s string) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(sanitizeJSONLike(s)), &out); err != nil {
		return nil
	}
	return out
}

func tryRepairParse(s string) map[string]interface{} {
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil
	}
	return tryDirectParse(repaired)
}

// tryPythonLiteral interprets text shaped like a Python dict literal:
// single-quoted keys and strings, True/False/None spellings.
func tryPythonLiteral(s string) map[string]interface{} {
	converted, ok := pythonLiteralToJSON(s)
	if !ok {
		return nil
	}
	return tryDirectParse(converted)
}

// pythonLiteralToJSON rewrites a dict-literal string into JSON. It walks the
// input tracking quote state so replacements never touch string contents.
func pythonLiteralToJSON(s string) (string, bool) {
	var b strings.Builder
	runes := []rune(s)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == '\'' || c == '"':
			quote := c
			var content strings.Builder
			i++
			for i < len(runes) {
				if runes[i] == '\\' && i+1 < len(runes) {
					content.WriteRune(runes[i])
					content.WriteRune(runes[i+1])
					i += 2
					continue
				}
				if runes[i] == quote {
					break
				}
				content.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return "", false // unterminated string
			}
			i++ // closing quote
			encoded, err := json.Marshal(strings.ReplaceAll(strings.ReplaceAll(content.String(), `\'`, `'`), `\"`, `"`))
			if err != nil {
				return "", false
			}
			b.Write(encoded)
		case c == 'T' && strings.HasPrefix(string(runes[i:]), "True"):
			b.WriteString("true")
			i += 4
		case c == 'F' && strings.HasPrefix(string(runes[i:]), "False"):
			b.WriteString("false")
			i += 5
		case c == 'N' && strings.HasPrefix(string(runes[i:]), "None"):
			b.WriteString("null")
			i += 4
		default:
			b.WriteRune(c)
			i++
		}
	}
	return b.String(), true
}

// ExtractStructured attempts to recover a JSON object from raw model output.
// It runs an ordered pipeline of total parse attempts and returns nil only
// after every strategy is exhausted; it never panics or returns an error.
func ExtractStructured(text string) map[string]interface{} {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	clean = stripCodeFence(clean)

	if out := tryDirectParse(clean); out != nil {
		return out
	}
	if out := tryRepairParse(clean); out != nil {
		return out
	}
	if out := tryPythonLiteral(clean); out != nil {
		return out
	}

	// The whole payload may itself be a JSON-encoded string holding escaped
	// JSON. Unquote once and retry.
	if strings.HasPrefix(clean, `"`) && strings.HasSuffix(clean, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(clean), &inner); err == nil {
			inner = strings.TrimSpace(inner)
			if out := tryDirectParse(inner); out != nil {
				return out
			}
			if out := tryRepairParse(inner); out != nil {
				return out
			}
			if out := tryPythonLiteral(inner); out != nil {
				return out
			}
			clean = inner
		}
	}

	// A bare fragment carrying a status field gets enclosing braces.
	if !strings.HasPrefix(clean, "{") && strings.Contains(clean, `"status"`) {
		candidate := "{" + strings.Trim(strings.TrimSpace(clean), ",") + "}"
		if out := tryDirectParse(candidate); out != nil {
			return out
		}
	}

	// Last resort: carve out the first balanced object embedded in prose.
	if candidate := firstBalancedObject(clean); candidate != "" {
		if out := tryDirectParse(candidate); out != nil {
			return out
		}
		if out := tryRepairParse(candidate); out != nil {
			return out
		}
		if out := tryPythonLiteral(candidate); out != nil {
			return out
		}
	}

	return nil
}

// firstBalancedObject returns the substring from the first '{' to its
// depth-matched '}'. When no balanced close exists it falls back to the last
// '}' in the text.
func firstBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 || !strings.Contains(s, "}") {
		return ""
	}
	depth := 0
	end := -1
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
				i = len(s)
			}
		}
	}
	if end == -1 {
		end = strings.LastIndex(s, "}")
	}
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
