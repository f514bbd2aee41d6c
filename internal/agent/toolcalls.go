package agent

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"
)

// ToolCall is a normalized model-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

var (
	argPairRe = regexp.MustCompile(`(?is)<arg_key>\s*(.*?)\s*</\s*arg_key\s*>\s*<arg_value>\s*(.*?)\s*</\s*arg_value\s*>`)
	intRe     = regexp.MustCompile(`^[-+]?\d+$`)
	floatRe   = regexp.MustCompile(`^[-+]?\d*\.\d+$`)
)

// coerceArgValue maps line-format argument tokens onto typed values:
// boolean literals, integers, decimals, then plain strings.
func coerceArgValue(v string) interface{} {
	vv := strings.TrimSpace(v)
	switch strings.ToLower(vv) {
	case "true":
		return true
	case "false":
		return false
	}
	if intRe.MatchString(vv) {
		if n, err := strconv.ParseInt(vv, 10, 64); err == nil {
			return n
		}
	}
	if floatRe.MatchString(vv) {
		if f, err := strconv.ParseFloat(vv, 64); err == nil {
			return f
		}
	}
	return vv
}

// ExtractToolCalls returns the tool invocations requested by an assistant
// message. Two encodings are recognized: the native tool_calls list, and an
// inline <tool_call> block holding either a JSON object with name/arguments
// or a line-oriented form (tool name on the first line, arg_key/arg_value
// pairs after). An inline block that cannot be parsed yields zero calls;
// extraction never fails.
//
// When an inline block is consumed the message content is blanked so the
// marker text does not leak into the conversation history.
func ExtractToolCalls(msg *openai.ChatCompletionMessage) []ToolCall {
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name == "" {
				continue
			}
			calls = append(calls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		return calls
	}

	content := msg.Content
	open := strings.Index(content, toolCallOpenTag)
	if open == -1 {
		return nil
	}
	rest := content[open+len(toolCallOpenTag):]
	closeIdx := strings.Index(rest, toolCallCloseTag)
	if closeIdx == -1 {
		return nil
	}
	section := strings.TrimSpace(rest[:closeIdx])

	name, args := parseInlineToolCall(section)
	if name == "" {
		return nil
	}

	encoded, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	msg.Content = ""
	return []ToolCall{{
		ID:        "inline-tool-call",
		Name:      name,
		Arguments: encoded,
	}}
}

// parseInlineToolCall decodes the body of a <tool_call> block.
func parseInlineToolCall(section string) (string, map[string]interface{}) {
	if strings.HasPrefix(section, "{") {
		var parsed struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal([]byte(sanitizeJSONLike(section)), &parsed); err == nil && parsed.Name != "" {
			if parsed.Arguments == nil {
				parsed.Arguments = map[string]interface{}{}
			}
			return parsed.Name, parsed.Arguments
		}
		return "", nil
	}

	var name string
	for _, line := range strings.Split(section, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			name = trimmed
			break
		}
	}
	if name == "" {
		return "", nil
	}
	// The first line may itself carry the first arg pair.
	if idx := strings.Index(name, "<arg_key>"); idx != -1 {
		name = strings.TrimSpace(name[:idx])
		if name == "" {
			return "", nil
		}
	}

	args := map[string]interface{}{}
	for _, pair := range argPairRe.FindAllStringSubmatch(section, -1) {
		args[strings.TrimSpace(pair[1])] = coerceArgValue(pair[2])
	}
	return name, args
}
