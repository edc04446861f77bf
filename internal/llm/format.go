package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatResponse renders a reply for human inspection: top-level fields
// first, then each choice's message. A nil response with an error renders
// the error.
func FormatResponse(resp *Response, callErr error) string {
	if callErr != nil {
		return "Error: " + callErr.Error()
	}
	if resp == nil {
		return "Error: empty response"
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &top); err != nil {
		return "Error formatting response: " + err.Error()
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	b.WriteString(rule + "\nFULL RESPONSE\n" + rule + "\n\n")

	keys := make([]string, 0, len(top))
	for k := range top {
		if k != "choices" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, display(top[k]))
	}

	if len(resp.Choices) > 0 {
		thin := strings.Repeat("-", 80)
		b.WriteString("\n" + thin + "\nMESSAGE DETAILS\n" + thin + "\n")
		for i, choice := range resp.Choices {
			fmt.Fprintf(&b, "\nChoice %d:\n", i+1)
			if choice.Message.Role != "" {
				fmt.Fprintf(&b, "role: %s\n", choice.Message.Role)
			}
			fmt.Fprintf(&b, "\nContent:\n%s\n", display(choice.Message.Content))
		}
	}
	return b.String()
}

func display(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
