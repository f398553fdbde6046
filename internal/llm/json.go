package llm

import "strings"

// ExtractJSON returns the JSON payload of an LLM response, stripping a
// surrounding markdown code fence if present. It does not validate the
// payload; callers unmarshal into their own types and treat failure as
// a hard error.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.Join(lines[1:endIdx], "\n")
}
