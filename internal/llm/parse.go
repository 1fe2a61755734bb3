package llm

import (
	"fmt"
	"strings"
)

// StripMarkdownJSON extracts a JSON object from model output that may
// carry markdown code fences or prose around it. It strips ```json and
// ``` fences and cuts to the first '{', skipping '{{' pairs so template
// fragments in leading prose cannot match. Trailing prose is left in
// place; decode with json.Decoder, which stops after the first value.
func StripMarkdownJSON(text string) (string, error) {
	content := strings.TrimSpace(text)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := -1
	for i := 0; i < len(content); i++ {
		if content[i] == '{' {
			if i+1 < len(content) && content[i+1] == '{' {
				i++
				continue
			}
			start = i
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in model output")
	}
	return content[start:], nil
}
