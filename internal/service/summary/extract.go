package summary

import "strings"

// ExtractJSONObject returns the first balanced JSON object found in free
// text, tolerating markdown code fences and surrounding prose. Returns
// ("", false) when no balanced object exists. The result is not validated
// beyond brace balancing; callers unmarshal it themselves.
func ExtractJSONObject(text string) (string, bool) {
	cleaned := stripCodeFences(text)

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], true
			}
		}
	}

	return "", false
}

// stripCodeFences removes ```json fences so fenced model output parses the
// same as bare output.
func stripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}

	var builder strings.Builder
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	return builder.String()
}
