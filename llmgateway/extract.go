package llmgateway

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSONBlock = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
var fencedAnyBlock = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\s*(.*?)\\s*```")

// ExtractJSON recovers a JSON value embedded in free-form model output.
// Models asked for structured output don't always return a bare JSON
// document — they wrap it in prose, fence it in markdown, or get cut off
// mid-object by a max_tokens limit. ExtractJSON tries, in order:
//
//  1. the contents of a ```json fenced block;
//  2. the contents of any other fenced block;
//  3. a fenced block that was truncated before its closing fence, with a
//     best-effort bracket repair (appending the missing closing braces);
//  4. the largest balanced {...} span found anywhere in the text.
//
// It returns ok=false if none of these yield valid JSON.
func ExtractJSON(text string) (json.RawMessage, bool) {
	if raw, ok := tryCandidate(firstMatch(fencedJSONBlock, text)); ok {
		return raw, true
	}
	if raw, ok := tryCandidate(firstMatch(fencedAnyBlock, text)); ok {
		return raw, true
	}
	if raw, ok := tryTruncatedFence(text); ok {
		return raw, true
	}
	if raw, ok := tryLargestBalancedObject(text); ok {
		return raw, true
	}
	return nil, false
}

func firstMatch(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func tryCandidate(candidate string) (json.RawMessage, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, false
	}
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	return json.RawMessage(candidate), true
}

// tryTruncatedFence handles output that opens a ```json fence but never
// closes it (the model hit max_tokens mid-object): it repairs the
// dangling brace/bracket nesting before revalidating.
func tryTruncatedFence(text string) (json.RawMessage, bool) {
	idx := strings.Index(text, "```json")
	if idx < 0 {
		idx = strings.Index(text, "```")
	}
	if idx < 0 {
		return nil, false
	}
	body := text[idx:]
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	if closing := strings.Index(body, "```"); closing >= 0 {
		body = body[:closing]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}
	return tryCandidate(repairBrackets(body))
}

func repairBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if n := len(stack); n > 0 {
				stack = stack[:n-1]
			}
		}
	}
	var b strings.Builder
	b.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// tryLargestBalancedObject scans for every top-level balanced {...} span
// and returns the largest one that parses as valid JSON.
func tryLargestBalancedObject(text string) (json.RawMessage, bool) {
	var best string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := text[start : i+1]
					if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
						best = candidate
					}
				}
			}
		}
	}
	return tryCandidate(best)
}
