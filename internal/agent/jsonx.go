package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	jsonFenceRe = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n(.*?)```")
)

// extractJSON pulls a JSON document out of a model reply. Models wrap JSON in
// markdown fences inconsistently, so the order is: a ```json fence, then any
// fence, then the first balanced object in the raw text.
func extractJSON(content string) (json.RawMessage, error) {
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		if raw := validJSON(m[1]); raw != nil {
			return raw, nil
		}
	}
	if m := anyFenceRe.FindStringSubmatch(content); m != nil {
		if raw := validJSON(m[1]); raw != nil {
			return raw, nil
		}
	}
	if raw := validJSON(content); raw != nil {
		return raw, nil
	}
	if raw := firstBalancedObject(content); raw != nil {
		return raw, nil
	}
	return nil, fmt.Errorf("no JSON document in reply (%d chars)", len(content))
}

func validJSON(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil
	}
	// Only objects and arrays are acceptable documents here; a bare string
	// or number is a degenerate reply.
	if s[0] != '{' && s[0] != '[' {
		return nil
	}
	return json.RawMessage(s)
}

// firstBalancedObject scans for the first top-level {...} span that parses.
// Braces inside JSON strings are handled by tracking the in-string state.
func firstBalancedObject(s string) json.RawMessage {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if json.Valid([]byte(candidate)) {
					return json.RawMessage(candidate)
				}
				return nil
			}
		}
	}
	return nil
}
