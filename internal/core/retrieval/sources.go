package retrieval

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFence     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	sourcesMarker = regexp.MustCompile(`(?i)\bsources?\s*:\s*`)
)

// NormalizeSources accepts cited sources as a comma separated string or as a
// list and returns the trimmed, de-duplicated identifiers in citation order.
func NormalizeSources(v any) []string {
	var parts []string
	switch t := v.(type) {
	case nil:
	case string:
		parts = strings.Split(t, ",")
	case []string:
		parts = t
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				parts = append(parts, s)
			} else if it != nil {
				parts = append(parts, fmt.Sprint(it))
			}
		}
	default:
		parts = strings.Split(fmt.Sprint(t), ",")
	}

	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), "[]\"' ")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// parseAnswer reads {"answer": ..., "sources": ...}. Plain text with a
// trailing "SOURCES:" line is accepted as well.
func parseAnswer(raw string) (string, any) {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}

	var obj struct {
		Answer  string `json:"answer"`
		Sources any    `json:"sources"`
	}
	if err := json.Unmarshal([]byte(s), &obj); err == nil && (obj.Answer != "" || obj.Sources != nil) {
		return strings.TrimSpace(obj.Answer), obj.Sources
	}

	if locs := sourcesMarker.FindAllStringIndex(s, -1); len(locs) > 0 {
		if loc := locs[len(locs)-1]; loc[0] > 0 {
			return strings.TrimSpace(s[:loc[0]]), strings.TrimSpace(s[loc[1]:])
		}
	}
	return s, nil
}
