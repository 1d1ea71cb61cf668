package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	outerObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON recovers a JSON object from a model reply that may wrap it in
// prose or a markdown fence, or emit it slightly malformed. It tries the
// reply as-is, then a fenced block, then the outermost braces, and finally
// runs the best candidate through jsonrepair. ok is false when nothing
// parseable was found.
func ExtractJSON(raw string) (json.RawMessage, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}

	candidates := []string{raw}
	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := outerObject.FindString(raw); m != "" {
		candidates = append(candidates, m)
	}

	for _, c := range candidates {
		if isObject(c) {
			return json.RawMessage(c), true
		}
	}

	best := candidates[len(candidates)-1]
	fixed, err := jsonrepair.JSONRepair(best)
	if err != nil || !isObject(fixed) {
		return nil, false
	}
	return json.RawMessage(fixed), true
}

func isObject(s string) bool {
	var obj map[string]any
	return json.Unmarshal([]byte(s), &obj) == nil
}
