package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// classification is the canonical decoded response shape.
type classification struct {
	PrimaryArea       string
	SecondaryFocus    string
	ApplicationDomain string
	TLDR              string
	InterestTags      []string
}

// SchemaError means the model's response could not be interpreted as the
// required JSON object. It is retryable with a repair hint.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return "response schema: " + e.Reason
}

type rawClassification struct {
	PrimaryArea       *string         `json:"primary_area"`
	SecondaryFocus    *string         `json:"secondary_focus"`
	ApplicationDomain *string         `json:"application_domain"`
	TLDR              *string         `json:"tldr"`
	InterestTags      json.RawMessage `json:"interest_tags"`
}

// parseClassification interprets a model response as the required JSON
// object. Accepted forms: raw JSON; JSON inside a Markdown code fence;
// JSON embedded in prose (the span from the first '{' to the last '}' is
// extracted). interest_tags may be a string, a list of strings, or absent.
func parseClassification(raw string) (classification, error) {
	candidate := stripCodeFences(raw)
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start != -1 && start < end {
		candidate = candidate[start : end+1]
	}

	var decoded rawClassification
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return classification{}, &SchemaError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	var missing []string
	for key, value := range map[string]*string{
		"primary_area":       decoded.PrimaryArea,
		"secondary_focus":    decoded.SecondaryFocus,
		"application_domain": decoded.ApplicationDomain,
		"tldr":               decoded.TLDR,
	} {
		if value == nil {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return classification{}, &SchemaError{Reason: "missing keys: " + strings.Join(missing, ", ")}
	}

	tags, err := normalizeInterestTags(decoded.InterestTags)
	if err != nil {
		return classification{}, err
	}

	return classification{
		PrimaryArea:       strings.TrimSpace(*decoded.PrimaryArea),
		SecondaryFocus:    strings.TrimSpace(*decoded.SecondaryFocus),
		ApplicationDomain: strings.TrimSpace(*decoded.ApplicationDomain),
		TLDR:              strings.TrimSpace(*decoded.TLDR),
		InterestTags:      tags,
	}, nil
}

// normalizeInterestTags reduces the accepted interest_tags variants
// (absent, null, single string, list of strings) to a deduplicated list of
// non-empty tokens.
func normalizeInterestTags(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var tokens []string
	switch {
	case strings.HasPrefix(trimmed, `"`):
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("interest_tags: %v", err)}
		}
		tokens = []string{single}
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(raw, &tokens); err != nil {
			return nil, &SchemaError{Reason: fmt.Sprintf("interest_tags: %v", err)}
		}
	default:
		return nil, &SchemaError{Reason: "interest_tags must be a string or a list of strings"}
	}

	var out []string
	seen := map[string]struct{}{}
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out, nil
}

func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 1 {
		text = strings.TrimSpace(strings.Join(lines[1:], "\n"))
	} else {
		text = ""
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
