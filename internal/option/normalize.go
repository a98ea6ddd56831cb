package option

import (
	"encoding/json"
	"regexp"
	"strings"
)

const maxKeyLen = 64

// Explicit keys in structured specs must be safe identifiers: storage systems
// and URLs see them verbatim. Digits may lead: GenerateKey slugs digit-leading
// labels ("2024" → "2024_<hash>") and those keys must round-trip through a
// structured replacement unchanged.
var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Spec is one pre-structured option as supplied by an API caller that manages
// its own keys.
type Spec struct {
	Key      string         `json:"key"`
	Label    string         `json:"label"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RawList is the tagged union of the two accepted option input shapes: a
// plain list of label strings, or a list of structured specs. The shape is
// decided exactly once, at the JSON boundary; downstream code never
// re-branches on it.
type RawList struct {
	labels     []string
	specs      []Spec
	structured bool
}

// Labels wraps a plain ordered list of label strings.
func Labels(labels []string) RawList {
	return RawList{labels: labels}
}

// Specs wraps an ordered list of structured option specs.
func Specs(specs []Spec) RawList {
	return RawList{specs: specs, structured: true}
}

// Len reports how many entries the list carries.
func (l RawList) Len() int {
	if l.structured {
		return len(l.specs)
	}
	return len(l.labels)
}

// ParseRawList resolves the simple-array-vs-structured union from raw JSON.
// A JSON array of strings becomes the simple shape; an array of objects
// becomes the structured shape. Mixed arrays are rejected.
func ParseRawList(raw json.RawMessage) (RawList, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return RawList{}, &ValidationError{Problems: []string{"options must be a JSON array"}}
	}

	verr := &ValidationError{}
	var labels []string
	var specs []Spec
	for i, item := range items {
		trimmed := strings.TrimSpace(string(item))
		if strings.HasPrefix(trimmed, `"`) {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				verr.add("options[%d]: invalid string", i)
				continue
			}
			labels = append(labels, s)
			continue
		}
		var spec Spec
		if err := json.Unmarshal(item, &spec); err != nil {
			verr.add("options[%d]: must be a string or an object", i)
			continue
		}
		specs = append(specs, spec)
	}
	if len(labels) > 0 && len(specs) > 0 {
		verr.add("options must be all strings or all objects, not a mix")
	}
	if err := verr.orNil(); err != nil {
		return RawList{}, err
	}
	if specs != nil {
		return Specs(specs), nil
	}
	return Labels(labels), nil
}

// Normalize turns a RawList into the canonical ordered option set for the
// given question. Simple labels get generated keys in input order; structured
// specs keep their explicit keys after validation. Every problem in the batch
// is collected before failing: normalization is all-or-nothing, and the error
// names every offending entry, not just the first.
func Normalize(list RawList, questionID string) ([]Option, error) {
	if list.structured {
		return normalizeSpecs(list.specs)
	}
	return normalizeLabels(list.labels, questionID)
}

func normalizeLabels(labels []string, questionID string) ([]Option, error) {
	verr := &ValidationError{}
	out := make([]Option, 0, len(labels))
	seen := make(map[Key]int, len(labels))
	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			verr.add("options[%d]: label is empty", i)
			continue
		}
		key := GenerateKey(label, i, questionID)
		if _, dup := seen[key]; dup {
			// Identical (label, index) pairs cannot occur, so a collision
			// means the same label appears twice verbatim at distinct
			// positions with colliding hashes. Surface it rather than
			// silently renumbering.
			verr.add("options[%d]: generated key %q collides", i, key)
			continue
		}
		seen[key] = i
		out = append(out, Option{Key: key, Label: Label(label), Order: i})
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeSpecs(specs []Spec) ([]Option, error) {
	verr := &ValidationError{}
	out := make([]Option, 0, len(specs))
	firstIndex := make(map[Key]int, len(specs))
	dupes := make(map[Key]struct{})
	for i, spec := range specs {
		key := strings.TrimSpace(spec.Key)
		switch {
		case key == "":
			verr.add("options[%d]: key is required", i)
		case len(key) > maxKeyLen:
			verr.add("options[%d]: key %q exceeds %d characters", i, key, maxKeyLen)
		case !keyPattern.MatchString(key):
			verr.add("options[%d]: key %q must match %s", i, key, keyPattern.String())
		}
		if strings.TrimSpace(spec.Label) == "" {
			verr.add("options[%d]: label is required", i)
		}
		if key != "" {
			if _, ok := firstIndex[Key(key)]; ok {
				dupes[Key(key)] = struct{}{}
			} else {
				firstIndex[Key(key)] = i
			}
		}
		out = append(out, Option{
			Key:      Key(key),
			Label:    Label(spec.Label),
			Metadata: spec.Metadata,
			Order:    i,
		})
	}
	for key := range dupes {
		verr.add("duplicate option key %q", key)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}
