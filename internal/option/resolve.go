package option

import "fmt"

// Answer resolution maps raw submitted values to canonical keys against the
// question's CURRENT option set. A value matches either an existing key
// verbatim or an existing current label; a label that has been renamed away
// is no longer valid input for new submissions, even though old submissions
// keep displaying under it. That asymmetry is deliberate.

// ResolveSingle resolves one submitted value for a single-select question.
func ResolveSingle(raw string, opts []Option) (Key, error) {
	key, ok := match(raw, opts)
	if !ok {
		return "", &ValidationError{Problems: []string{unknownOption(raw)}}
	}
	return key, nil
}

// ResolveMulti resolves a multi-select answer. Every value must resolve, and
// no two values may resolve to the same key: selecting an option twice (for
// example once by key and once by its label) is ambiguous input and is
// rejected rather than silently collapsed. All problems are reported at once.
func ResolveMulti(raw []string, opts []Option) ([]Key, error) {
	verr := &ValidationError{}
	if len(raw) == 0 {
		verr.add("at least one selection is required")
		return nil, verr
	}

	out := make([]Key, 0, len(raw))
	seen := make(map[Key]string, len(raw))
	for _, value := range raw {
		key, ok := match(value, opts)
		if !ok {
			verr.add(unknownOption(value))
			continue
		}
		if prev, dup := seen[key]; dup {
			verr.add("duplicate selection: %q and %q both resolve to option %q", prev, value, key)
			continue
		}
		seen[key] = value
		out = append(out, key)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func match(raw string, opts []Option) (Key, bool) {
	for _, o := range opts {
		if Key(raw) == o.Key {
			return o.Key, true
		}
	}
	for _, o := range opts {
		if Label(raw) == o.Label {
			return o.Key, true
		}
	}
	return "", false
}

func unknownOption(raw string) string {
	return fmt.Sprintf("unknown option %q", raw)
}
