package option

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

const (
	maxSlugLen  = 24
	hashLen     = 8
	emptyPrefix = "opt"
)

// GenerateKey derives the immutable key for a choice from its label, its
// position in the option list, and the owning question id. The same inputs
// always produce the same key, so migrations and tests are reproducible.
//
// The key is a lowercased slug of the label (non-alphanumeric runs collapsed
// to a single underscore, truncated) joined with a short hash of all three
// inputs. Labels that slug to nothing (emoji-only, punctuation-only) fall
// back to a fixed prefix so a key is never empty.
func GenerateKey(label string, index int, questionID string) Key {
	slug := slugify(label)
	if slug == "" {
		slug = emptyPrefix
	}
	return Key(slug + "_" + shortHash(label, index, questionID))
}

func slugify(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
		if b.Len() >= maxSlugLen {
			break
		}
	}
	return strings.Trim(b.String(), "_")
}

func shortHash(label string, index int, questionID string) string {
	h := sha256.New()
	h.Write([]byte(label))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte{0})
	h.Write([]byte(questionID))
	return hex.EncodeToString(h.Sum(nil))[:hashLen]
}
