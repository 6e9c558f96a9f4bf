package mastery

import (
	"strings"
	"unicode"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyConceptKey is returned when a concept name yields no usable key.
var ErrEmptyConceptKey = errors.New("concept name produces an empty key")

// FallbackKeyPrefix prefixes generated keys for unnamed concepts.
const FallbackKeyPrefix = "concept-"

// CreateConceptKey slugs name into a stable key: diacritics folded, lowercased,
// every run of non-alphanumeric characters collapsed to one hyphen, hyphens trimmed.
// Identical names always produce identical keys.
func CreateConceptKey(name string) (string, error) {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	if b.Len() == 0 {
		return "", ErrEmptyConceptKey
	}
	return b.String(), nil
}

// CreateConceptKeyOrFallback behaves like CreateConceptKey but returns a unique
// generated key when name yields none. generated reports which one was returned.
func CreateConceptKeyOrFallback(name string) (key string, generated bool) {
	key, err := CreateConceptKey(name)
	if err != nil {
		return FallbackKeyPrefix + shortuuid.New(), true
	}
	return key, false
}
