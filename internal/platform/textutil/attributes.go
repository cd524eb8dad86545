package textutil

import (
	"strings"
	"unicode"
)

const (
	maxAttributeKeyLen   = 40
	maxAttributeValueLen = 80
)

// VariantAttributes cleans the option map of a catalog variant (size, colour, ...) before it is copied
// onto cart and order lines. Keys become lower snake case, values lose markup, and entries left empty
// on either side are dropped. It returns nil when nothing survives.
func VariantAttributes(raw map[string]string) map[string]string {
	var out map[string]string
	for key, value := range raw {
		key = attributeKey(key)
		value = SanitizeText(value, maxAttributeValueLen)
		if key == "" || value == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string, len(raw))
		}
		out[key] = value
	}
	return out
}

func attributeKey(key string) string {
	var b strings.Builder
	gap := false
	for _, r := range strings.TrimSpace(key) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if gap && b.Len() > 0 {
				b.WriteByte('_')
			}
			gap = false
			b.WriteRune(unicode.ToLower(r))
		default:
			gap = true
		}
		if b.Len() >= maxAttributeKeyLen {
			break
		}
	}
	return b.String()
}
