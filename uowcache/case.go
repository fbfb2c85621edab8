package uowcache

import (
	"strings"
	"unicode"
)

// opName builds the operation segment of a cache key from an entity kind and
// a repository method name, e.g. opName("habit", "GetByID") is
// "habit_get_by_id". Prefixing with the entity keeps the per-entity Stats
// grouping and entity-wide prefix sweeps trivial.
func opName(entity, method string) string {
	return entity + "_" + toSnake(method)
}

// toSnake converts an exported Go method name to snake_case. Method names are
// ASCII identifiers, so the rules only need to handle case boundaries and
// acronym runs like "ID" and "URL".
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
