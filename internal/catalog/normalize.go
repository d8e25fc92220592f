package catalog

import (
	"strings"

	"github.com/rainycape/unidecode"
)

// NormalizeName produces the dedup/sort key for artist names and
// album/track titles: diacritics stripped, case-folded, whitespace
// collapsed. Two spellings that normalize equal merge into one row.
func NormalizeName(name string) string {
	folded := strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
	return strings.Join(strings.Fields(folded), " ")
}
