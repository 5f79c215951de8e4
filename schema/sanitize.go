package schema

import (
	"strings"

	"github.com/umisama/go-regexpcache"
)

// Every rune that is not a letter or digit becomes an underscore.
const invalidIdentRunes = `[^\p{L}\p{N}]`

// reservedWords are SQLite keywords, plus "type", which may not be used as
// bare identifiers.
var reservedWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		abort action add after all alter always analyze and as asc attach
		autoincrement before begin between by cascade case cast check collate
		column commit conflict constraint create cross current current_date
		current_time current_timestamp database default deferrable deferred
		delete desc detach distinct do drop each else end escape except exclude
		exclusive exists explain fail filter first following for foreign from
		full generated glob group groups having if ignore immediate in index
		indexed initially inner insert instead intersect into is isnull join
		key last left like limit match materialized natural no not nothing
		notnull null nulls of offset on or order others outer over partition
		plan pragma preceding primary query raise range recursive references
		regexp reindex release rename replace restrict returning right rollback
		row rows savepoint select set table temp temporary then ties to
		transaction trigger type unbounded union unique update using vacuum
		values view virtual when where window with without
	`) {
		reservedWords[w] = struct{}{}
	}
}

// Sanitize turns an arbitrary document key into a storage-safe identifier.
// It is pure: the same input always yields the same output.
func Sanitize(name string) string {
	s := regexpcache.MustCompile(invalidIdentRunes).ReplaceAllString(name, "_")
	if s == "" || IsReserved(s) {
		s = "_" + s
	}
	return s
}

// IsReserved reports whether name collides, case-insensitively, with a
// reserved word.
func IsReserved(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}
