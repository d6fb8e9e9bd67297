package feed

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify folds s to lowercase ASCII words joined by dashes.
func Slugify(s string) string {
	folding := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folding, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Trim(slugSeparators.ReplaceAllString(folded, "-"), "-")
}

// slugFromLink uses the last path segment of an item link, falling back
// to the title when the link has no usable path.
func slugFromLink(link, title string) string {
	if u, err := url.Parse(link); err == nil {
		segment := path.Base(strings.TrimRight(u.Path, "/"))
		segment = strings.TrimSuffix(segment, path.Ext(segment))
		if unescaped, err := url.PathUnescape(segment); err == nil {
			segment = unescaped
		}
		if slug := Slugify(segment); slug != "" {
			return slug
		}
	}
	return Slugify(title)
}
