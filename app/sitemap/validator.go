package sitemap

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate drops URLs whose loc is not absolute and prunes invalid images
// and alternates. It never fails: every rejection becomes a diagnostic.
func Validate(candidates []URL) ([]URL, []string) {
	valid := make([]URL, 0, len(candidates))
	var diagnostics []string

	for _, u := range candidates {
		if !isAbsoluteURL(u.Loc) {
			diagnostics = append(diagnostics, fmt.Sprintf("Invalid URL: %s", u.Loc))
			continue
		}

		if len(u.Images) > 0 {
			images := make([]Image, 0, len(u.Images))
			for _, img := range u.Images {
				if !isAbsoluteURL(img.Loc) {
					diagnostics = append(diagnostics, fmt.Sprintf("Invalid image URL: %s", img.Loc))
					continue
				}
				images = append(images, img)
			}
			u.Images = images
		}

		if len(u.Alternates) > 0 {
			alternates := make([]Alternate, 0, len(u.Alternates))
			for _, alt := range u.Alternates {
				lang, ok := normalizeLang(alt.Lang)
				if !ok || !isAbsoluteURL(alt.Href) {
					diagnostics = append(diagnostics, fmt.Sprintf("Invalid alternate for %s: %s", u.Loc, alt.Lang))
					continue
				}
				alternates = append(alternates, Alternate{Lang: lang, Href: alt.Href})
			}
			u.Alternates = alternates
		}

		valid = append(valid, u)
	}

	return valid, diagnostics
}

// normalizeLang canonicalises a BCP 47 tag; x-default is accepted as is.
func normalizeLang(tag string) (string, bool) {
	if strings.EqualFold(tag, "x-default") {
		return "x-default", true
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
