package sitemap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"time"
)

const (
	sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"
	imageNS   = "http://www.google.com/schemas/sitemap-image/1.1"
	xhtmlNS   = "http://www.w3.org/1999/xhtml"
)

type Serializer struct {
	includeImages  bool
	includeLastmod bool
}

func NewSerializer(includeImages, includeLastmod bool) *Serializer {
	return &Serializer{includeImages: includeImages, includeLastmod: includeLastmod}
}

// URLSet renders one sitemap document.
func (s *Serializer) URLSet(urls []URL) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<urlset xmlns="` + sitemapNS + `"`)
	if s.includeImages {
		buf.WriteString(` xmlns:image="` + imageNS + `"`)
	}
	buf.WriteString(` xmlns:xhtml="` + xhtmlNS + `">`)
	buf.WriteString("\n")

	for i, u := range urls {
		if err := s.writeURL(&buf, u); err != nil {
			return "", fmt.Errorf("url %d: %w", i, err)
		}
	}

	buf.WriteString("</urlset>\n")

	return buf.String(), nil
}

// Index renders the sitemap index listing every file location.
func (s *Serializer) Index(locs []string, lastmod time.Time) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<sitemapindex xmlns="` + sitemapNS + `">`)
	buf.WriteString("\n")

	stamp := lastmod.UTC().Format(time.RFC3339)
	for _, loc := range locs {
		if loc == "" {
			return "", fmt.Errorf("empty sitemap location")
		}
		buf.WriteString("  <sitemap>\n")
		s.writeElement(&buf, "loc", loc, 4)
		s.writeElement(&buf, "lastmod", stamp, 4)
		buf.WriteString("  </sitemap>\n")
	}

	buf.WriteString("</sitemapindex>\n")

	return buf.String(), nil
}

func (s *Serializer) writeURL(buf *bytes.Buffer, u URL) error {
	if u.Loc == "" {
		return fmt.Errorf("missing loc")
	}
	if !u.ChangeFreq.Valid() {
		return fmt.Errorf("invalid changefreq %q for %s", u.ChangeFreq, u.Loc)
	}
	if math.IsNaN(u.Priority) || !inUnitRange(u.Priority) {
		return fmt.Errorf("priority %v out of range for %s", u.Priority, u.Loc)
	}

	buf.WriteString("  <url>\n")

	s.writeElement(buf, "loc", u.Loc, 4)
	if s.includeLastmod {
		s.writeElement(buf, "lastmod", u.LastMod, 4)
	}
	s.writeElement(buf, "changefreq", string(u.ChangeFreq), 4)
	s.writeElement(buf, "priority", fmt.Sprintf("%.1f", u.Priority), 4)

	if s.includeImages {
		for _, img := range u.Images {
			buf.WriteString("    <image:image>\n")
			s.writeElement(buf, "image:loc", img.Loc, 6)
			s.writeElement(buf, "image:caption", img.Caption, 6)
			s.writeElement(buf, "image:title", img.Title, 6)
			buf.WriteString("    </image:image>\n")
		}
	}

	for _, alt := range u.Alternates {
		buf.WriteString(`    <xhtml:link rel="alternate" hreflang="`)
		xml.EscapeText(buf, []byte(alt.Lang))
		buf.WriteString(`" href="`)
		xml.EscapeText(buf, []byte(alt.Href))
		buf.WriteString("\"/>\n")
	}

	buf.WriteString("  </url>\n")

	return nil
}

func (s *Serializer) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
