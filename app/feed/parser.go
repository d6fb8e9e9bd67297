package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
		PublishedAt: feed.PublishedParsed,
		UpdatedAt:   feed.UpdatedParsed,
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, p.normalizeItem(item))
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:        cmp.Or(item.GUID, item.Link),
		Title:       item.Title,
		Link:        item.Link,
		Slug:        slugFromLink(item.Link, item.Title),
		PublishedAt: item.PublishedParsed,
		UpdatedAt:   item.UpdatedParsed,
		Author:      p.extractAuthor(item),
	}

	for _, category := range item.Categories {
		if category = strings.TrimSpace(category); category != "" {
			normalized.Categories = append(normalized.Categories, category)
		}
	}

	normalized.ImageURL, normalized.ImageTitle = p.extractImage(item)

	return normalized
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				if name := formatAuthor(author.Name, author.Email); name != "" {
					return name
				}
			}
		}
	} else if item.Author != nil {
		return formatAuthor(item.Author.Name, item.Author.Email)
	}
	return ""
}

// extractImage prefers the item image, then an image enclosure, then a
// media:thumbnail or media:content extension.
func (p *Parser) extractImage(item *gofeed.Item) (string, string) {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL, item.Image.Title
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL, ""
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"thumbnail", "content"} {
			for _, ext := range media[name] {
				if u := ext.Attrs["url"]; u != "" {
					if medium := ext.Attrs["medium"]; medium != "" && medium != "image" {
						continue
					}
					return u, ""
				}
			}
		}
	}

	return "", ""
}

func formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
