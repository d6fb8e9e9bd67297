package feed

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-shiori/go-readability"
)

// ImageExtractor finds the lead image of an article page.
type ImageExtractor struct{}

func NewImageExtractor() *ImageExtractor {
	return &ImageExtractor{}
}

func (e *ImageExtractor) Run(data []byte, pageURL string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return "", fmt.Errorf("failed to extract article: %w", err)
	}

	if article.Image == "" {
		return "", nil
	}

	image, err := base.Parse(article.Image)
	if err != nil {
		return "", fmt.Errorf("invalid image URL %q: %w", article.Image, err)
	}

	slog.Debug("Lead image extracted", "page", pageURL, "image", image.String())

	return image.String(), nil
}
