package sitemap

import (
	"fmt"
	"strings"
)

type batch struct {
	Filename string
	URLs     []URL
}

// split partitions urls in order into batches of at most max entries.
// The first batch takes the base filename; later ones are suffixed -2, -3...
func split(urls []URL, max int, filename string) []batch {
	if max < 1 {
		max = 1
	}

	batches := make([]batch, 0, (len(urls)+max-1)/max)
	for start := 0; start < len(urls); start += max {
		end := min(start+max, len(urls))
		batches = append(batches, batch{
			Filename: batchFilename(filename, len(batches)+1),
			URLs:     urls[start:end],
		})
	}

	return batches
}

func batchFilename(filename string, n int) string {
	if n == 1 {
		return filename
	}
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		filename, ext = filename[:i], filename[i:]
	}
	return fmt.Sprintf("%s-%d%s", filename, n, ext)
}
