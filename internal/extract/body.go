package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Body joins the trimmed, non-empty text of every element matched by
// selector. ErrSelector is returned when nothing matches.
func Body(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrSelector, selector)
	}

	var parts []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " "), nil
}

// readableBody runs readability on the whole page, for sources without a
// text selector.
func readableBody(raw []byte, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	art, err := readability.FromReader(bytes.NewReader(raw), u)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	text := strings.Join(strings.Fields(art.TextContent), " ")
	if text == "" {
		return "", fmt.Errorf("%w: readability found no content", ErrSelector)
	}
	return text, nil
}
