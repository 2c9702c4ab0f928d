package ingest

import (
	"strings"

	"github.com/veldt/feedgest/lib/models"
	"golang.org/x/net/html"
)

const (
	// truncateLength caps the visible characters of a truncated body,
	// indicator included.
	truncateLength    = 250
	truncateIndicator = "..."
)

// Render applies the feed's verbosity policy to a raw item body. Usable on
// its own for previews; unknown verbosity values behave as "full".
func Render(verbosity, desc string) string {
	switch verbosity {
	case models.VerbosityLinkOnly:
		return ""
	case models.VerbosityTruncate:
		return truncateHTML(desc, truncateLength)
	default:
		return desc
	}
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// truncateHTML cuts markup down to at most max visible characters without
// leaving dangling open tags. Markup shorter than the budget passes through
// untouched.
func truncateHTML(raw string, max int) string {
	if visibleLength(raw) <= max {
		return raw
	}

	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	remaining := max - len(truncateIndicator)

	var out strings.Builder
	var open []string

	for remaining > 0 {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.TextToken:
			text := []rune(string(tokenizer.Text()))
			if len(text) > remaining {
				text = text[:remaining]
			}
			out.WriteString(html.EscapeString(string(text)))
			remaining -= len(text)

		case html.StartTagToken:
			out.Write(tokenizer.Raw())
			name, _ := tokenizer.TagName()
			if !voidElements[string(name)] {
				open = append(open, string(name))
			}

		case html.EndTagToken:
			out.Write(tokenizer.Raw())
			name, _ := tokenizer.TagName()
			for i := len(open) - 1; i >= 0; i-- {
				if open[i] == string(name) {
					open = append(open[:i], open[i+1:]...)
					break
				}
			}

		case html.SelfClosingTagToken:
			out.Write(tokenizer.Raw())
		}
	}

	out.WriteString(truncateIndicator)
	for i := len(open) - 1; i >= 0; i-- {
		out.WriteString("</" + open[i] + ">")
	}
	return out.String()
}

func visibleLength(raw string) int {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	length := 0
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return length
		}
		if tt == html.TextToken {
			length += len([]rune(string(tokenizer.Text())))
		}
	}
}
