package senders

import (
	"fmt"
	"strings"

	"github.com/veldt/feedgest/lib/htmltext"
	"github.com/veldt/feedgest/lib/models"
)

const digestExcerptLength = 200

type digestEmailFormat struct {
	feed    *models.Feed
	entries models.Entries
}

func (ef *digestEmailFormat) Subject() string {
	return fmt.Sprintf("Feedgest: %d new entries on %s", len(ef.entries), ef.feed.DisplayName())
}

func (ef *digestEmailFormat) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<h3>New entries on <a href="%s">%s</a>:</h3>`, ef.feed.URL, ef.feed.DisplayName())
	for _, entry := range ef.entries {
		excerpt := htmltext.PlainText(entry.Message)
		if excerptRunes := []rune(excerpt); len(excerptRunes) > digestExcerptLength {
			excerpt = string(excerptRunes[:digestExcerptLength])
		}
		fmt.Fprintf(&b, `<p><a href="%s">%s</a><br>%s</p>`, entry.URL, entry.Title, excerpt)
	}
	return b.String()
}

type verificationEmailFormat struct {
	verifyURL string
}

func (ef *verificationEmailFormat) Subject() string {
	return "Feedgest: Email verification required"
}

func (ef *verificationEmailFormat) Body() string {
	url := ef.verifyURL
	return fmt.Sprintf(`Click here to verify your email: <a href="%s">%s</a>`, url, url)
}
