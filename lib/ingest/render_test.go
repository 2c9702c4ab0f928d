package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/veldt/feedgest/lib/models"
)

func TestRenderVerbosity(t *testing.T) {
	desc := "<p>hello <b>world</b></p>"

	assert.Equal(t, "", Render(models.VerbosityLinkOnly, desc))
	assert.Equal(t, desc, Render(models.VerbosityFull, desc))
	assert.Equal(t, desc, Render("", desc))
	assert.Equal(t, desc, Render(models.VerbosityTruncate, desc)) // under budget, untouched
}

func TestTruncateHTMLKeepsTagsBalanced(t *testing.T) {
	long := "<div><p>intro</p><b>" + strings.Repeat("a", 1000) + "</b></div>"

	out := truncateHTML(long, 250)

	assert.LessOrEqual(t, visibleLength(out), 250)
	assert.True(t, strings.HasSuffix(out, "...</b></div>"), "open tags must be closed after the indicator, got: %s", out)
	assert.Equal(t, strings.Count(out, "<b>"), strings.Count(out, "</b>"))
	assert.Equal(t, strings.Count(out, "<div>"), strings.Count(out, "</div>"))
}

func TestTruncateHTMLPlainText(t *testing.T) {
	out := truncateHTML(strings.Repeat("x", 1000), 250)

	assert.Equal(t, 250, visibleLength(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestTruncateHTMLVoidElements(t *testing.T) {
	long := "line<br/>" + strings.Repeat("y", 1000)

	out := truncateHTML(long, 250)

	// br never opens a dangling tag
	assert.NotContains(t, out, "</br>")
	assert.LessOrEqual(t, visibleLength(out), 250)
}
