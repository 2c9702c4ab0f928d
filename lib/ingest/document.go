package ingest

import (
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/mmcdole/gofeed"
	"github.com/veldt/feedgest/lib/models"
)

// Document is one parsed feed document tagged with its wire format. The
// engine never touches wire formats directly; converters below flatten each
// format's items into this shape.
type Document struct {
	Format   string // models.FeedTypeRSS | FeedTypeAtom | FeedTypeICal
	Title    string // channel / calendar title
	Link     string // channel link
	ImageURL string

	Items []Item
}

type Item struct {
	Title       string
	Link        string
	GUID        string // provider-supplied id; empty when the source has none
	Description string

	Published *time.Time // nil when missing or unparsable
	Author    *Author    // Atom only

	// Calendar events only.
	Start  *time.Time
	End    *time.Time
	Status string
}

type Author struct {
	Name  string
	URI   string
	Email string
}

// FromParsedFeed flattens a gofeed document (RSS or Atom; the format tag
// comes from the parser).
func FromParsedFeed(parsed *gofeed.Feed) *Document {
	format := models.FeedTypeRSS
	if parsed.FeedType == "atom" {
		format = models.FeedTypeAtom
	}

	doc := &Document{
		Format: format,
		Title:  parsed.Title,
		Link:   parsed.Link,
	}
	if parsed.Image != nil {
		doc.ImageURL = parsed.Image.URL
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}

		converted := Item{
			Title:       item.Title,
			Link:        item.Link,
			GUID:        item.GUID,
			Description: itemBody(item),
			Published:   item.PublishedParsed,
		}
		if format == models.FeedTypeAtom && len(item.Authors) > 0 && item.Authors[0] != nil {
			converted.Author = &Author{
				Name:  item.Authors[0].Name,
				Email: item.Authors[0].Email,
			}
		}
		doc.Items = append(doc.Items, converted)
	}
	return doc
}

func itemBody(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// FromCalendar flattens an iCalendar document's VEVENT components.
func FromCalendar(cal *ics.Calendar) *Document {
	doc := &Document{
		Format: models.FeedTypeICal,
		Title:  calendarProp(cal, "X-WR-CALNAME"),
	}
	for _, event := range cal.Events() {
		converted := Item{
			Title:       eventProp(event, ics.ComponentPropertySummary),
			Link:        eventProp(event, ics.ComponentPropertyUrl),
			Description: eventProp(event, ics.ComponentPropertyDescription),
			Status:      eventProp(event, ics.ComponentPropertyStatus),
		}
		if start, err := event.GetStartAt(); err == nil {
			converted.Start = &start
		}
		if end, err := event.GetEndAt(); err == nil {
			converted.End = &end
		}
		if stamp, err := event.GetDtStampTime(); err == nil {
			converted.Published = &stamp
		} else {
			converted.Published = converted.Start
		}
		doc.Items = append(doc.Items, converted)
	}
	return doc
}

func eventProp(event *ics.VEvent, name ics.ComponentProperty) string {
	if prop := event.GetProperty(name); prop != nil {
		return prop.Value
	}
	return ""
}

func calendarProp(cal *ics.Calendar, token string) string {
	for _, prop := range cal.CalendarProperties {
		if prop.IANAToken == token {
			return prop.Value
		}
	}
	return ""
}
