package app

import (
	"database/sql"
	"time"

	"github.com/veldt/feedgest/lib/models"
)

type FeedView struct {
	ID                  uint   `json:"id"`
	UserID              uint   `json:"user_id"`
	URL                 string `json:"url"`
	Title               string `json:"title"`
	ImageURL            string `json:"image_url"`
	FeedType            string `json:"feed_type"`
	Verbosity           string `json:"verbosity"`
	HeaderMatch         string `json:"header_match,omitempty"`
	BodyMatch           string `json:"body_match,omitempty"`
	ContextType         string `json:"context_type,omitempty"`
	ContextID           uint   `json:"context_id,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	RefreshAt           string `json:"refresh_at"`
	LastPollTime        *string `json:"last_poll_time"`
}

func (view FeedView) From(entity *models.Feed) FeedView {
	return FeedView{
		ID:                  entity.ID,
		UserID:              entity.UserID,
		URL:                 entity.URL,
		Title:               entity.Title,
		ImageURL:            entity.ImageURL,
		FeedType:            entity.FeedType,
		Verbosity:           entity.Verbosity,
		HeaderMatch:         entity.HeaderMatch,
		BodyMatch:           entity.BodyMatch,
		ContextType:         entity.ContextType,
		ContextID:           entity.ContextID,
		ConsecutiveFailures: entity.ConsecutiveFailures,
		RefreshAt:           fmtTime(entity.RefreshAt),
		LastPollTime:        fmtNullTime(entity.LastPollTime),
	}
}

type EntryView struct {
	ID          uint    `json:"id"`
	UUID        string  `json:"uuid"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	URL         string  `json:"url"`
	SourceName  string  `json:"source_name"`
	SourceURL   string  `json:"source_url"`
	PostedAt    string  `json:"posted_at"`
	StartAt     *string `json:"start_at,omitempty"`
	EndAt       *string `json:"end_at,omitempty"`
	Status      string  `json:"status"`
	AuthorName  string  `json:"author_name,omitempty"`
	AuthorURL   string  `json:"author_url,omitempty"`
	AuthorEmail string  `json:"author_email,omitempty"`
}

func (view EntryView) From(entity *models.Entry) EntryView {
	return EntryView{
		ID:          entity.ID,
		UUID:        entity.UUID,
		Title:       entity.Title,
		Message:     entity.Message,
		URL:         entity.URL,
		SourceName:  entity.SourceName,
		SourceURL:   entity.SourceURL,
		PostedAt:    fmtTime(entity.PostedAt),
		StartAt:     fmtTimePtr(entity.StartAt),
		EndAt:       fmtTimePtr(entity.EndAt),
		Status:      entity.Status,
		AuthorName:  entity.AuthorName,
		AuthorURL:   entity.AuthorURL,
		AuthorEmail: entity.AuthorEmail,
	}
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fmtTime(*t)
	return &s
}

func fmtNullTime(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := fmtTime(t.Time)
	return &s
}
