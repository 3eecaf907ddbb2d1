package domain

// ExtractionStatus reports how article text extraction went for a candidate
type ExtractionStatus string

const (
	ExtractionOK      ExtractionStatus = "ok"
	ExtractionPartial ExtractionStatus = "partial"
	ExtractionFailed  ExtractionStatus = "failed"
)

// EmailMeta carries the originating email context for a candidate item
type EmailMeta struct {
	ID      string
	Subject string
	Sender  string
}

// CandidateItem is one link extracted from one email, produced by the
// content resolver. Immutable once created, consumed exactly once by the scorer.
type CandidateItem struct {
	SourceURL        string
	ResolvedURL      string
	LinkText         string
	Title            string
	Author           string
	SiteName         string
	Hostname         string
	Description      string
	Text             string
	TextLength       int
	ExtractionStatus ExtractionStatus
	Email            EmailMeta
}

// URL returns the best available URL for the candidate, preferring the resolved one
func (c *CandidateItem) URL() string {
	if c.ResolvedURL != "" {
		return c.ResolvedURL
	}
	return c.SourceURL
}
