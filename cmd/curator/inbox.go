package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kurtb/curator/pkg/domain"
	"github.com/kurtb/curator/pkg/pipeline"
)

// fileInbox reads candidate items from a JSON export produced by the
// newsletter extraction step
type fileInbox struct {
	path string
}

// inboxFile is the on-disk export format
type inboxFile struct {
	EmailsFetched int             `json:"emails_fetched"`
	Candidates    []candidateJSON `json:"candidates"`
}

type candidateJSON struct {
	SourceURL        string `json:"source_url"`
	ResolvedURL      string `json:"resolved_url"`
	LinkText         string `json:"link_text"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	SiteName         string `json:"site_name"`
	Hostname         string `json:"hostname"`
	Description      string `json:"description"`
	Text             string `json:"text"`
	ExtractionStatus string `json:"extraction_status"`

	EmailID      string `json:"email_id"`
	EmailSubject string `json:"email_subject"`
	EmailSender  string `json:"email_sender"`
}

// Fetch loads the export file
func (f *fileInbox) Fetch(_ context.Context) (pipeline.Inbox, error) {
	raw, err := os.ReadFile(f.path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return pipeline.Inbox{}, fmt.Errorf("read inbox file: %w", err)
	}

	var file inboxFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return pipeline.Inbox{}, fmt.Errorf("parse inbox file: %w", err)
	}

	candidates := make([]domain.CandidateItem, 0, len(file.Candidates))
	for _, c := range file.Candidates {
		status := domain.ExtractionStatus(c.ExtractionStatus)
		if status == "" {
			status = domain.ExtractionOK
		}
		candidates = append(candidates, domain.CandidateItem{
			SourceURL:        c.SourceURL,
			ResolvedURL:      c.ResolvedURL,
			LinkText:         c.LinkText,
			Title:            c.Title,
			Author:           c.Author,
			SiteName:         c.SiteName,
			Hostname:         c.Hostname,
			Description:      c.Description,
			Text:             c.Text,
			TextLength:       len(c.Text),
			ExtractionStatus: status,
			Email: domain.EmailMeta{
				ID:      c.EmailID,
				Subject: c.EmailSubject,
				Sender:  c.EmailSender,
			},
		})
	}

	return pipeline.Inbox{EmailsFetched: file.EmailsFetched, Candidates: candidates}, nil
}
