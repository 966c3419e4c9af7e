package service

import (
	"context"
	"time"

	"github.com/CICTstudcoDingle/ictirc-sub001/internal/models"
	"github.com/CICTstudcoDingle/ictirc-sub001/internal/repository"
)

type doiMinter interface {
	Mint(ctx context.Context) (string, error)
}

// PublicationService completes the move to PUBLISHED. It has no HTTP surface and runs inside
// the status change transaction.
type PublicationService struct {
	doi doiMinter
	now func() time.Time
}

// NewPublicationService constructs a PublicationService. A nil clock uses time.Now.
func NewPublicationService(doi doiMinter, now func() time.Time) *PublicationService {
	if now == nil {
		now = time.Now
	}
	return &PublicationService{doi: doi, now: now}
}

// Publish stamps the publication time on upd and mints a DOI when the paper has none.
// It reports whether a DOI was minted.
func (s *PublicationService) Publish(ctx context.Context, paper *models.Paper, upd *repository.StatusUpdate) (bool, error) {
	publishedAt := s.now().UTC()
	upd.PublishedAt = &publishedAt
	if paper.HasDOI() {
		return false, nil
	}
	doi, err := s.doi.Mint(ctx)
	if err != nil {
		return false, err
	}
	upd.DOI = &doi
	return true, nil
}
