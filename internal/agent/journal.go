package agent

import (
	"context"

	"jobAgent/internal/database"
)

// dbJournal пишет итоги в таблицу applications.
type dbJournal struct {
	repo *database.ApplicationRepository
}

func NewJournal(repo *database.ApplicationRepository) Journal {
	return dbJournal{repo: repo}
}

func (j dbJournal) Record(ctx context.Context, runID string, r Result) error {
	return j.repo.Record(ctx, &database.Application{
		RunID:     runID,
		SessionID: r.SessionID,
		JobID:     r.Listing.ID,
		Title:     r.Listing.Title,
		Company:   r.Listing.Company,
		Outcome:   string(r.Outcome),
		Reason:    r.Reason,
	})
}
