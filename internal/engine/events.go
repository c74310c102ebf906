package engine

import (
	"context"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/repo"
)

// ListEvents returns the audit log newest first. Only admins read it; creators
// learn about changes through notifications.
func (e Engine) ListEvents(ctx context.Context, actor auth.Actor, f repo.EventFilters) ([]domain.Event, error) {
	if err := auth.RequireAdmin(actor, "read events"); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, f)
}
