package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
	"campaignline/internal/lifecycle"
	"campaignline/internal/repo"
)

// Notification kinds carried by notification.requested events.
const (
	NotifySelected          = "selected"
	NotifyRejected          = "rejected"
	NotifyCancelled         = "cancelled"
	NotifyVideoApproved     = "approved"
	NotifyRevisionRequested = "revision_requested"
	NotifyCompleted         = "completed"
)

// Apply records a creator's application to a campaign.
func (e Engine) Apply(ctx context.Context, actor auth.Actor, campaignID, mainChannel string) (domain.Application, error) {
	if err := auth.RequireCreator(actor, "", "apply"); err != nil {
		return domain.Application{}, err
	}
	c, err := e.Repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.Application{}, fmt.Errorf("campaign %s: %w", campaignID, err)
	}
	mainChannel = normalizePlatform(mainChannel)
	if mainChannel != "" {
		if !isKnownPlatform(mainChannel) {
			return domain.Application{}, invalid("main_channel", "unknown platform %q", mainChannel)
		}
		if len(c.TargetPlatforms) > 0 && !contains(c.TargetPlatforms, mainChannel) {
			return domain.Application{}, invalid("main_channel", "must be one of %s", strings.Join(c.TargetPlatforms, ", "))
		}
	}
	now := e.timestamp()
	app := domain.Application{
		ID:          newID(),
		CampaignID:  c.ID,
		UserID:      actor.ID,
		Status:      domain.StatusPending,
		MainChannel: mainChannel,
		Slots:       lifecycle.NewSlots(c.Type),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return app, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertApplication(ctx, tx, app); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return app, fmt.Errorf("%w: %s already applied to campaign %s", ErrConflict, actor.ID, c.ID)
		}
		return app, fmt.Errorf("insert application: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.ApplicationCreated, c.ID, "application", app.ID, actor.ID, events.EventPayload{
		"user_id":      app.UserID,
		"main_channel": app.MainChannel,
	}); err != nil {
		return app, err
	}
	if err := tx.Commit(); err != nil {
		return app, err
	}
	return app, nil
}

// GetApplication returns an application visible to the actor.
func (e Engine) GetApplication(ctx context.Context, actor auth.Actor, id string) (domain.Application, error) {
	app, err := e.Repo.GetApplication(ctx, id)
	if err != nil {
		return app, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, app.UserID, "view application"); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// ListApplications lists applications; creators only ever see their own.
func (e Engine) ListApplications(ctx context.Context, actor auth.Actor, f repo.ApplicationFilters) ([]domain.Application, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		f.UserID = actor.ID
	}
	return e.Repo.ListApplications(ctx, f)
}

// ApproveApplication selects a pending application. slots lists the weeks assigned to
// the creator; empty assigns every slot of the campaign.
func (e Engine) ApproveApplication(ctx context.Context, actor auth.Actor, id string, slots []int) (domain.Application, error) {
	if err := auth.RequireAdmin(actor, "approve application"); err != nil {
		return domain.Application{}, err
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	next, err := lifecycle.Approve(app, slots)
	if err != nil {
		return app, err
	}
	return e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		assigned := lifecycle.AssignedSlots(saved)
		if err := e.events().Append(ctx, tx, events.ApplicationSelected, saved.CampaignID, "application", saved.ID, actor.ID, events.EventPayload{
			"slots": assigned,
		}); err != nil {
			return err
		}
		return e.notify(ctx, tx, actor, saved, NotifySelected, events.EventPayload{
			"campaign_title": c.Title,
			"slots":          assigned,
		})
	})
}

func (e Engine) RejectApplication(ctx context.Context, actor auth.Actor, id, reason string) (domain.Application, error) {
	if err := auth.RequireAdmin(actor, "reject application"); err != nil {
		return domain.Application{}, err
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	next, err := lifecycle.Reject(app)
	if err != nil {
		return app, err
	}
	return e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		if err := e.events().Append(ctx, tx, events.ApplicationRejected, saved.CampaignID, "application", saved.ID, actor.ID, events.EventPayload{
			"reason": reason,
		}); err != nil {
			return err
		}
		return e.notify(ctx, tx, actor, saved, NotifyRejected, events.EventPayload{
			"campaign_title": c.Title,
			"reason":         reason,
		})
	})
}

// CancelApplication rescinds an application. Whether posted work blocks the
// cancellation is decided by lifecycle.allow_cancel_after_sns.
func (e Engine) CancelApplication(ctx context.Context, actor auth.Actor, id, reason string) (domain.Application, error) {
	if err := auth.RequireAdmin(actor, "cancel application"); err != nil {
		return domain.Application{}, err
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	next, err := lifecycle.Cancel(app, lifecycle.CancelPolicy{AllowAfterSNS: e.Config.Lifecycle.AllowCancelAfterSNS})
	if err != nil {
		return app, err
	}
	review := lifecycle.HasPostedSlot(app)
	return e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		if err := e.events().Append(ctx, tx, events.ApplicationCancelled, saved.CampaignID, "application", saved.ID, actor.ID, events.EventPayload{
			"reason":      reason,
			"prev_status": app.Status,
		}); err != nil {
			return err
		}
		return e.notify(ctx, tx, actor, saved, NotifyCancelled, events.EventPayload{
			"campaign_title":         c.Title,
			"reason":                 reason,
			"reward_review_required": review,
		})
	})
}

// SetCustomDeadline overrides a campaign deadline for one application. An empty
// value removes the override.
func (e Engine) SetCustomDeadline(ctx context.Context, actor auth.Actor, id, key, value string) (domain.Application, error) {
	if err := auth.RequireAdmin(actor, "set deadline"); err != nil {
		return domain.Application{}, err
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	if !lifecycle.ValidDeadlineKey(c.Type, key) {
		return app, invalid("key", "must be one of %s", strings.Join(lifecycle.DeadlineKeys(c.Type), ", "))
	}
	value = strings.TrimSpace(value)
	if value != "" && !validDate(value) {
		return app, invalid("deadline", "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	}
	if lifecycle.Terminal(app.Status) {
		return app, invalid("application", "is %s", app.Status)
	}
	next := app
	next.CustomDeadlines = map[string]string{}
	for k, v := range app.CustomDeadlines {
		next.CustomDeadlines[k] = v
	}
	if value == "" {
		delete(next.CustomDeadlines, key)
	} else {
		next.CustomDeadlines[key] = value
	}
	return e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		return e.events().Append(ctx, tx, events.ApplicationDeadlineSet, saved.CampaignID, "application", saved.ID, actor.ID, events.EventPayload{
			"key":   key,
			"value": value,
		})
	})
}

// Progress returns the projection of an application for display.
func (e Engine) Progress(ctx context.Context, actor auth.Actor, id string) (lifecycle.Progress, error) {
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return lifecycle.Progress{}, err
	}
	if err := auth.RequireOwnerOrAdmin(actor, app.UserID, "view progress"); err != nil {
		return lifecycle.Progress{}, err
	}
	return lifecycle.Project(c, app), nil
}

func (e Engine) StartFilming(ctx context.Context, actor auth.Actor, id string, slot int) (domain.Application, error) {
	return e.creatorSlotAction(ctx, actor, id, slot, lifecycle.TriggerStartFilming)
}

func (e Engine) ApproveVideo(ctx context.Context, actor auth.Actor, id string, slot int) (domain.Application, error) {
	return e.adminSlotAction(ctx, actor, id, slot, lifecycle.TriggerApproveVideo, func(tx *sql.Tx, c domain.Campaign, saved domain.Application) error {
		return e.notify(ctx, tx, actor, saved, NotifyVideoApproved, slotPayload(c, slot))
	})
}

// Finalize closes a posted slot. Completing the last assigned slot completes the
// application and makes the reward payable.
func (e Engine) Finalize(ctx context.Context, actor auth.Actor, id string, slot int) (domain.Application, error) {
	return e.adminSlotAction(ctx, actor, id, slot, lifecycle.TriggerFinalize, func(tx *sql.Tx, c domain.Campaign, saved domain.Application) error {
		if saved.Status != domain.StatusCompleted {
			return nil
		}
		payload := slotPayload(c, slot)
		payload["reward_amount"] = c.RewardAmount
		return e.notify(ctx, tx, actor, saved, NotifyCompleted, payload)
	})
}

// RequestRevision sends a submitted video back to the creator. The comment is
// appended to the revision ledger in the same transaction as the state change.
func (e Engine) RequestRevision(ctx context.Context, actor auth.Actor, id string, slot int, comment, commentTranslated string) (domain.Application, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		if err := auth.RequireAdmin(actor, "request revision"); err != nil {
			return domain.Application{}, err
		}
		return domain.Application{}, required("comment")
	}
	var entry domain.RevisionRequest
	app, err := e.adminSlotAction(ctx, actor, id, slot, lifecycle.TriggerRequestRevision, func(tx *sql.Tx, c domain.Campaign, saved domain.Application) error {
		entry = domain.RevisionRequest{
			ID:                newID(),
			ApplicationID:     saved.ID,
			Slot:              slot,
			Comment:           comment,
			CommentTranslated: strings.TrimSpace(commentTranslated),
			AuthorID:          actor.ID,
			CreatedAt:         e.timestamp(),
		}
		if err := e.Repo.InsertRevisionRequest(ctx, tx, entry); err != nil {
			return fmt.Errorf("append revision request: %w", err)
		}
		if err := e.events().Append(ctx, tx, events.RevisionRequested, saved.CampaignID, "application", saved.ID, actor.ID, events.EventPayload{
			"revision_id": entry.ID,
			"slot":        slot,
		}); err != nil {
			return err
		}
		payload := slotPayload(c, slot)
		payload["comment"] = comment
		return e.notify(ctx, tx, actor, saved, NotifyRevisionRequested, payload)
	})
	if err != nil {
		return app, err
	}
	app.RevisionRequests = append(app.RevisionRequests, entry)
	return app, nil
}

func (e Engine) creatorSlotAction(ctx context.Context, actor auth.Actor, id string, slot int, trig lifecycle.Trigger) (domain.Application, error) {
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	if err := auth.RequireCreator(actor, app.UserID, string(trig)); err != nil {
		return app, err
	}
	if err := lifecycle.Project(c, app).Allow(slot, trig); err != nil {
		return app, err
	}
	next, err := lifecycle.ApplySlotTrigger(app, slot, trig)
	if err != nil {
		return app, err
	}
	touchSlot(&next, slot, e.timestamp())
	saved, err := e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		return e.transitionEvents(ctx, tx, actor, app, saved, slot, trig)
	})
	if err == nil {
		e.logTransition(saved, actor, slot, trig)
	}
	return saved, err
}

func (e Engine) adminSlotAction(ctx context.Context, actor auth.Actor, id string, slot int, trig lifecycle.Trigger, after func(tx *sql.Tx, c domain.Campaign, saved domain.Application) error) (domain.Application, error) {
	if err := auth.RequireAdmin(actor, string(trig)); err != nil {
		return domain.Application{}, err
	}
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	next, err := lifecycle.ApplySlotTrigger(app, slot, trig)
	if err != nil {
		return app, err
	}
	touchSlot(&next, slot, e.timestamp())
	saved, err := e.commitApplication(ctx, actor, app, next, func(tx *sql.Tx, saved domain.Application) error {
		if err := e.transitionEvents(ctx, tx, actor, app, saved, slot, trig); err != nil {
			return err
		}
		if after != nil {
			return after(tx, c, saved)
		}
		return nil
	})
	if err == nil {
		e.logTransition(saved, actor, slot, trig)
	}
	return saved, err
}

// commitApplication writes next in one transaction together with whatever after
// appends. prev is returned unchanged on failure.
func (e Engine) commitApplication(ctx context.Context, actor auth.Actor, prev, next domain.Application, after func(tx *sql.Tx, saved domain.Application) error) (domain.Application, error) {
	if err := lifecycle.CheckConsistency(next); err != nil {
		return prev, fmt.Errorf("refusing inconsistent application: %w", err)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return prev, err
	}
	defer tx.Rollback()
	saved, err := e.saveApplication(ctx, tx, prev, next)
	if err != nil {
		return prev, err
	}
	if after != nil {
		if err := after(tx, saved); err != nil {
			return prev, err
		}
	}
	if err := tx.Commit(); err != nil {
		return prev, err
	}
	return saved, nil
}

func touchSlot(app *domain.Application, slot int, ts string) {
	if s, ok := app.Slot(slot); ok {
		s.UpdatedAt = ts
	}
}

func slotPayload(c domain.Campaign, slot int) events.EventPayload {
	payload := events.EventPayload{
		"campaign_title": c.Title,
		"slot":           slot,
	}
	if w := domain.WeekNumber(slot); w != nil {
		payload["week_number"] = *w
	}
	return payload
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
