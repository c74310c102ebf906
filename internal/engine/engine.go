package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campaignline/internal/config"
	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
	"campaignline/internal/lifecycle"
	"campaignline/internal/media"
	"campaignline/internal/repo"
	"campaignline/internal/translate"
)

const logModule = "campaignline/engine"

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	Events     events.Writer
	Config     *config.Config
	Media      media.Store
	Translator translate.Translator
	Logger     *slog.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

func newID() string {
	return uuid.NewString()
}

// loadForSlot fetches the application and its campaign for a slot operation.
func (e Engine) loadForSlot(ctx context.Context, applicationID string) (domain.Campaign, domain.Application, error) {
	app, err := e.Repo.GetApplication(ctx, applicationID)
	if err != nil {
		return domain.Campaign{}, app, fmt.Errorf("application %s: %w", applicationID, err)
	}
	c, err := e.Repo.GetCampaign(ctx, app.CampaignID)
	if err != nil {
		return c, app, fmt.Errorf("campaign %s: %w", app.CampaignID, err)
	}
	return c, app, nil
}

// saveApplication persists next over prev inside tx. A concurrent writer turns into
// ErrConflict.
func (e Engine) saveApplication(ctx context.Context, tx *sql.Tx, prev, next domain.Application) (domain.Application, error) {
	next.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateApplication(ctx, tx, next, prev.Revision); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return next, fmt.Errorf("%w: application %s was modified concurrently", ErrConflict, next.ID)
		}
		return next, err
	}
	next.Revision = prev.Revision + 1
	return next, nil
}

// transitionEvents records the slot and status change produced by a trigger.
func (e Engine) transitionEvents(ctx context.Context, tx *sql.Tx, actor auth.Actor, prev, next domain.Application, slot int, trig lifecycle.Trigger) error {
	before, _ := prev.Slot(slot)
	after, _ := next.Slot(slot)
	payload := events.EventPayload{
		"trigger":     string(trig),
		"slot":        slot,
		"from":        string(before.State),
		"to":          string(after.State),
		"status":      next.Status,
		"prev_status": prev.Status,
	}
	if w := domain.WeekNumber(slot); w != nil {
		payload["week_number"] = *w
	}
	return e.events().Append(ctx, tx, events.SlotTransitioned, next.CampaignID, "application", next.ID, actor.ID, payload)
}

// notify queues a notification request in the event log. Delivery happens outside
// the transaction through the webhook dispatcher.
func (e Engine) notify(ctx context.Context, tx *sql.Tx, actor auth.Actor, app domain.Application, kind string, extra events.EventPayload) error {
	payload := events.EventPayload{
		"kind":           kind,
		"application_id": app.ID,
		"user_id":        app.UserID,
		"status":         app.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	return e.events().Append(ctx, tx, events.NotificationRequested, app.CampaignID, "application", app.ID, actor.ID, payload)
}

func (e Engine) logTransition(app domain.Application, actor auth.Actor, slot int, trig lifecycle.Trigger) {
	e.logger().Info("application transitioned",
		"event", "application_transitioned",
		"module", logModule,
		"layer", "engine",
		"application_id", app.ID,
		"campaign_id", app.CampaignID,
		"slot", domain.SlotLabel(slot),
		"trigger", string(trig),
		"status", app.Status,
		"actor_id", actor.ID,
	)
}
