package engine

import (
	"context"
	"database/sql"
	"strings"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
	"campaignline/internal/lifecycle"
)

// SNSSubmission is what a creator reports after posting.
type SNSSubmission struct {
	URL             string
	PartnershipCode string
	// CleanVideo is optional; nil when no file accompanies the post.
	CleanVideo *Upload
}

// SubmitSNS records the published post for a slot. Every required artifact is
// checked before anything is written.
func (e Engine) SubmitSNS(ctx context.Context, actor auth.Actor, id string, slot int, in SNSSubmission) (domain.Application, error) {
	c, app, err := e.loadForSlot(ctx, id)
	if err != nil {
		return app, err
	}
	if err := auth.RequireCreator(actor, app.UserID, "submit sns"); err != nil {
		return app, err
	}
	if err := lifecycle.Project(c, app).Allow(slot, lifecycle.TriggerSubmitSNS); err != nil {
		return app, err
	}
	current, _ := app.Slot(slot)

	snsURL := strings.TrimSpace(in.URL)
	if snsURL == "" {
		return app, required("sns_url")
	}
	platform, ok := postPlatform(snsURL)
	if !ok {
		return app, invalid("sns_url", "must link to a post on %s", strings.Join(allowedPlatforms(c), ", "))
	}
	if len(c.TargetPlatforms) > 0 && !contains(c.TargetPlatforms, platform) {
		return app, invalid("sns_url", "must link to a post on %s", strings.Join(c.TargetPlatforms, ", "))
	}
	code := strings.TrimSpace(in.PartnershipCode)
	if c.RequiresAdCode && code == "" {
		return app, required("partnership_code")
	}
	var cleanExt string
	if in.CleanVideo != nil {
		if cleanExt, err = e.checkUpload("clean_video", *in.CleanVideo); err != nil {
			return app, err
		}
	} else if c.RequiresCleanVideo && current.CleanVideoURL == "" {
		return app, required("clean_video")
	}
	next, err := lifecycle.ApplySlotTrigger(app, slot, lifecycle.TriggerSubmitSNS)
	if err != nil {
		return app, err
	}

	var saved domain.Application
	apply := func(tx *sql.Tx, clean *domain.VideoSubmission) error {
		n := next
		n.Slots = append([]domain.ApplicationSlot(nil), next.Slots...)
		s, _ := n.Slot(slot)
		s.SNSURL = snsURL
		s.PartnershipCode = code
		s.UpdatedAt = e.timestamp()
		if clean != nil {
			s.CleanVideoURL = clean.URL
		}
		var err error
		if saved, err = e.saveApplication(ctx, tx, app, n); err != nil {
			return err
		}
		if clean != nil {
			if err := e.events().Append(ctx, tx, events.VideoUploaded, app.CampaignID, "application", app.ID, actor.ID, submissionPayload(*clean)); err != nil {
				return err
			}
		}
		if err := e.events().Append(ctx, tx, events.SNSSubmitted, app.CampaignID, "application", app.ID, actor.ID, events.EventPayload{
			"slot":                 slot,
			"sns_url":              snsURL,
			"platform":             platform,
			"has_partnership_code": code != "",
		}); err != nil {
			return err
		}
		return e.transitionEvents(ctx, tx, actor, app, saved, slot, lifecycle.TriggerSubmitSNS)
	}

	if in.CleanVideo == nil {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return app, err
		}
		defer tx.Rollback()
		if err := apply(tx, nil); err != nil {
			return app, err
		}
		if err := tx.Commit(); err != nil {
			return app, err
		}
	} else {
		if e.Media == nil {
			return app, errNoMedia
		}
		blob, err := e.stage(ctx, c, app, slot, domain.TrackCleanVideo, *in.CleanVideo, cleanExt)
		if err != nil {
			return app, err
		}
		if _, err := e.recordVersion(ctx, c, app, slot, blob, func(tx *sql.Tx, sub domain.VideoSubmission) error {
			return apply(tx, &sub)
		}); err != nil {
			return app, err
		}
	}
	e.logTransition(saved, actor, slot, lifecycle.TriggerSubmitSNS)
	return saved, nil
}

func allowedPlatforms(c domain.Campaign) []string {
	if len(c.TargetPlatforms) > 0 {
		return c.TargetPlatforms
	}
	return knownPlatforms
}
