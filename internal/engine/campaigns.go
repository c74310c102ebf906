package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campaignline/internal/domain"
	"campaignline/internal/engine/auth"
	"campaignline/internal/events"
)

// CampaignCreateOptions are parameters for creating a campaign.
type CampaignCreateOptions struct {
	ID                 string
	Title              string
	Type               domain.CampaignType
	RewardAmount       int64
	RequiresCleanVideo bool
	RequiresAdCode     bool
	TargetPlatforms    []string
	Slots              []domain.CampaignSlot
}

// CampaignUpdateOptions change the mutable fields of a campaign. Type is accepted
// only to reject changes to it.
type CampaignUpdateOptions struct {
	ID                 string
	Title              *string
	Type               *domain.CampaignType
	RewardAmount       *int64
	RequiresCleanVideo *bool
	RequiresAdCode     *bool
	TargetPlatforms    *[]string
	Slots              []domain.CampaignSlot
}

func (e Engine) CreateCampaign(ctx context.Context, actor auth.Actor, opts CampaignCreateOptions) (domain.Campaign, error) {
	if err := auth.RequireAdmin(actor, "create campaign"); err != nil {
		return domain.Campaign{}, err
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Campaign{}, required("title")
	}
	if opts.Type == "" {
		opts.Type = domain.CampaignStandard
	}
	if !opts.Type.Valid() {
		return domain.Campaign{}, invalid("campaign_type", "must be standard or four_week_challenge")
	}
	if opts.RewardAmount < 0 {
		return domain.Campaign{}, invalid("reward_amount", "must not be negative")
	}
	platforms, err := normalizePlatforms(opts.TargetPlatforms)
	if err != nil {
		return domain.Campaign{}, err
	}
	now := e.timestamp()
	c := domain.Campaign{
		ID:                 strings.TrimSpace(opts.ID),
		Title:              strings.TrimSpace(opts.Title),
		Type:               opts.Type,
		RewardAmount:       opts.RewardAmount,
		RequiresCleanVideo: opts.RequiresCleanVideo,
		RequiresAdCode:     opts.RequiresAdCode,
		TargetPlatforms:    platforms,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if c.ID == "" {
		c.ID = newID()
	}
	for _, n := range c.Type.SlotNumbers() {
		c.Slots = append(c.Slots, domain.CampaignSlot{Number: n})
	}
	if c.Slots, err = mergeCampaignSlots(c.Type, c.Slots, opts.Slots); err != nil {
		return domain.Campaign{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCampaign(ctx, tx, c); err != nil {
		return c, fmt.Errorf("insert campaign: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.CampaignCreated, c.ID, "campaign", c.ID, actor.ID, events.EventPayload{
		"campaign_type": string(c.Type),
		"title":         c.Title,
	}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func (e Engine) UpdateCampaign(ctx context.Context, actor auth.Actor, opts CampaignUpdateOptions) (domain.Campaign, error) {
	if err := auth.RequireAdmin(actor, "update campaign"); err != nil {
		return domain.Campaign{}, err
	}
	c, err := e.Repo.GetCampaign(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	if opts.Type != nil && *opts.Type != c.Type {
		return c, invalid("campaign_type", "is immutable once the campaign exists")
	}
	changed := []string{}
	if opts.Title != nil {
		if strings.TrimSpace(*opts.Title) == "" {
			return c, required("title")
		}
		c.Title = strings.TrimSpace(*opts.Title)
		changed = append(changed, "title")
	}
	if opts.RewardAmount != nil {
		if *opts.RewardAmount < 0 {
			return c, invalid("reward_amount", "must not be negative")
		}
		c.RewardAmount = *opts.RewardAmount
		changed = append(changed, "reward_amount")
	}
	if opts.RequiresCleanVideo != nil {
		c.RequiresCleanVideo = *opts.RequiresCleanVideo
		changed = append(changed, "requires_clean_video")
	}
	if opts.RequiresAdCode != nil {
		c.RequiresAdCode = *opts.RequiresAdCode
		changed = append(changed, "requires_ad_code")
	}
	if opts.TargetPlatforms != nil {
		platforms, err := normalizePlatforms(*opts.TargetPlatforms)
		if err != nil {
			return c, err
		}
		c.TargetPlatforms = platforms
		changed = append(changed, "target_platforms")
	}
	if len(opts.Slots) > 0 {
		if c.Slots, err = mergeCampaignSlots(c.Type, c.Slots, opts.Slots); err != nil {
			return c, err
		}
		changed = append(changed, "slots")
	}
	if len(changed) == 0 {
		return c, nil
	}
	c.UpdatedAt = e.timestamp()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateCampaign(ctx, tx, c); err != nil {
		return c, fmt.Errorf("update campaign: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.CampaignUpdated, c.ID, "campaign", c.ID, actor.ID, events.EventPayload{"fields": changed}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func (e Engine) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	return e.Repo.GetCampaign(ctx, id)
}

func (e Engine) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return e.Repo.ListCampaigns(ctx)
}

func normalizePlatforms(in []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, p := range in {
		p = normalizePlatform(p)
		if p == "" || seen[p] {
			continue
		}
		if !isKnownPlatform(p) {
			return nil, invalid("target_platforms", "contains unknown platform %q", p)
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// mergeCampaignSlots overlays updates onto current by slot number. Empty fields in an
// update leave the stored value alone.
func mergeCampaignSlots(t domain.CampaignType, current, updates []domain.CampaignSlot) ([]domain.CampaignSlot, error) {
	out := append([]domain.CampaignSlot(nil), current...)
	for _, u := range updates {
		idx := -1
		for i := range out {
			if out[i].Number == u.Number {
				idx = i
			}
		}
		if idx < 0 {
			return nil, invalid("slots", "%s does not exist on a %s campaign", domain.SlotLabel(u.Number), t)
		}
		for field, v := range map[string]string{"video_deadline": u.VideoDeadline, "sns_deadline": u.SNSDeadline} {
			if v != "" && !validDate(v) {
				return nil, invalid(field, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
			}
		}
		for field, v := range map[string]string{"guide_drive_url": u.GuideDriveURL, "guide_slides_url": u.GuideSlidesURL} {
			if v != "" && !isHTTPURL(v) {
				return nil, invalid(field, "must be an http(s) URL")
			}
		}
		s := &out[idx]
		if u.VideoDeadline != "" {
			s.VideoDeadline = u.VideoDeadline
		}
		if u.SNSDeadline != "" {
			s.SNSDeadline = u.SNSDeadline
		}
		if u.GuideDriveURL != "" {
			s.GuideDriveURL = u.GuideDriveURL
		}
		if u.GuideSlidesURL != "" {
			s.GuideSlidesURL = u.GuideSlidesURL
		}
	}
	return out, nil
}

func validDate(v string) bool {
	if _, err := time.Parse("2006-01-02", v); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, v)
	return err == nil
}
