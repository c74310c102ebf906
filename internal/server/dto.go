package server

import (
	"encoding/json"

	"campaignline/internal/domain"
)

// Request payloads

type CampaignSlotRequest struct {
	Number         int    `json:"number" minimum:"0" maximum:"4"`
	VideoDeadline  string `json:"video_deadline,omitempty"`
	SNSDeadline    string `json:"sns_deadline,omitempty"`
	GuideDriveURL  string `json:"guide_drive_url,omitempty"`
	GuideSlidesURL string `json:"guide_slides_url,omitempty"`
}

type CreateCampaignRequest struct {
	ID                 string                `json:"id,omitempty"`
	Title              string                `json:"title"`
	Type               string                `json:"campaign_type,omitempty" enum:"standard,four_week_challenge"`
	RewardAmount       int64                 `json:"reward_amount,omitempty"`
	RequiresCleanVideo bool                  `json:"requires_clean_video,omitempty"`
	RequiresAdCode     bool                  `json:"requires_ad_code,omitempty"`
	TargetPlatforms    []string              `json:"target_platforms,omitempty"`
	Slots              []CampaignSlotRequest `json:"slots,omitempty"`
}

type UpdateCampaignRequest struct {
	Title              *string               `json:"title,omitempty"`
	Type               *string               `json:"campaign_type,omitempty" enum:"standard,four_week_challenge"`
	RewardAmount       *int64                `json:"reward_amount,omitempty"`
	RequiresCleanVideo *bool                 `json:"requires_clean_video,omitempty"`
	RequiresAdCode     *bool                 `json:"requires_ad_code,omitempty"`
	TargetPlatforms    *[]string             `json:"target_platforms,omitempty"`
	Slots              []CampaignSlotRequest `json:"slots,omitempty"`
}

type ApplyRequest struct {
	MainChannel string `json:"main_channel,omitempty" example:"instagram"`
}

type ApproveApplicationRequest struct {
	// Slots assigns weeks of a four-week challenge; empty assigns all.
	Slots []int `json:"slots,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type DeadlineRequest struct {
	Value string `json:"value" example:"2026-04-01"`
}

type RevisionCommentRequest struct {
	Comment           string `json:"comment"`
	CommentTranslated string `json:"comment_translated,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty" enum:"creator,admin"`
	Name    string `json:"name,omitempty"`
}

// Response payloads

type WhoAmIResponse struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Source  string `json:"source"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CreateAPIKeyResponse struct {
	APIKeyResponse
	// Key is only returned once.
	Key string `json:"key"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	CampaignID string         `json:"campaign_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type applicationList struct {
	Items []domain.Application `json:"items"`
}

// Conversion helpers

func campaignSlots(in []CampaignSlotRequest) []domain.CampaignSlot {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.CampaignSlot, 0, len(in))
	for _, s := range in {
		out = append(out, domain.CampaignSlot(s))
	}
	return out
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		ActorID:   k.ActorID,
		Role:      k.Role,
		Name:      k.Name,
		CreatedAt: k.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		CampaignID: e.CampaignID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
