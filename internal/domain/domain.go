package domain

import "fmt"

type CampaignType string

const (
	CampaignStandard          CampaignType = "standard"
	CampaignFourWeekChallenge CampaignType = "four_week_challenge"
)

// Valid reports whether t is a known campaign type.
func (t CampaignType) Valid() bool {
	return t == CampaignStandard || t == CampaignFourWeekChallenge
}

// SlotNumbers lists the slot numbers a campaign of this type carries.
func (t CampaignType) SlotNumbers() []int {
	if t == CampaignFourWeekChallenge {
		return []int{1, 2, 3, 4}
	}
	return []int{0}
}

// Application-level statuses.
const (
	StatusPending           = "pending"
	StatusSelected          = "selected"
	StatusFilming           = "filming"
	StatusVideoSubmitted    = "video_submitted"
	StatusRevisionRequested = "revision_requested"
	StatusApproved          = "approved"
	StatusSNSUploaded       = "sns_uploaded"
	StatusCompleted         = "completed"
	StatusRejected          = "rejected"
	StatusCancelled         = "cancelled"
)

type SlotState string

const (
	SlotNotAssigned       SlotState = "not_assigned"
	SlotSelected          SlotState = "selected"
	SlotFilming           SlotState = "filming"
	SlotVideoSubmitted    SlotState = "video_submitted"
	SlotRevisionRequested SlotState = "revision_requested"
	SlotApproved          SlotState = "approved"
	SlotSNSUploaded       SlotState = "sns_uploaded"
	SlotCompleted         SlotState = "completed"
)

// Submission tracks.
const (
	TrackVideo      = "video"
	TrackCleanVideo = "clean_video"
)

type Campaign struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Type               CampaignType   `json:"campaign_type" enum:"standard,four_week_challenge"`
	RewardAmount       int64          `json:"reward_amount"`
	RequiresCleanVideo bool           `json:"requires_clean_video"`
	RequiresAdCode     bool           `json:"requires_ad_code"`
	TargetPlatforms    []string       `json:"target_platforms,omitempty"`
	Slots              []CampaignSlot `json:"slots"`
	CreatedAt          string         `json:"created_at" format:"date-time"`
	UpdatedAt          string         `json:"updated_at" format:"date-time"`
}

// Slot returns the campaign slot with the given number.
func (c Campaign) Slot(n int) (CampaignSlot, bool) {
	for _, s := range c.Slots {
		if s.Number == n {
			return s, true
		}
	}
	return CampaignSlot{}, false
}

type CampaignSlot struct {
	Number         int    `json:"number"`
	VideoDeadline  string `json:"video_deadline,omitempty"`
	SNSDeadline    string `json:"sns_deadline,omitempty"`
	GuideDriveURL  string `json:"guide_drive_url,omitempty"`
	GuideSlidesURL string `json:"guide_slides_url,omitempty"`
}

// HasGuide reports whether any guide reference is attached to the slot.
func (s CampaignSlot) HasGuide() bool {
	return s.GuideDriveURL != "" || s.GuideSlidesURL != ""
}

type Application struct {
	ID               string            `json:"id"`
	CampaignID       string            `json:"campaign_id"`
	UserID           string            `json:"user_id"`
	Status           string            `json:"status" enum:"pending,selected,filming,video_submitted,revision_requested,approved,sns_uploaded,completed,rejected,cancelled"`
	MainChannel      string            `json:"main_channel,omitempty"`
	CustomDeadlines  map[string]string `json:"custom_deadlines,omitempty"`
	Slots            []ApplicationSlot `json:"slots"`
	RevisionRequests []RevisionRequest `json:"revision_requests,omitempty"`
	Revision         int               `json:"revision"`
	CreatedAt        string            `json:"created_at" format:"date-time"`
	UpdatedAt        string            `json:"updated_at" format:"date-time"`
}

// Slot returns a pointer to the application slot with the given number.
func (a *Application) Slot(n int) (*ApplicationSlot, bool) {
	for i := range a.Slots {
		if a.Slots[i].Number == n {
			return &a.Slots[i], true
		}
	}
	return nil, false
}

type ApplicationSlot struct {
	Number          int       `json:"number"`
	State           SlotState `json:"state" enum:"not_assigned,selected,filming,video_submitted,revision_requested,approved,sns_uploaded,completed"`
	VideoURL        string    `json:"video_url,omitempty"`
	CleanVideoURL   string    `json:"clean_video_url,omitempty"`
	SNSURL          string    `json:"sns_url,omitempty"`
	PartnershipCode string    `json:"partnership_code,omitempty"`
	UpdatedAt       string    `json:"updated_at,omitempty" format:"date-time"`
}

// WeekNumber returns nil for the single standard slot.
func WeekNumber(slot int) *int {
	if slot == 0 {
		return nil
	}
	return &slot
}

// SlotLabel names a slot for messages and storage paths.
func SlotLabel(slot int) string {
	if slot == 0 {
		return "main"
	}
	return fmt.Sprintf("week%d", slot)
}

type VideoSubmission struct {
	ID            string `json:"id"`
	ApplicationID string `json:"application_id"`
	Slot          int    `json:"slot"`
	WeekNumber    *int   `json:"week_number,omitempty"`
	Track         string `json:"track" enum:"video,clean_video"`
	Version       int    `json:"version"`
	FileName      string `json:"file_name"`
	FileSize      int64  `json:"file_size"`
	ContentType   string `json:"content_type,omitempty"`
	URL           string `json:"url"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type RevisionRequest struct {
	ID                string `json:"id"`
	ApplicationID     string `json:"application_id"`
	Slot              int    `json:"slot"`
	Comment           string `json:"comment"`
	CommentTranslated string `json:"comment_translated,omitempty"`
	AuthorID          string `json:"author_id"`
	CreatedAt         string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	CampaignID string `json:"campaign_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role" enum:"creator,admin"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
