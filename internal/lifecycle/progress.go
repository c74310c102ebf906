package lifecycle

import (
	"fmt"

	"campaignline/internal/domain"
)

type SlotProgress struct {
	Number              int              `json:"number"`
	WeekNumber          *int             `json:"week_number,omitempty"`
	State               domain.SlotState `json:"state"`
	Assigned            bool             `json:"assigned"`
	HasGuide            bool             `json:"has_guide"`
	GuideDriveURL       string           `json:"guide_drive_url,omitempty"`
	GuideSlidesURL      string           `json:"guide_slides_url,omitempty"`
	VideoSubmitted      bool             `json:"video_submitted"`
	CleanVideoSubmitted bool             `json:"clean_video_submitted"`
	SNSSubmitted        bool             `json:"sns_submitted"`
	HasPartnershipCode  bool             `json:"has_partnership_code"`
	VideoDeadline       Deadline         `json:"video_deadline"`
	SNSDeadline         Deadline         `json:"sns_deadline"`
	CanStartFilming     bool             `json:"can_start_filming"`
	CanUpload           bool             `json:"can_upload"`
	CanSubmitSNS        bool             `json:"can_submit_sns"`
}

type Progress struct {
	ApplicationID string              `json:"application_id"`
	CampaignType  domain.CampaignType `json:"campaign_type"`
	Status        string              `json:"status"`
	Step          int                 `json:"step" minimum:"0" maximum:"6"`
	RevisionCount int                 `json:"revision_count"`
	Slots         []SlotProgress      `json:"slots"`
}

// Slot returns the projection for slot n.
func (p Progress) Slot(n int) (SlotProgress, bool) {
	for _, s := range p.Slots {
		if s.Number == n {
			return s, true
		}
	}
	return SlotProgress{}, false
}

// Allow reports whether a creator trigger is currently legal on slot n.
// The error names the missing precondition.
func (p Progress) Allow(n int, t Trigger) error {
	s, ok := p.Slot(n)
	if !ok {
		return &TransitionError{Trigger: t, From: p.Status, Slot: n, Precondition: fmt.Sprintf("campaign has no %s", domain.SlotLabel(n))}
	}
	var allowed bool
	switch t {
	case TriggerStartFilming:
		allowed = s.CanStartFilming
	case TriggerUploadVideo:
		allowed = s.CanUpload
	case TriggerSubmitSNS:
		allowed = s.CanSubmitSNS
	default:
		return fmt.Errorf("%s is not a creator action", t)
	}
	if allowed {
		return nil
	}
	if !Active(p.Status) {
		return &TransitionError{Trigger: t, From: p.Status, Slot: n, Precondition: inactiveReason(p.Status)}
	}
	_, err := NextSlotState(n, s.State, t)
	return err
}

// Step maps a status onto the 0..6 display scale. Revision requests display as filming.
func Step(status string) int {
	switch status {
	case domain.StatusSelected:
		return 1
	case domain.StatusFilming, domain.StatusRevisionRequested:
		return 2
	case domain.StatusVideoSubmitted:
		return 3
	case domain.StatusApproved:
		return 4
	case domain.StatusSNSUploaded:
		return 5
	case domain.StatusCompleted:
		return 6
	default:
		return 0
	}
}

// Project derives the read-only progress view of an application. It has no side
// effects and backs both display and server-side action validation.
func Project(c domain.Campaign, app domain.Application) Progress {
	p := Progress{
		ApplicationID: app.ID,
		CampaignType:  c.Type,
		Status:        app.Status,
		Step:          Step(app.Status),
		RevisionCount: len(app.RevisionRequests),
		Slots:         make([]SlotProgress, 0, len(app.Slots)),
	}
	active := Active(app.Status)
	for _, s := range app.Slots {
		cs, _ := c.Slot(s.Number)
		sp := SlotProgress{
			Number:              s.Number,
			WeekNumber:          domain.WeekNumber(s.Number),
			State:               s.State,
			Assigned:            s.State != domain.SlotNotAssigned,
			HasGuide:            cs.HasGuide(),
			VideoSubmitted:      s.VideoURL != "",
			CleanVideoSubmitted: s.CleanVideoURL != "",
			SNSSubmitted:        s.SNSURL != "",
			HasPartnershipCode:  s.PartnershipCode != "",
			VideoDeadline:       ResolveDeadline(c, app, s.Number, DeadlineVideo),
			SNSDeadline:         ResolveDeadline(c, app, s.Number, DeadlineSNS),
		}
		if app.Status != domain.StatusPending && app.Status != domain.StatusRejected {
			sp.GuideDriveURL = cs.GuideDriveURL
			sp.GuideSlidesURL = cs.GuideSlidesURL
		}
		if active {
			sp.CanStartFilming = CanApplySlot(s.State, TriggerStartFilming)
			sp.CanUpload = CanApplySlot(s.State, TriggerUploadVideo)
			sp.CanSubmitSNS = CanApplySlot(s.State, TriggerSubmitSNS)
		}
		p.Slots = append(p.Slots, sp)
	}
	return p
}
