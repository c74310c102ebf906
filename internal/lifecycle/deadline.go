package lifecycle

import (
	"fmt"

	"campaignline/internal/domain"
)

type DeadlineKind string

const (
	DeadlineVideo DeadlineKind = "video"
	DeadlineSNS   DeadlineKind = "sns"
)

// Deadline sources.
const (
	SourceCustom   = "custom"
	SourceCampaign = "campaign"
	SourceNone     = "none"
)

type Deadline struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Source string `json:"source" enum:"custom,campaign,none"`
}

// DeadlineKey returns the storage key for a slot deadline, e.g. video_deadline or
// week2_sns_deadline.
func DeadlineKey(slot int, kind DeadlineKind) string {
	if slot == 0 {
		if kind == DeadlineSNS {
			return "sns_deadline"
		}
		return "video_deadline"
	}
	if kind == DeadlineSNS {
		return fmt.Sprintf("week%d_sns_deadline", slot)
	}
	return fmt.Sprintf("week%d_deadline", slot)
}

// DeadlineKeys lists every deadline key meaningful for a campaign type.
func DeadlineKeys(t domain.CampaignType) []string {
	var keys []string
	for _, n := range t.SlotNumbers() {
		keys = append(keys, DeadlineKey(n, DeadlineVideo), DeadlineKey(n, DeadlineSNS))
	}
	return keys
}

// ValidDeadlineKey reports whether key belongs to the campaign type's field family.
func ValidDeadlineKey(t domain.CampaignType, key string) bool {
	for _, k := range DeadlineKeys(t) {
		if k == key {
			return true
		}
	}
	return false
}

// ResolveDeadline prefers the applicant's override over the campaign default.
func ResolveDeadline(c domain.Campaign, app domain.Application, slot int, kind DeadlineKind) Deadline {
	key := DeadlineKey(slot, kind)
	if v := app.CustomDeadlines[key]; v != "" {
		return Deadline{Key: key, Value: v, Source: SourceCustom}
	}
	if cs, ok := c.Slot(slot); ok {
		v := cs.VideoDeadline
		if kind == DeadlineSNS {
			v = cs.SNSDeadline
		}
		if v != "" {
			return Deadline{Key: key, Value: v, Source: SourceCampaign}
		}
	}
	return Deadline{Key: key, Source: SourceNone}
}
