package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	CampaignCreated        = "campaign.created"
	CampaignUpdated        = "campaign.updated"
	ApplicationCreated     = "application.created"
	ApplicationSelected    = "application.selected"
	ApplicationRejected    = "application.rejected"
	ApplicationCancelled   = "application.cancelled"
	ApplicationDeadlineSet = "application.deadline_set"
	SlotTransitioned       = "slot.transitioned"
	VideoUploaded          = "video.uploaded"
	RevisionRequested      = "revision.requested"
	SNSSubmitted           = "sns.submitted"
	NotificationRequested  = "notification.requested"
	APIKeyCreated          = "api_key.created"
	APIKeyDeleted          = "api_key.deleted"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append writes an event inside tx so it commits or rolls back with the state
// change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, campaignID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,campaign_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(campaignID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
