package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"campaignline/internal/domain"
)

const campaignColumns = `id,title,campaign_type,reward_amount,requires_clean_video,requires_ad_code,COALESCE(target_platforms_json,''),created_at,updated_at`

func (r Repo) InsertCampaign(ctx context.Context, tx *sql.Tx, c domain.Campaign) error {
	platforms, err := marshalPlatforms(c.TargetPlatforms)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO campaigns(id,title,campaign_type,reward_amount,requires_clean_video,requires_ad_code,target_platforms_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Title, string(c.Type), c.RewardAmount, boolInt(c.RequiresCleanVideo), boolInt(c.RequiresAdCode), platforms, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return err
	}
	return r.upsertCampaignSlots(ctx, tx, c.ID, c.Slots)
}

// UpdateCampaign rewrites the mutable campaign fields and its slots. The campaign
// type is guarded by a trigger and never changes.
func (r Repo) UpdateCampaign(ctx context.Context, tx *sql.Tx, c domain.Campaign) error {
	platforms, err := marshalPlatforms(c.TargetPlatforms)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE campaigns SET title=?,reward_amount=?,requires_clean_video=?,requires_ad_code=?,target_platforms_json=?,updated_at=? WHERE id=?`,
		c.Title, c.RewardAmount, boolInt(c.RequiresCleanVideo), boolInt(c.RequiresAdCode), platforms, c.UpdatedAt, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return r.upsertCampaignSlots(ctx, tx, c.ID, c.Slots)
}

func (r Repo) upsertCampaignSlots(ctx context.Context, tx *sql.Tx, campaignID string, slots []domain.CampaignSlot) error {
	for _, s := range slots {
		_, err := tx.ExecContext(ctx, `INSERT INTO campaign_slots(campaign_id,number,video_deadline,sns_deadline,guide_drive_url,guide_slides_url) VALUES (?,?,?,?,?,?)
ON CONFLICT(campaign_id,number) DO UPDATE SET video_deadline=excluded.video_deadline, sns_deadline=excluded.sns_deadline, guide_drive_url=excluded.guide_drive_url, guide_slides_url=excluded.guide_slides_url`,
			campaignID, s.Number, nullable(s.VideoDeadline), nullable(s.SNSDeadline), nullable(s.GuideDriveURL), nullable(s.GuideSlidesURL))
		if err != nil {
			return fmt.Errorf("campaign slot %d: %w", s.Number, err)
		}
	}
	return nil
}

func (r Repo) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	return r.GetCampaignTx(ctx, nil, id)
}

func (r Repo) GetCampaignTx(ctx context.Context, tx *sql.Tx, id string) (domain.Campaign, error) {
	q := r.q(tx)
	c, err := scanCampaign(q.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=?`, id))
	if err != nil {
		return c, err
	}
	slots, err := listCampaignSlots(ctx, q, id)
	if err != nil {
		return c, err
	}
	c.Slots = slots
	return c, nil
}

func (r Repo) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	var res []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		slots, err := listCampaignSlots(ctx, r.DB, res[i].ID)
		if err != nil {
			return nil, err
		}
		res[i].Slots = slots
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (domain.Campaign, error) {
	var (
		c         domain.Campaign
		typ       string
		clean, ad int
		platforms string
	)
	err := row.Scan(&c.ID, &c.Title, &typ, &c.RewardAmount, &clean, &ad, &platforms, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Type = domain.CampaignType(typ)
	c.RequiresCleanVideo = clean != 0
	c.RequiresAdCode = ad != 0
	if platforms != "" {
		if err := json.Unmarshal([]byte(platforms), &c.TargetPlatforms); err != nil {
			return c, fmt.Errorf("decode target platforms: %w", err)
		}
	}
	return c, nil
}

func listCampaignSlots(ctx context.Context, q queryer, campaignID string) ([]domain.CampaignSlot, error) {
	rows, err := q.QueryContext(ctx, `SELECT number,COALESCE(video_deadline,''),COALESCE(sns_deadline,''),COALESCE(guide_drive_url,''),COALESCE(guide_slides_url,'') FROM campaign_slots WHERE campaign_id=? ORDER BY number`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CampaignSlot
	for rows.Next() {
		var s domain.CampaignSlot
		if err := rows.Scan(&s.Number, &s.VideoDeadline, &s.SNSDeadline, &s.GuideDriveURL, &s.GuideSlidesURL); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func marshalPlatforms(platforms []string) (any, error) {
	if len(platforms) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(platforms)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
