package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"campaignline/internal/domain"
)

const applicationColumns = `id,campaign_id,user_id,status,COALESCE(main_channel,''),COALESCE(custom_deadlines_json,''),revision,created_at,updated_at`

type ApplicationFilters struct {
	CampaignID string
	UserID     string
	Status     string
	Limit      int
}

// InsertApplication stores a new application and its slot rows. A second
// application by the same user for the same campaign yields ErrDuplicate.
func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, app domain.Application) error {
	deadlines, err := marshalDeadlines(app.CustomDeadlines)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO applications(id,campaign_id,user_id,status,main_channel,custom_deadlines_json,revision,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		app.ID, app.CampaignID, app.UserID, app.Status, nullable(app.MainChannel), deadlines, app.Revision, app.CreatedAt, app.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	for _, s := range app.Slots {
		_, err := tx.ExecContext(ctx, `INSERT INTO application_slots(application_id,number,state,video_url,clean_video_url,sns_url,partnership_code,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
			app.ID, s.Number, string(s.State), nullable(s.VideoURL), nullable(s.CleanVideoURL), nullable(s.SNSURL), nullable(s.PartnershipCode), nullable(s.UpdatedAt))
		if err != nil {
			return fmt.Errorf("application slot %d: %w", s.Number, err)
		}
	}
	return nil
}

// UpdateApplication writes app if the stored revision still equals expected, bumping
// the revision by one. A concurrent writer that got there first yields ErrStale.
func (r Repo) UpdateApplication(ctx context.Context, tx *sql.Tx, app domain.Application, expected int) error {
	deadlines, err := marshalDeadlines(app.CustomDeadlines)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE applications SET status=?,main_channel=?,custom_deadlines_json=?,revision=?,updated_at=? WHERE id=? AND revision=?`,
		app.Status, nullable(app.MainChannel), deadlines, expected+1, app.UpdatedAt, app.ID, expected)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM applications WHERE id=?`, app.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrStale
	}
	for _, s := range app.Slots {
		_, err := tx.ExecContext(ctx, `UPDATE application_slots SET state=?,video_url=?,clean_video_url=?,sns_url=?,partnership_code=?,updated_at=? WHERE application_id=? AND number=?`,
			string(s.State), nullable(s.VideoURL), nullable(s.CleanVideoURL), nullable(s.SNSURL), nullable(s.PartnershipCode), nullable(s.UpdatedAt), app.ID, s.Number)
		if err != nil {
			return fmt.Errorf("application slot %d: %w", s.Number, err)
		}
	}
	return nil
}

func (r Repo) GetApplication(ctx context.Context, id string) (domain.Application, error) {
	return r.GetApplicationTx(ctx, nil, id)
}

// GetApplicationTx loads an application with its slots and revision ledger.
func (r Repo) GetApplicationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Application, error) {
	q := r.q(tx)
	app, err := scanApplication(q.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id=?`, id))
	if err != nil {
		return app, err
	}
	if err := hydrateApplication(ctx, q, &app); err != nil {
		return app, err
	}
	return app, nil
}

func (r Repo) GetApplicationByUser(ctx context.Context, campaignID, userID string) (domain.Application, error) {
	app, err := scanApplication(r.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE campaign_id=? AND user_id=?`, campaignID, userID))
	if err != nil {
		return app, err
	}
	if err := hydrateApplication(ctx, r.DB, &app); err != nil {
		return app, err
	}
	return app, nil
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilters) ([]domain.Application, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.CampaignID != "" {
		clauses = append(clauses, "campaign_id=?")
		args = append(args, f.CampaignID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, app)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if err := hydrateApplication(ctx, r.DB, &res[i]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var (
		app       domain.Application
		deadlines string
	)
	err := row.Scan(&app.ID, &app.CampaignID, &app.UserID, &app.Status, &app.MainChannel, &deadlines, &app.Revision, &app.CreatedAt, &app.UpdatedAt)
	if err == sql.ErrNoRows {
		return app, ErrNotFound
	}
	if err != nil {
		return app, err
	}
	if deadlines != "" {
		if err := json.Unmarshal([]byte(deadlines), &app.CustomDeadlines); err != nil {
			return app, fmt.Errorf("decode custom deadlines: %w", err)
		}
	}
	return app, nil
}

func hydrateApplication(ctx context.Context, q queryer, app *domain.Application) error {
	rows, err := q.QueryContext(ctx, `SELECT number,state,COALESCE(video_url,''),COALESCE(clean_video_url,''),COALESCE(sns_url,''),COALESCE(partnership_code,''),COALESCE(updated_at,'') FROM application_slots WHERE application_id=? ORDER BY number`, app.ID)
	if err != nil {
		return err
	}
	var slots []domain.ApplicationSlot
	for rows.Next() {
		var s domain.ApplicationSlot
		var state string
		if err := rows.Scan(&s.Number, &state, &s.VideoURL, &s.CleanVideoURL, &s.SNSURL, &s.PartnershipCode, &s.UpdatedAt); err != nil {
			rows.Close()
			return err
		}
		s.State = domain.SlotState(state)
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	app.Slots = slots
	revs, err := listRevisionRequests(ctx, q, app.ID)
	if err != nil {
		return err
	}
	app.RevisionRequests = revs
	return nil
}

func marshalDeadlines(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
