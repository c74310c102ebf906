package repo

import (
	"context"
	"database/sql"

	"campaignline/internal/domain"
)

// MaxVersion returns the highest stored version for a slot track, or 0 if none.
func (r Repo) MaxVersion(ctx context.Context, applicationID string, slot int, track string) (int, error) {
	var v int
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version),0) FROM video_submissions WHERE application_id=? AND slot=? AND track=?`,
		applicationID, slot, track).Scan(&v)
	return v, err
}

// InsertSubmission records an uploaded version. A row with the same
// (application, slot, track, version) yields ErrDuplicate.
func (r Repo) InsertSubmission(ctx context.Context, tx *sql.Tx, s domain.VideoSubmission) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO video_submissions(id,application_id,slot,week_number,track,version,file_name,file_size,content_type,url,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ApplicationID, s.Slot, nullableIntPtr(s.WeekNumber), s.Track, s.Version, s.FileName, s.FileSize, nullable(s.ContentType), s.URL, s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

type SubmissionFilters struct {
	ApplicationID string
	Slot          *int
	Track         string
}

// ListSubmissions returns submissions ordered by slot, track and version.
func (r Repo) ListSubmissions(ctx context.Context, f SubmissionFilters) ([]domain.VideoSubmission, error) {
	query := `SELECT id,application_id,slot,week_number,track,version,file_name,file_size,COALESCE(content_type,''),url,created_at FROM video_submissions WHERE application_id=?`
	args := []any{f.ApplicationID}
	if f.Slot != nil {
		query += " AND slot=?"
		args = append(args, *f.Slot)
	}
	if f.Track != "" {
		query += " AND track=?"
		args = append(args, f.Track)
	}
	query += " ORDER BY slot, track, version"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.VideoSubmission
	for rows.Next() {
		var s domain.VideoSubmission
		var week sql.NullInt64
		if err := rows.Scan(&s.ID, &s.ApplicationID, &s.Slot, &week, &s.Track, &s.Version, &s.FileName, &s.FileSize, &s.ContentType, &s.URL, &s.CreatedAt); err != nil {
			return nil, err
		}
		if week.Valid {
			w := int(week.Int64)
			s.WeekNumber = &w
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
