package repo

import (
	"context"
	"database/sql"

	"campaignline/internal/domain"
)

// InsertRevisionRequest appends to the revision ledger. Stored rows are never
// updated or deleted; triggers abort any attempt.
func (r Repo) InsertRevisionRequest(ctx context.Context, tx *sql.Tx, rr domain.RevisionRequest) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO revision_requests(id,application_id,slot,comment,comment_translated,author_id,created_at) VALUES (?,?,?,?,?,?,?)`,
		rr.ID, rr.ApplicationID, rr.Slot, rr.Comment, nullable(rr.CommentTranslated), rr.AuthorID, rr.CreatedAt)
	return err
}

// ListRevisionRequests returns the ledger for an application, oldest first.
func (r Repo) ListRevisionRequests(ctx context.Context, applicationID string) ([]domain.RevisionRequest, error) {
	return listRevisionRequests(ctx, r.DB, applicationID)
}

func listRevisionRequests(ctx context.Context, q queryer, applicationID string) ([]domain.RevisionRequest, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,application_id,slot,comment,COALESCE(comment_translated,''),author_id,created_at FROM revision_requests WHERE application_id=? ORDER BY created_at ASC, rowid ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RevisionRequest
	for rows.Next() {
		var rr domain.RevisionRequest
		if err := rows.Scan(&rr.ID, &rr.ApplicationID, &rr.Slot, &rr.Comment, &rr.CommentTranslated, &rr.AuthorID, &rr.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rr)
	}
	return res, rows.Err()
}
