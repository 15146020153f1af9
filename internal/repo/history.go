package repo

import (
	"context"
	"database/sql"

	"toolroom/internal/domain"
)

// AppendHistory writes an item history row inside the transition transaction.
// History is part of the atomic unit: a failure here aborts the transition.
func (r Repo) AppendHistory(ctx context.Context, tx *sql.Tx, h domain.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO item_history(id,item_id,activity,request_id,description,performed_by,date) VALUES (?,?,?,?,?,?,?)`,
		h.ID, h.ItemID, h.Activity, nullableStringPtr(h.RequestID), nullableStringPtr(h.Description), h.PerformedBy, h.Date)
	return err
}

type HistoryFilters struct {
	ItemID   string
	Activity string
	Limit    int
}

func (r Repo) ListHistory(ctx context.Context, f HistoryFilters) ([]domain.HistoryEntry, error) {
	query := `SELECT id,item_id,activity,request_id,description,performed_by,date FROM item_history WHERE 1=1`
	var args []any
	if f.ItemID != "" {
		query += ` AND item_id=?`
		args = append(args, f.ItemID)
	}
	if f.Activity != "" {
		query += ` AND activity=?`
		args = append(args, f.Activity)
	}
	query += ` ORDER BY date DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var requestID, description sql.NullString
		if err := rows.Scan(&h.ID, &h.ItemID, &h.Activity, &requestID, &description, &h.PerformedBy, &h.Date); err != nil {
			return nil, err
		}
		if requestID.Valid {
			h.RequestID = &requestID.String
		}
		if description.Valid {
			h.Description = &description.String
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

// InsertNotification is best-effort plumbing written after commit; the caller
// must not fail the workflow transition when it errors.
func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,user_id,message,created_at) VALUES (?,?,?,?)`,
		n.ID, n.UserID, n.Message, n.CreatedAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	query := `SELECT id,user_id,message,created_at FROM notifications`
	var args []any
	if userID != "" {
		query += ` WHERE user_id=?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) InsertDocument(ctx context.Context, d domain.Document) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents(id,kind,file_url,uploaded_by,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.Kind, d.FileURL, d.UploadedBy, d.CreatedAt)
	return err
}

func (r Repo) ListDocuments(ctx context.Context, kind string, limit int) ([]domain.Document, error) {
	query := `SELECT id,kind,file_url,uploaded_by,created_at FROM documents`
	var args []any
	if kind != "" {
		query += ` WHERE kind=?`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.Kind, &d.FileURL, &d.UploadedBy, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// DocumentExistsByURL reports whether a stored document references the URL.
// Only the reference is checked, never the file bytes.
func (r Repo) DocumentExistsByURL(ctx context.Context, tx *sql.Tx, url string) (bool, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT 1 FROM documents WHERE file_url=? LIMIT 1`, url)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}
