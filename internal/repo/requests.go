package repo

import (
	"context"
	"database/sql"
	"strings"

	"toolroom/internal/domain"
)

const requestColumns = `id,user_id,item_id,type,reason,approved_by,request_date,status,created_at,updated_at`

func scanRequestRow(scan func(dest ...any) error) (domain.Request, error) {
	var rq domain.Request
	var reason, approvedBy sql.NullString
	var typ, status string
	err := scan(&rq.ID, &rq.UserID, &rq.ItemID, &typ, &reason, &approvedBy, &rq.RequestDate, &status, &rq.CreatedAt, &rq.UpdatedAt)
	if err == sql.ErrNoRows {
		return rq, ErrNotFound
	}
	if err != nil {
		return rq, err
	}
	if reason.Valid {
		rq.Reason = &reason.String
	}
	if approvedBy.Valid {
		rq.ApprovedBy = &approvedBy.String
	}
	rq.Type = domain.RequestType(typ)
	rq.Status = domain.RequestStatus(status)
	return rq, nil
}

func (r Repo) InsertRequest(ctx context.Context, tx *sql.Tx, rq domain.Request) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO requests(`+requestColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rq.ID, rq.UserID, rq.ItemID, string(rq.Type), nullableStringPtr(rq.Reason), nullableStringPtr(rq.ApprovedBy),
		rq.RequestDate, string(rq.Status), rq.CreatedAt, rq.UpdatedAt)
	return err
}

func (r Repo) GetRequest(ctx context.Context, id string) (domain.Request, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id)
	return scanRequestRow(row.Scan)
}

func (r Repo) GetRequestTx(ctx context.Context, tx *sql.Tx, id string) (domain.Request, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id)
	return scanRequestRow(row.Scan)
}

func (r Repo) UpdateRequest(ctx context.Context, tx *sql.Tx, rq domain.Request) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE requests SET status=?, approved_by=?, updated_at=? WHERE id=?`,
		string(rq.Status), nullableStringPtr(rq.ApprovedBy), rq.UpdatedAt, rq.ID)
	return err
}

// CountOpenRequests counts requests on an item that are still pending, or
// approved without their rental/calibration having reached a terminal state.
func (r Repo) CountOpenRequests(ctx context.Context, tx *sql.Tx, itemID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT count(*) FROM requests rq
WHERE rq.item_id=?
  AND (rq.status='pending'
    OR (rq.status='approved'
      AND NOT EXISTS (SELECT 1 FROM rentals rn WHERE rn.request_id=rq.id AND rn.status='returned')
      AND NOT EXISTS (SELECT 1 FROM calibrations c WHERE c.request_id=rq.id AND c.status IN ('completed','failed'))))`,
		itemID).Scan(&n)
	return n, err
}

type RequestFilters struct {
	ItemID string
	UserID string
	Status string
	Type   string
	Limit  int
}

func (r Repo) ListRequests(ctx context.Context, f RequestFilters) ([]domain.Request, error) {
	var clauses []string
	var args []any
	if f.ItemID != "" {
		clauses = append(clauses, "item_id=?")
		args = append(args, f.ItemID)
	}
	if f.UserID != "" {
		clauses = append(clauses, "user_id=?")
		args = append(args, f.UserID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + requestColumns + ` FROM requests ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Request
	for rows.Next() {
		rq, err := scanRequestRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rq)
	}
	return res, rows.Err()
}
