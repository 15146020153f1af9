package repo

import (
	"context"
	"database/sql"
	"strings"

	"toolroom/internal/domain"
)

const rentalColumns = `id,request_id,start_date,end_date,actual_return_date,fine_cents,status,created_at,updated_at`

func scanRentalRow(scan func(dest ...any) error) (domain.Rental, error) {
	var rn domain.Rental
	var returned sql.NullString
	var fine sql.NullInt64
	var status string
	err := scan(&rn.ID, &rn.RequestID, &rn.StartDate, &rn.EndDate, &returned, &fine, &status, &rn.CreatedAt, &rn.UpdatedAt)
	if err == sql.ErrNoRows {
		return rn, ErrNotFound
	}
	if err != nil {
		return rn, err
	}
	if returned.Valid {
		rn.ActualReturnDate = &returned.String
	}
	if fine.Valid {
		rn.FineCents = &fine.Int64
	}
	rn.Status = domain.RentalStatus(status)
	return rn, nil
}

func (r Repo) InsertRental(ctx context.Context, tx *sql.Tx, rn domain.Rental) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO rentals(`+rentalColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		rn.ID, rn.RequestID, rn.StartDate, rn.EndDate, nullableStringPtr(rn.ActualReturnDate),
		nullableInt64Ptr(rn.FineCents), string(rn.Status), rn.CreatedAt, rn.UpdatedAt)
	return err
}

func (r Repo) GetRental(ctx context.Context, id string) (domain.Rental, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id=?`, id)
	return scanRentalRow(row.Scan)
}

func (r Repo) GetRentalTx(ctx context.Context, tx *sql.Tx, id string) (domain.Rental, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE id=?`, id)
	return scanRentalRow(row.Scan)
}

func (r Repo) GetRentalByRequest(ctx context.Context, requestID string) (domain.Rental, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE request_id=?`, requestID)
	return scanRentalRow(row.Scan)
}

func (r Repo) UpdateRental(ctx context.Context, tx *sql.Tx, rn domain.Rental) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE rentals SET actual_return_date=?, fine_cents=?, status=?, updated_at=? WHERE id=?`,
		nullableStringPtr(rn.ActualReturnDate), nullableInt64Ptr(rn.FineCents), string(rn.Status), rn.UpdatedAt, rn.ID)
	return err
}

type RentalFilters struct {
	Status string
	Limit  int
}

func (r Repo) ListRentals(ctx context.Context, f RentalFilters) ([]domain.Rental, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + rentalColumns + ` FROM rentals ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rental
	for rows.Next() {
		rn, err := scanRentalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rn)
	}
	return res, rows.Err()
}

// ListLateActiveRentals returns active rentals whose end date has passed.
// Used by the overdue sweep; `overdue` itself stays a derived classification.
func (r Repo) ListLateActiveRentals(ctx context.Context, now string) ([]domain.Rental, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+rentalColumns+` FROM rentals WHERE status='active' AND end_date < ? ORDER BY end_date ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rental
	for rows.Next() {
		rn, err := scanRentalRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rn)
	}
	return res, rows.Err()
}

const calibrationColumns = `id,request_id,calibration_date,result,certificate_url,status,created_at,updated_at`

func scanCalibrationRow(scan func(dest ...any) error) (domain.Calibration, error) {
	var c domain.Calibration
	var result, cert sql.NullString
	var status string
	err := scan(&c.ID, &c.RequestID, &c.CalibrationDate, &result, &cert, &status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if result.Valid {
		c.Result = &result.String
	}
	if cert.Valid {
		c.CertificateURL = &cert.String
	}
	c.Status = domain.CalibrationStatus(status)
	return c, nil
}

func (r Repo) InsertCalibration(ctx context.Context, tx *sql.Tx, c domain.Calibration) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO calibrations(`+calibrationColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.RequestID, c.CalibrationDate, nullableStringPtr(c.Result), nullableStringPtr(c.CertificateURL),
		string(c.Status), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCalibration(ctx context.Context, id string) (domain.Calibration, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+calibrationColumns+` FROM calibrations WHERE id=?`, id)
	return scanCalibrationRow(row.Scan)
}

func (r Repo) GetCalibrationTx(ctx context.Context, tx *sql.Tx, id string) (domain.Calibration, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+calibrationColumns+` FROM calibrations WHERE id=?`, id)
	return scanCalibrationRow(row.Scan)
}

func (r Repo) GetCalibrationByRequest(ctx context.Context, requestID string) (domain.Calibration, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+calibrationColumns+` FROM calibrations WHERE request_id=?`, requestID)
	return scanCalibrationRow(row.Scan)
}

func (r Repo) UpdateCalibration(ctx context.Context, tx *sql.Tx, c domain.Calibration) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE calibrations SET result=?, certificate_url=?, status=?, updated_at=? WHERE id=?`,
		nullableStringPtr(c.Result), nullableStringPtr(c.CertificateURL), string(c.Status), c.UpdatedAt, c.ID)
	return err
}

type CalibrationFilters struct {
	Status string
	Limit  int
}

func (r Repo) ListCalibrations(ctx context.Context, f CalibrationFilters) ([]domain.Calibration, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + calibrationColumns + ` FROM calibrations ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Calibration
	for rows.Next() {
		c, err := scanCalibrationRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
