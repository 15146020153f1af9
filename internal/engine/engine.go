package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"toolroom/internal/config"
	"toolroom/internal/domain"
	"toolroom/internal/events"
	"toolroom/internal/repo"
)

// Notifier delivers best-effort messages after a successful transition.
// Failures are ignored; they never roll back the workflow.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Locks    *KeyedLock
	Config   *config.Config
	Now      func() time.Time
	Notifier Notifier
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Locks:  NewKeyedLock(),
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// lockCtx bounds lock acquisition by the configured timeout.
func (e Engine) lockCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Config != nil && e.Config.Locks.AcquireTimeoutSeconds > 0 {
		return context.WithTimeout(ctx, time.Duration(e.Config.Locks.AcquireTimeoutSeconds)*time.Second)
	}
	return ctx, func() {}
}

func (e Engine) notify(ctx context.Context, userID, message string) {
	if e.Notifier == nil || userID == "" {
		return
	}
	e.Notifier.Notify(ctx, userID, message)
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, NewError(CodeBadInput, "%s: invalid RFC3339 timestamp %q", field, value)
	}
	return t, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- items ---

type CreateItemOptions struct {
	ID            string
	Name          string
	CategoryID    string
	Specification string
	SerialNumber  string
	ActorID       string
}

func (e Engine) CreateItem(ctx context.Context, opts CreateItemOptions) (domain.Item, error) {
	if opts.Name == "" {
		return domain.Item{}, NewError(CodeBadInput, "name is required")
	}
	if opts.CategoryID == "" {
		return domain.Item{}, NewError(CodeBadInput, "category is required")
	}
	if _, err := e.Repo.GetCategory(ctx, opts.CategoryID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Item{}, NewError(CodeBadInput, "category %s not found", opts.CategoryID)
		}
		return domain.Item{}, err
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := e.timestamp()
	it := domain.Item{
		ID:            id,
		Name:          opts.Name,
		CategoryID:    opts.CategoryID,
		Specification: optionalString(opts.Specification),
		SerialNumber:  optionalString(opts.SerialNumber),
		Status:        domain.ItemAvailable,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertItem(ctx, tx, it); err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}
	if err := e.appendHistory(ctx, tx, it.ID, "item_registered", nil, opts.ActorID, ""); err != nil {
		return domain.Item{}, err
	}
	if err := e.Events.Append(ctx, tx, "item.created", "item", it.ID, opts.ActorID, events.EventPayload{"name": it.Name, "status": it.Status}); err != nil {
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Item{}, err
	}
	return it, nil
}

// RetireItem takes an item permanently out of circulation. Only an available
// item can be retired; anything mid-workflow must finish first.
func (e Engine) RetireItem(ctx context.Context, itemID, actorID string) (domain.Item, error) {
	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.Acquire(lctx, itemKey(itemID))
	if err != nil {
		return domain.Item{}, err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, err
	}
	defer tx.Rollback()

	it, err := e.Repo.GetItemTx(ctx, tx, itemID)
	if err != nil {
		return domain.Item{}, err
	}
	if it.Status != domain.ItemAvailable {
		return domain.Item{}, NewError(CodeInvalidTransition, "item %s is %s, not available", itemID, it.Status)
	}
	now := e.timestamp()
	if err := e.Repo.UpdateItemStatus(ctx, tx, itemID, domain.ItemRetired, now); err != nil {
		return domain.Item{}, err
	}
	if err := e.appendHistory(ctx, tx, itemID, "item_retired", nil, actorID, ""); err != nil {
		return domain.Item{}, err
	}
	if err := e.Events.Append(ctx, tx, "item.retired", "item", itemID, actorID, nil); err != nil {
		return domain.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Item{}, err
	}
	it.Status = domain.ItemRetired
	it.UpdatedAt = now
	return it, nil
}

// --- eligibility ---

// CheckEligible reports whether the item may accept a new request: its status
// is available and no request on it is still open. Pure read, no locks.
func (e Engine) CheckEligible(ctx context.Context, itemID string) error {
	return e.checkEligible(ctx, nil, itemID)
}

func (e Engine) checkEligible(ctx context.Context, tx *sql.Tx, itemID string) error {
	var it domain.Item
	var err error
	if tx != nil {
		it, err = e.Repo.GetItemTx(ctx, tx, itemID)
	} else {
		it, err = e.Repo.GetItem(ctx, itemID)
	}
	if err != nil {
		return err
	}
	if it.Status != domain.ItemAvailable {
		return NewError(CodeItemUnavailable, "item %s is %s", itemID, it.Status)
	}
	open, err := e.Repo.CountOpenRequests(ctx, tx, itemID)
	if err != nil {
		return err
	}
	if open > 0 {
		return NewError(CodeItemUnavailable, "item %s has an open request", itemID)
	}
	return nil
}

// --- request state machine ---

type SubmitRequestOptions struct {
	UserID string
	ItemID string
	Type   domain.RequestType
	Reason string
}

// SubmitRequest creates a pending request and marks the item requested.
// Exactly one of two concurrent submissions for the same item succeeds.
func (e Engine) SubmitRequest(ctx context.Context, opts SubmitRequestOptions) (domain.Request, error) {
	if opts.UserID == "" {
		return domain.Request{}, NewError(CodeBadInput, "user is required")
	}
	if opts.ItemID == "" {
		return domain.Request{}, NewError(CodeBadInput, "item is required")
	}
	if opts.Type != domain.RequestBorrow && opts.Type != domain.RequestCalibration {
		return domain.Request{}, NewError(CodeBadInput, "request type must be borrow or calibration")
	}

	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.Acquire(lctx, itemKey(opts.ItemID))
	if err != nil {
		return domain.Request{}, err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	if err := e.checkEligible(ctx, tx, opts.ItemID); err != nil {
		return domain.Request{}, err
	}
	now := e.timestamp()
	rq := domain.Request{
		ID:          uuid.New().String(),
		UserID:      opts.UserID,
		ItemID:      opts.ItemID,
		Type:        opts.Type,
		Reason:      optionalString(opts.Reason),
		RequestDate: now,
		Status:      domain.RequestPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertRequest(ctx, tx, rq); err != nil {
		return domain.Request{}, fmt.Errorf("insert request: %w", err)
	}
	if err := e.Repo.UpdateItemStatus(ctx, tx, opts.ItemID, domain.ItemRequested, now); err != nil {
		return domain.Request{}, err
	}
	if err := e.appendHistory(ctx, tx, opts.ItemID, "request_submitted", &rq.ID, opts.UserID, string(opts.Type)); err != nil {
		return domain.Request{}, err
	}
	if err := e.Events.Append(ctx, tx, "request.submitted", "request", rq.ID, opts.UserID, events.EventPayload{
		"item_id": rq.ItemID,
		"type":    rq.Type,
	}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	e.notify(ctx, rq.UserID, fmt.Sprintf("request %s for item %s submitted", rq.ID, rq.ItemID))
	return rq, nil
}

type DecideRequestOptions struct {
	RequestID  string
	ApproverID string
	Approve    bool
	// EndDate overrides the configured default rental duration (borrow only).
	EndDate string
	// CalibrationDate overrides "now" as the scheduled date (calibration only).
	CalibrationDate string
}

// DecideRequest approves or rejects a pending request. Approval spawns
// exactly one rental or calibration matching the request type; the second
// decision on the same request always fails.
func (e Engine) DecideRequest(ctx context.Context, opts DecideRequestOptions) (domain.Request, error) {
	if opts.ApproverID == "" {
		return domain.Request{}, NewError(CodeApproverRequired, "approver is required")
	}
	// Snapshot read to learn the item; re-checked under lock below.
	peek, err := e.Repo.GetRequest(ctx, opts.RequestID)
	if err != nil {
		return domain.Request{}, err
	}

	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.AcquireMany(lctx, itemKey(peek.ItemID), requestKey(opts.RequestID))
	if err != nil {
		return domain.Request{}, err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Request{}, err
	}
	defer tx.Rollback()

	rq, err := e.Repo.GetRequestTx(ctx, tx, opts.RequestID)
	if err != nil {
		return domain.Request{}, err
	}
	switch rq.Status {
	case domain.RequestPending:
	case domain.RequestApproved, domain.RequestRejected:
		return domain.Request{}, NewError(CodeAlreadyDecided, "request %s already %s", rq.ID, rq.Status)
	default:
		return domain.Request{}, NewError(CodeInvalidTransition, "request %s is %s, not pending", rq.ID, rq.Status)
	}

	now := e.timestamp()
	if !opts.Approve {
		rq.Status = domain.RequestRejected
		rq.UpdatedAt = now
		if err := e.Repo.UpdateRequest(ctx, tx, rq); err != nil {
			return domain.Request{}, err
		}
		if err := e.Repo.UpdateItemStatus(ctx, tx, rq.ItemID, domain.ItemAvailable, now); err != nil {
			return domain.Request{}, err
		}
		if err := e.appendHistory(ctx, tx, rq.ItemID, "request_rejected", &rq.ID, opts.ApproverID, ""); err != nil {
			return domain.Request{}, err
		}
		if err := e.Events.Append(ctx, tx, "request.rejected", "request", rq.ID, opts.ApproverID, nil); err != nil {
			return domain.Request{}, err
		}
		if err := tx.Commit(); err != nil {
			return domain.Request{}, err
		}
		e.notify(ctx, rq.UserID, fmt.Sprintf("request %s rejected", rq.ID))
		return rq, nil
	}

	rq.Status = domain.RequestApproved
	rq.ApprovedBy = &opts.ApproverID
	rq.UpdatedAt = now
	if err := e.Repo.UpdateRequest(ctx, tx, rq); err != nil {
		return domain.Request{}, err
	}

	var itemStatus domain.ItemStatus
	switch rq.Type {
	case domain.RequestBorrow:
		if err := e.spawnRental(ctx, tx, rq, opts.EndDate, now); err != nil {
			return domain.Request{}, err
		}
		itemStatus = domain.ItemOnLoan
	case domain.RequestCalibration:
		if err := e.spawnCalibration(ctx, tx, rq, opts.CalibrationDate, now); err != nil {
			return domain.Request{}, err
		}
		itemStatus = domain.ItemInCalibration
	default:
		return domain.Request{}, NewError(CodeBadInput, "request %s has unknown type %q", rq.ID, rq.Type)
	}
	if err := e.Repo.UpdateItemStatus(ctx, tx, rq.ItemID, itemStatus, now); err != nil {
		return domain.Request{}, err
	}
	if err := e.appendHistory(ctx, tx, rq.ItemID, "request_approved", &rq.ID, opts.ApproverID, string(rq.Type)); err != nil {
		return domain.Request{}, err
	}
	if err := e.Events.Append(ctx, tx, "request.approved", "request", rq.ID, opts.ApproverID, events.EventPayload{
		"item_id": rq.ItemID,
		"type":    rq.Type,
	}); err != nil {
		return domain.Request{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Request{}, err
	}
	e.notify(ctx, rq.UserID, fmt.Sprintf("request %s approved", rq.ID))
	return rq, nil
}

func (e Engine) spawnRental(ctx context.Context, tx *sql.Tx, rq domain.Request, endDateOverride, now string) error {
	start := e.now().UTC()
	end := start.AddDate(0, 0, e.Config.Rental.DefaultDays)
	if endDateOverride != "" {
		t, err := parseTime("end_date", endDateOverride)
		if err != nil {
			return err
		}
		if !t.After(start) {
			return NewError(CodeBadInput, "end_date must be after the start date")
		}
		end = t.UTC()
	}
	rn := domain.Rental{
		ID:        uuid.New().String(),
		RequestID: rq.ID,
		StartDate: start.Format(time.RFC3339),
		EndDate:   end.Format(time.RFC3339),
		Status:    domain.RentalActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertRental(ctx, tx, rn); err != nil {
		return fmt.Errorf("insert rental: %w", err)
	}
	return e.Events.Append(ctx, tx, "rental.created", "rental", rn.ID, *rq.ApprovedBy, events.EventPayload{
		"request_id": rq.ID,
		"end_date":   rn.EndDate,
	})
}

func (e Engine) spawnCalibration(ctx context.Context, tx *sql.Tx, rq domain.Request, dateOverride, now string) error {
	date := e.now().UTC()
	if dateOverride != "" {
		t, err := parseTime("calibration_date", dateOverride)
		if err != nil {
			return err
		}
		date = t.UTC()
	}
	c := domain.Calibration{
		ID:              uuid.New().String(),
		RequestID:       rq.ID,
		CalibrationDate: date.Format(time.RFC3339),
		Status:          domain.CalibrationScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Repo.InsertCalibration(ctx, tx, c); err != nil {
		return fmt.Errorf("insert calibration: %w", err)
	}
	return e.Events.Append(ctx, tx, "calibration.scheduled", "calibration", c.ID, *rq.ApprovedBy, events.EventPayload{
		"request_id":       rq.ID,
		"calibration_date": c.CalibrationDate,
	})
}

// --- rental lifecycle ---

type ReturnRentalOptions struct {
	RentalID    string
	ReturnDate  string // RFC3339; defaults to now
	PerformedBy string
}

// ReturnRental closes out a rental: records the return date, computes the
// fine, closes the parent request and puts the item back in circulation.
func (e Engine) ReturnRental(ctx context.Context, opts ReturnRentalOptions) (domain.Rental, error) {
	if opts.PerformedBy == "" {
		return domain.Rental{}, NewError(CodeBadInput, "performed_by is required")
	}
	peek, err := e.Repo.GetRental(ctx, opts.RentalID)
	if err != nil {
		return domain.Rental{}, err
	}
	rqPeek, err := e.Repo.GetRequest(ctx, peek.RequestID)
	if err != nil {
		return domain.Rental{}, err
	}

	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.AcquireMany(lctx, itemKey(rqPeek.ItemID), requestKey(rqPeek.ID))
	if err != nil {
		return domain.Rental{}, err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Rental{}, err
	}
	defer tx.Rollback()

	rn, err := e.Repo.GetRentalTx(ctx, tx, opts.RentalID)
	if err != nil {
		return domain.Rental{}, err
	}
	if rn.Status == domain.RentalReturned {
		return domain.Rental{}, NewError(CodeInvalidTransition, "rental %s already returned", rn.ID)
	}
	rq, err := e.Repo.GetRequestTx(ctx, tx, rn.RequestID)
	if err != nil {
		return domain.Rental{}, err
	}

	returnedAt := e.now().UTC()
	if opts.ReturnDate != "" {
		t, err := parseTime("return_date", opts.ReturnDate)
		if err != nil {
			return domain.Rental{}, err
		}
		returnedAt = t.UTC()
	}
	endDate, err := parseTime("end_date", rn.EndDate)
	if err != nil {
		return domain.Rental{}, err
	}
	fine := FineCents(e.Config.Rental.DailyFineRateCents, endDate, returnedAt)

	now := e.timestamp()
	returnStr := returnedAt.Format(time.RFC3339)
	rn.ActualReturnDate = &returnStr
	rn.FineCents = &fine
	rn.Status = domain.RentalReturned
	rn.UpdatedAt = now
	if err := e.Repo.UpdateRental(ctx, tx, rn); err != nil {
		return domain.Rental{}, err
	}

	rq.Status = domain.RequestClosed
	rq.UpdatedAt = now
	if err := e.Repo.UpdateRequest(ctx, tx, rq); err != nil {
		return domain.Rental{}, err
	}
	if err := e.Repo.UpdateItemStatus(ctx, tx, rq.ItemID, domain.ItemAvailable, now); err != nil {
		return domain.Rental{}, err
	}
	desc := fmt.Sprintf("fine_cents=%d", fine)
	if err := e.appendHistory(ctx, tx, rq.ItemID, "item_returned", &rq.ID, opts.PerformedBy, desc); err != nil {
		return domain.Rental{}, err
	}
	if err := e.Events.Append(ctx, tx, "rental.returned", "rental", rn.ID, opts.PerformedBy, events.EventPayload{
		"request_id": rq.ID,
		"fine_cents": fine,
	}); err != nil {
		return domain.Rental{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Rental{}, err
	}
	msg := fmt.Sprintf("rental %s returned", rn.ID)
	if fine > 0 {
		msg = fmt.Sprintf("rental %s returned with fine of %d cents", rn.ID, fine)
	}
	e.notify(ctx, rq.UserID, msg)
	return rn, nil
}

// SweepOverdue persists the overdue label on active rentals past their end
// date. Overdue remains a derived classification; the sweep only makes it
// visible to plain status queries.
func (e Engine) SweepOverdue(ctx context.Context, actorID string) (int, error) {
	late, err := e.Repo.ListLateActiveRentals(ctx, e.timestamp())
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, rn := range late {
		rq, err := e.Repo.GetRequest(ctx, rn.RequestID)
		if err != nil {
			return marked, err
		}
		if err := e.markOverdue(ctx, rq.ItemID, rq.ID, rn.ID, actorID); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

func (e Engine) markOverdue(ctx context.Context, itemID, requestID, rentalID, actorID string) error {
	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.AcquireMany(lctx, itemKey(itemID), requestKey(requestID))
	if err != nil {
		return err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rn, err := e.Repo.GetRentalTx(ctx, tx, rentalID)
	if err != nil {
		return err
	}
	// Raced with a return between listing and locking.
	if rn.Status != domain.RentalActive {
		return nil
	}
	rn.Status = domain.RentalOverdue
	rn.UpdatedAt = e.timestamp()
	if err := e.Repo.UpdateRental(ctx, tx, rn); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rental.overdue", "rental", rn.ID, actorID, events.EventPayload{
		"request_id": rn.RequestID,
		"end_date":   rn.EndDate,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- calibration lifecycle ---

type CompleteCalibrationOptions struct {
	CalibrationID  string
	Result         string
	Failed         bool // caller-supplied outcome, not inferred from Result
	CertificateURL string
	PerformedBy    string
}

// CompleteCalibration finishes a scheduled calibration, closes the parent
// request and returns the item to circulation. A certificate URL, when given,
// must reference an uploaded document.
func (e Engine) CompleteCalibration(ctx context.Context, opts CompleteCalibrationOptions) (domain.Calibration, error) {
	if opts.PerformedBy == "" {
		return domain.Calibration{}, NewError(CodeBadInput, "performed_by is required")
	}
	if opts.Result == "" {
		return domain.Calibration{}, NewError(CodeBadInput, "result is required")
	}
	peek, err := e.Repo.GetCalibration(ctx, opts.CalibrationID)
	if err != nil {
		return domain.Calibration{}, err
	}
	rqPeek, err := e.Repo.GetRequest(ctx, peek.RequestID)
	if err != nil {
		return domain.Calibration{}, err
	}

	lctx, cancel := e.lockCtx(ctx)
	defer cancel()
	release, err := e.Locks.AcquireMany(lctx, itemKey(rqPeek.ItemID), requestKey(rqPeek.ID))
	if err != nil {
		return domain.Calibration{}, err
	}
	defer release()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Calibration{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCalibrationTx(ctx, tx, opts.CalibrationID)
	if err != nil {
		return domain.Calibration{}, err
	}
	if c.Status != domain.CalibrationScheduled {
		return domain.Calibration{}, NewError(CodeInvalidTransition, "calibration %s is %s, not scheduled", c.ID, c.Status)
	}
	rq, err := e.Repo.GetRequestTx(ctx, tx, c.RequestID)
	if err != nil {
		return domain.Calibration{}, err
	}
	if opts.CertificateURL != "" {
		ok, err := e.Repo.DocumentExistsByURL(ctx, tx, opts.CertificateURL)
		if err != nil {
			return domain.Calibration{}, err
		}
		if !ok {
			return domain.Calibration{}, NewError(CodeDocumentNotFound, "no document references %s", opts.CertificateURL)
		}
		c.CertificateURL = &opts.CertificateURL
	}

	now := e.timestamp()
	c.Result = &opts.Result
	c.Status = domain.CalibrationCompleted
	activity := "calibration_completed"
	if opts.Failed {
		c.Status = domain.CalibrationFailed
		activity = "calibration_failed"
	}
	c.UpdatedAt = now
	if err := e.Repo.UpdateCalibration(ctx, tx, c); err != nil {
		return domain.Calibration{}, err
	}

	rq.Status = domain.RequestClosed
	rq.UpdatedAt = now
	if err := e.Repo.UpdateRequest(ctx, tx, rq); err != nil {
		return domain.Calibration{}, err
	}
	if err := e.Repo.UpdateItemStatus(ctx, tx, rq.ItemID, domain.ItemAvailable, now); err != nil {
		return domain.Calibration{}, err
	}
	if err := e.appendHistory(ctx, tx, rq.ItemID, activity, &rq.ID, opts.PerformedBy, opts.Result); err != nil {
		return domain.Calibration{}, err
	}
	if err := e.Events.Append(ctx, tx, "calibration."+string(c.Status), "calibration", c.ID, opts.PerformedBy, events.EventPayload{
		"request_id": rq.ID,
		"result":     opts.Result,
	}); err != nil {
		return domain.Calibration{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Calibration{}, err
	}
	e.notify(ctx, rq.UserID, fmt.Sprintf("calibration %s %s", c.ID, c.Status))
	return c, nil
}

// --- documents ---

type AddDocumentOptions struct {
	Kind       string
	FileURL    string
	UploadedBy string
}

func (e Engine) AddDocument(ctx context.Context, opts AddDocumentOptions) (domain.Document, error) {
	if opts.FileURL == "" {
		return domain.Document{}, NewError(CodeBadInput, "file_url is required")
	}
	if opts.Kind == "" {
		opts.Kind = "certificate"
	}
	d := domain.Document{
		ID:         uuid.New().String(),
		Kind:       opts.Kind,
		FileURL:    opts.FileURL,
		UploadedBy: opts.UploadedBy,
		CreatedAt:  e.timestamp(),
	}
	if err := e.Repo.InsertDocument(ctx, d); err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return d, nil
}

// --- categories ---

func (e Engine) CreateCategory(ctx context.Context, id, name string) (domain.Category, error) {
	if name == "" {
		return domain.Category{}, NewError(CodeBadInput, "name is required")
	}
	if id == "" {
		id = uuid.New().String()
	}
	c := domain.Category{ID: id, Name: name, CreatedAt: e.timestamp()}
	if err := e.Repo.InsertCategory(ctx, c); err != nil {
		return domain.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (e Engine) appendHistory(ctx context.Context, tx *sql.Tx, itemID, activity string, requestID *string, performedBy, description string) error {
	h := domain.HistoryEntry{
		ID:          uuid.New().String(),
		ItemID:      itemID,
		Activity:    activity,
		RequestID:   requestID,
		Description: optionalString(description),
		PerformedBy: performedBy,
		Date:        e.timestamp(),
	}
	if err := e.Repo.AppendHistory(ctx, tx, h); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
