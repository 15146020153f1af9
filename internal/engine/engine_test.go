package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"toolroom/internal/config"
	"toolroom/internal/db"
	"toolroom/internal/domain"
	"toolroom/internal/engine"
	"toolroom/internal/migrate"
	"toolroom/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Clock  *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("shop-1")
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng := engine.New(conn, cfg)
	eng.Now = clock.Now
	ctx := context.Background()
	if _, err := eng.CreateCategory(ctx, "cat-1", "Multimeters"); err != nil {
		t.Fatalf("create category: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Clock: clock}
}

func (env testEnv) mustCreateItem(t *testing.T, id string) domain.Item {
	t.Helper()
	it, err := env.Engine.CreateItem(env.Ctx, engine.CreateItemOptions{
		ID:         id,
		Name:       "Fluke 87V",
		CategoryID: "cat-1",
		ActorID:    "admin",
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it
}

func (env testEnv) mustSubmit(t *testing.T, itemID string, typ domain.RequestType) domain.Request {
	t.Helper()
	rq, err := env.Engine.SubmitRequest(env.Ctx, engine.SubmitRequestOptions{
		UserID: "alice",
		ItemID: itemID,
		Type:   typ,
	})
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	return rq
}

func (env testEnv) mustApprove(t *testing.T, requestID string) domain.Request {
	t.Helper()
	rq, err := env.Engine.DecideRequest(env.Ctx, engine.DecideRequestOptions{
		RequestID:  requestID,
		ApproverID: "boss",
		Approve:    true,
	})
	if err != nil {
		t.Fatalf("approve request: %v", err)
	}
	return rq
}

func TestBorrowFlowOnTimeReturn(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)

	got, err := env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if err != nil || got.Status != domain.ItemRequested {
		t.Fatalf("expected requested item, got %v %v", got.Status, err)
	}

	env.mustApprove(t, rq.ID)
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Status != domain.ItemOnLoan {
		t.Fatalf("expected on_loan, got %s", got.Status)
	}
	rental, err := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)
	if err != nil {
		t.Fatalf("rental not spawned: %v", err)
	}
	if rental.Status != domain.RentalActive {
		t.Fatalf("expected active rental, got %s", rental.Status)
	}

	// Return two days in, well before the 7-day default end date.
	env.Clock.Advance(48 * time.Hour)
	returned, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.FineCents == nil || *returned.FineCents != 0 {
		t.Fatalf("expected zero fine, got %v", returned.FineCents)
	}
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Status != domain.ItemAvailable {
		t.Fatalf("expected available after return, got %s", got.Status)
	}
	finalReq, _ := env.Engine.Repo.GetRequest(env.Ctx, rq.ID)
	if finalReq.Status != domain.RequestClosed {
		t.Fatalf("expected closed request, got %s", finalReq.Status)
	}
}

func TestLateReturnAccruesFine(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)
	rental, _ := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)

	// Default rental is 7 days; return 3 days late at 250 cents/day.
	env.Clock.Advance(10 * 24 * time.Hour)
	returned, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.FineCents == nil || *returned.FineCents != 750 {
		t.Fatalf("expected 750 cents fine, got %v", returned.FineCents)
	}
}

func TestPartialLateDayRoundsUp(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)
	rental, _ := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)

	// 7 days + 1 hour late counts as one full late day.
	env.Clock.Advance(7*24*time.Hour + time.Hour)
	returned, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.FineCents == nil || *returned.FineCents != 250 {
		t.Fatalf("expected 250 cents fine, got %v", returned.FineCents)
	}
}

func TestConcurrentSubmitExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.SubmitRequest(env.Ctx, engine.SubmitRequestOptions{
				UserID: "alice",
				ItemID: it.ID,
				Type:   domain.RequestBorrow,
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		if engine.CodeOf(err) != engine.CodeItemUnavailable {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one winner, got %d", ok)
	}
	rows, err := env.Engine.Repo.ListRequests(env.Ctx, repo.RequestFilters{ItemID: it.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one request row, got %d", len(rows))
	}
}

func TestDoubleDecideFails(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)

	_, err := env.Engine.DecideRequest(env.Ctx, engine.DecideRequestOptions{
		RequestID:  rq.ID,
		ApproverID: "boss",
		Approve:    false,
	})
	if engine.CodeOf(err) != engine.CodeAlreadyDecided {
		t.Fatalf("expected already_decided, got %v", err)
	}
	// Still exactly one rental.
	rentals, err := env.Engine.Repo.ListRentals(env.Ctx, repo.RentalFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rentals) != 1 {
		t.Fatalf("expected one rental, got %d", len(rentals))
	}
}

func TestDecideRequiresApprover(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)

	_, err := env.Engine.DecideRequest(env.Ctx, engine.DecideRequestOptions{
		RequestID: rq.ID,
		Approve:   true,
	})
	if engine.CodeOf(err) != engine.CodeApproverRequired {
		t.Fatalf("expected approver_required, got %v", err)
	}
}

func TestRejectFreesItem(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)

	_, err := env.Engine.DecideRequest(env.Ctx, engine.DecideRequestOptions{
		RequestID:  rq.ID,
		ApproverID: "boss",
		Approve:    false,
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	got, _ := env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Status != domain.ItemAvailable {
		t.Fatalf("expected available after reject, got %s", got.Status)
	}
	// Rejected request no longer blocks a new one.
	env.mustSubmit(t, it.ID, domain.RequestCalibration)
}

func TestCalibrationFlow(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestCalibration)
	env.mustApprove(t, rq.ID)

	got, _ := env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Status != domain.ItemInCalibration {
		t.Fatalf("expected in_calibration, got %s", got.Status)
	}
	cal, err := env.Engine.Repo.GetCalibrationByRequest(env.Ctx, rq.ID)
	if err != nil {
		t.Fatalf("calibration not spawned: %v", err)
	}
	if cal.Status != domain.CalibrationScheduled {
		t.Fatalf("expected scheduled, got %s", cal.Status)
	}

	done, err := env.Engine.CompleteCalibration(env.Ctx, engine.CompleteCalibrationOptions{
		CalibrationID: cal.ID,
		Result:        "within tolerance",
		PerformedBy:   "tech",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.CalibrationCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
	got, _ = env.Engine.Repo.GetItem(env.Ctx, it.ID)
	if got.Status != domain.ItemAvailable {
		t.Fatalf("expected available after calibration, got %s", got.Status)
	}
	hist, _ := env.Engine.Repo.ListHistory(env.Ctx, repo.HistoryFilters{ItemID: it.ID, Activity: "calibration_completed"})
	if len(hist) != 1 {
		t.Fatalf("expected one calibration_completed history row, got %d", len(hist))
	}
}

func TestFailedCalibrationRecorded(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestCalibration)
	env.mustApprove(t, rq.ID)
	cal, _ := env.Engine.Repo.GetCalibrationByRequest(env.Ctx, rq.ID)

	done, err := env.Engine.CompleteCalibration(env.Ctx, engine.CompleteCalibrationOptions{
		CalibrationID: cal.ID,
		Result:        "drift out of range",
		Failed:        true,
		PerformedBy:   "tech",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.CalibrationFailed {
		t.Fatalf("expected failed, got %s", done.Status)
	}
	// Second completion attempt must be rejected.
	_, err = env.Engine.CompleteCalibration(env.Ctx, engine.CompleteCalibrationOptions{
		CalibrationID: cal.ID,
		Result:        "retry",
		PerformedBy:   "tech",
	})
	if engine.CodeOf(err) != engine.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition, got %v", err)
	}
}

func TestCalibrationCertificateMustExist(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestCalibration)
	env.mustApprove(t, rq.ID)
	cal, _ := env.Engine.Repo.GetCalibrationByRequest(env.Ctx, rq.ID)

	_, err := env.Engine.CompleteCalibration(env.Ctx, engine.CompleteCalibrationOptions{
		CalibrationID:  cal.ID,
		Result:         "ok",
		CertificateURL: "https://docs.example.com/cert-1.pdf",
		PerformedBy:    "tech",
	})
	if engine.CodeOf(err) != engine.CodeDocumentNotFound {
		t.Fatalf("expected document_not_found, got %v", err)
	}

	if _, err := env.Engine.AddDocument(env.Ctx, engine.AddDocumentOptions{
		FileURL:    "https://docs.example.com/cert-1.pdf",
		UploadedBy: "tech",
	}); err != nil {
		t.Fatalf("add document: %v", err)
	}
	done, err := env.Engine.CompleteCalibration(env.Ctx, engine.CompleteCalibrationOptions{
		CalibrationID:  cal.ID,
		Result:         "ok",
		CertificateURL: "https://docs.example.com/cert-1.pdf",
		PerformedBy:    "tech",
	})
	if err != nil {
		t.Fatalf("complete with certificate: %v", err)
	}
	if done.CertificateURL == nil || *done.CertificateURL != "https://docs.example.com/cert-1.pdf" {
		t.Fatalf("certificate url not recorded")
	}
}

func TestDoubleReturnFails(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)
	rental, _ := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)

	if _, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	}); err != nil {
		t.Fatalf("first return: %v", err)
	}
	_, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	})
	if engine.CodeOf(err) != engine.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition, got %v", err)
	}
	hist, _ := env.Engine.Repo.ListHistory(env.Ctx, repo.HistoryFilters{ItemID: it.ID, Activity: "item_returned"})
	if len(hist) != 1 {
		t.Fatalf("expected one item_returned row, got %d", len(hist))
	}
}

func TestSweepOverdueThenReturn(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)
	rental, _ := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)

	env.Clock.Advance(9 * 24 * time.Hour)
	n, err := env.Engine.SweepOverdue(env.Ctx, "cron")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one marked rental, got %d", n)
	}
	got, _ := env.Engine.Repo.GetRental(env.Ctx, rental.ID)
	if got.Status != domain.RentalOverdue {
		t.Fatalf("expected overdue, got %s", got.Status)
	}
	// A second sweep finds nothing.
	n, _ = env.Engine.SweepOverdue(env.Ctx, "cron")
	if n != 0 {
		t.Fatalf("expected idempotent sweep, got %d", n)
	}
	// An overdue rental can still be returned, with a fine.
	returned, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	})
	if err != nil {
		t.Fatalf("return overdue: %v", err)
	}
	if returned.FineCents == nil || *returned.FineCents != 500 {
		t.Fatalf("expected 500 cents fine, got %v", returned.FineCents)
	}
}

func TestRetireOnlyWhenAvailable(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)

	_, err := env.Engine.RetireItem(env.Ctx, it.ID, "admin")
	if engine.CodeOf(err) != engine.CodeInvalidTransition {
		t.Fatalf("expected invalid_transition while requested, got %v", err)
	}
	// Free the item, then retire.
	if _, err := env.Engine.DecideRequest(env.Ctx, engine.DecideRequestOptions{
		RequestID:  rq.ID,
		ApproverID: "boss",
		Approve:    false,
	}); err != nil {
		t.Fatal(err)
	}
	retired, err := env.Engine.RetireItem(env.Ctx, it.ID, "admin")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if retired.Status != domain.ItemRetired {
		t.Fatalf("expected retired, got %s", retired.Status)
	}
	// A retired item accepts no requests.
	_, err = env.Engine.SubmitRequest(env.Ctx, engine.SubmitRequestOptions{
		UserID: "alice",
		ItemID: it.ID,
		Type:   domain.RequestBorrow,
	})
	if engine.CodeOf(err) != engine.CodeItemUnavailable {
		t.Fatalf("expected item_unavailable, got %v", err)
	}
}

func TestEventsAppendedOnTransitions(t *testing.T) {
	env := newTestEnv(t)
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)
	rental, _ := env.Engine.Repo.GetRentalByRequest(env.Ctx, rq.ID)
	if _, err := env.Engine.ReturnRental(env.Ctx, engine.ReturnRentalOptions{
		RentalID:    rental.ID,
		PerformedBy: "boss",
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT type FROM events`)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	seen := map[string]bool{}
	for rows.Next() {
		var typ string
		if err := rows.Scan(&typ); err != nil {
			t.Fatal(err)
		}
		seen[typ] = true
	}
	for _, want := range []string{"item.created", "request.submitted", "request.approved", "rental.created", "rental.returned"} {
		if !seen[want] {
			t.Fatalf("missing event %s (have %v)", want, seen)
		}
	}
}

func TestNotificationsWrittenPostCommit(t *testing.T) {
	env := newTestEnv(t)
	var mu sync.Mutex
	var messages []string
	env.Engine.Notifier = notifierFunc(func(_ context.Context, userID, message string) {
		mu.Lock()
		messages = append(messages, userID+": "+message)
		mu.Unlock()
	})
	it := env.mustCreateItem(t, "item-1")
	rq := env.mustSubmit(t, it.ID, domain.RequestBorrow)
	env.mustApprove(t, rq.ID)

	mu.Lock()
	defer mu.Unlock()
	if len(messages) != 2 {
		t.Fatalf("expected submit+approve notifications, got %v", messages)
	}
}

type notifierFunc func(ctx context.Context, userID, message string)

func (f notifierFunc) Notify(ctx context.Context, userID, message string) { f(ctx, userID, message) }
