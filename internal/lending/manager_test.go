package lending_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library_system/internal/domain"
	"library_system/internal/events"
	"library_system/internal/lending"
	"library_system/internal/store"
	"library_system/internal/testutil"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TransactionEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.TransactionEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type countingCache struct {
	mu sync.Mutex
	n  int
}

func (c *countingCache) InvalidateBooks(context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

type fixture struct {
	ctx   context.Context
	st    *store.Store
	m     *lending.Manager
	clock *clock
	pub   *recordingPublisher
	cache *countingCache
	logs  *test.Hook
	admin domain.Session
	user  domain.Session
	book  domain.Book
}

func newFixture(t *testing.T, qty int) fixture {
	t.Helper()
	f := fixture{
		ctx:   context.Background(),
		st:    store.New(testutil.NewDB(t)),
		clock: &clock{now: time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)},
		pub:   &recordingPublisher{},
		cache: &countingCache{},
	}
	logger, hook := test.NewNullLogger()
	f.logs = hook

	admin := domain.User{Name: "Librarian", Email: "admin@library.local", Password: "x", Role: domain.RoleAdmin}
	require.NoError(t, f.st.Users.Create(f.ctx, &admin))
	user := domain.User{ID: 5, Name: "Asha Rao", Email: "asha@example.com", Password: "x", Role: domain.RoleUser}
	require.NoError(t, f.st.Users.Create(f.ctx, &user))
	f.admin, f.user = domain.NewSession(admin), domain.NewSession(user)

	f.book = domain.Book{ID: 7, Title: "Dune", Author: "Frank Herbert", Category: "Sci-Fi", Quantity: qty, Floor: 2, Shelf: "B4"}
	require.NoError(t, f.st.Books.Create(f.ctx, &f.book))

	f.m = lending.NewManager(f.st, domain.DefaultLoanPolicy(),
		lending.WithClock(f.clock.Now),
		lending.WithPublisher(f.pub),
		lending.WithBookCache(f.cache),
		lending.WithLogger(logger),
	)
	return f
}

func (f fixture) quantity(t *testing.T) int {
	t.Helper()
	b, err := f.st.Books.GetByID(f.ctx, f.book.ID)
	require.NoError(t, err)
	return b.Quantity
}

func (f fixture) request(t *testing.T, sess domain.Session) uint {
	t.Helper()
	res, err := f.m.RequestIssue(f.ctx, sess, sess.UserID, f.book.ID)
	require.NoError(t, err)
	require.True(t, res.OK(), res.Message)
	return res.Transaction.ID
}

func (f fixture) addUser(t *testing.T, name, email string) domain.Session {
	t.Helper()
	u := domain.User{Name: name, Email: email, Password: "x", Role: domain.RoleUser}
	require.NoError(t, f.st.Users.Create(f.ctx, &u))
	return domain.NewSession(u)
}

func Test_Lifecycle_RequestApproveReturnWithFine(t *testing.T) {
	f := newFixture(t, 2)

	res, err := f.m.RequestIssue(f.ctx, f.user, 5, 7)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, domain.StatusPending, res.Transaction.Status)
	assert.Equal(t, "Asha Rao", res.Transaction.UserName)
	assert.Equal(t, "Dune", res.Transaction.BookTitle)
	assert.Equal(t, 2, f.quantity(t), "request must not take stock")
	id := res.Transaction.ID

	res, err = f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, domain.StatusApproved, res.Transaction.Status)
	assert.Equal(t, 1, f.quantity(t))

	f.clock.Advance(12 * 24 * time.Hour)
	res, err = f.m.AdminReturn(f.ctx, f.admin, id, true)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.NotNil(t, res.Receipt)
	assert.Equal(t, 5, res.Receipt.OverdueDays)
	assert.Equal(t, 50.0, res.Receipt.Fine)
	assert.True(t, res.Receipt.FineCollected)
	assert.Equal(t, "Book returned. Fine of 50.00 collected", res.Message)
	assert.Equal(t, 2, f.quantity(t))

	tx, err := f.st.Transactions.GetByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tx.ReturnDate)
	assert.False(t, tx.IsActive())

	assert.Equal(t, []string{events.TypeRequested, events.TypeApproved, events.TypeReturned}, f.pub.Types())
	assert.Equal(t, 2, f.cache.n)
}

func Test_AdminReturn_FineNotCollectedStillAcceptsBook(t *testing.T) {
	f := newFixture(t, 1)
	id := f.request(t, f.user)
	_, err := f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)

	f.clock.Advance(9 * 24 * time.Hour)
	res, err := f.m.AdminReturn(f.ctx, f.admin, id, false)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 2, res.Receipt.OverdueDays)
	assert.Equal(t, 20.0, res.Receipt.Fine)
	assert.Equal(t, "Book returned. Fine of 20.00 NOT collected", res.Message)
	assert.Equal(t, 1, f.quantity(t))
}

func Test_AdminReturn_OnTimeHasNoFine(t *testing.T) {
	f := newFixture(t, 1)
	id := f.request(t, f.user)
	_, err := f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)

	f.clock.Advance(7 * 24 * time.Hour)
	res, err := f.m.AdminReturn(f.ctx, f.admin, id, false)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Zero(t, res.Receipt.OverdueDays)
	assert.Zero(t, res.Receipt.Fine)
	assert.Equal(t, "Book returned. No fine applicable", res.Message)
}

func Test_Approve_AlreadyApprovedLeavesQuantity(t *testing.T) {
	f := newFixture(t, 2)
	id := f.request(t, f.user)

	res, err := f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, 1, f.quantity(t))

	res, err = f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, domain.ReasonNotPending, res.Reason)
	assert.Equal(t, 1, f.quantity(t))
	require.NotNil(t, f.logs.LastEntry())
	assert.Equal(t, logrus.WarnLevel, f.logs.LastEntry().Level)
	assert.Equal(t, domain.ReasonNotPending, f.logs.LastEntry().Data["reason"])
}

func Test_Approve_NoStockRollsBackStatus(t *testing.T) {
	f := newFixture(t, 1)
	first := f.request(t, f.user)
	other := f.addUser(t, "Ben Ortiz", "ben@example.com")
	second := f.request(t, other)

	res, err := f.m.Approve(f.ctx, f.admin, first)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, 0, f.quantity(t))

	res, err = f.m.Approve(f.ctx, f.admin, second)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonBookUnavailable, res.Reason)
	assert.Equal(t, 0, f.quantity(t))

	tx, err := f.st.Transactions.GetByID(f.ctx, second)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, tx.Status, "status change must roll back with the decrement")
}

func Test_Deny_LeavesQuantity(t *testing.T) {
	f := newFixture(t, 2)
	id := f.request(t, f.user)

	res, err := f.m.Deny(f.ctx, f.admin, id)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, domain.StatusDenied, res.Transaction.Status)
	assert.Equal(t, 2, f.quantity(t))
	assert.Zero(t, f.cache.n)
}

func Test_TerminalStatesRefuseTransitions(t *testing.T) {
	f := newFixture(t, 2)

	denied := f.request(t, f.user)
	_, err := f.m.Deny(f.ctx, f.admin, denied)
	require.NoError(t, err)

	returned := f.request(t, f.user)
	_, err = f.m.Approve(f.ctx, f.admin, returned)
	require.NoError(t, err)
	_, err = f.m.AdminReturn(f.ctx, f.admin, returned, false)
	require.NoError(t, err)

	pending := f.request(t, f.user)

	tests := []struct {
		name   string
		op     func(id uint) (lending.Result, error)
		id     uint
		reason domain.Reason
	}{
		{"approve_denied", func(id uint) (lending.Result, error) { return f.m.Approve(f.ctx, f.admin, id) }, denied, domain.ReasonNotPending},
		{"deny_denied", func(id uint) (lending.Result, error) { return f.m.Deny(f.ctx, f.admin, id) }, denied, domain.ReasonNotPending},
		{"return_denied", func(id uint) (lending.Result, error) { return f.m.AdminReturn(f.ctx, f.admin, id, false) }, denied, domain.ReasonNotActive},
		{"approve_returned", func(id uint) (lending.Result, error) { return f.m.Approve(f.ctx, f.admin, id) }, returned, domain.ReasonNotPending},
		{"deny_returned", func(id uint) (lending.Result, error) { return f.m.Deny(f.ctx, f.admin, id) }, returned, domain.ReasonNotPending},
		{"return_returned", func(id uint) (lending.Result, error) { return f.m.AdminReturn(f.ctx, f.admin, id, true) }, returned, domain.ReasonNotActive},
		{"return_pending", func(id uint) (lending.Result, error) { return f.m.AdminReturn(f.ctx, f.admin, id, false) }, pending, domain.ReasonNotActive},
		{"approve_missing", func(id uint) (lending.Result, error) { return f.m.Approve(f.ctx, f.admin, id) }, 999, domain.ReasonTransactionNotFound},
		{"deny_missing", func(id uint) (lending.Result, error) { return f.m.Deny(f.ctx, f.admin, id) }, 999, domain.ReasonTransactionNotFound},
		{"return_missing", func(id uint) (lending.Result, error) { return f.m.AdminReturn(f.ctx, f.admin, id, false) }, 999, domain.ReasonTransactionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := f.quantity(t)
			res, err := tt.op(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Error(t, res.Err())
			assert.Equal(t, before, f.quantity(t))
		})
	}

	tx, err := f.st.Transactions.GetByID(f.ctx, denied)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDenied, tx.Status)
	assert.Nil(t, tx.ReturnDate)
}

func Test_HasActiveRequest_FollowsLifecycle(t *testing.T) {
	f := newFixture(t, 2)

	has := func() bool {
		ok, err := f.m.HasActiveRequest(f.ctx, f.user.UserID, f.book.ID)
		require.NoError(t, err)
		return ok
	}

	assert.False(t, has())
	id := f.request(t, f.user)
	assert.True(t, has())
	_, err := f.m.Deny(f.ctx, f.admin, id)
	require.NoError(t, err)
	assert.False(t, has())

	id = f.request(t, f.user)
	_, err = f.m.Approve(f.ctx, f.admin, id)
	require.NoError(t, err)
	assert.True(t, has())
	_, err = f.m.AdminReturn(f.ctx, f.admin, id, false)
	require.NoError(t, err)
	assert.False(t, has())
}

func Test_RequestIssue_Refusals(t *testing.T) {
	f := newFixture(t, 1)
	empty := domain.Book{Title: "Empty Shelf", Author: "Nobody", Category: "Misc", Quantity: 0, Floor: 1, Shelf: "A1"}
	require.NoError(t, f.st.Books.Create(f.ctx, &empty))
	f.request(t, f.user)

	tests := []struct {
		name   string
		sess   domain.Session
		userID uint
		bookID uint
		reason domain.Reason
	}{
		{"zero_book", f.user, f.user.UserID, 0, domain.ReasonInvalidInput},
		{"zero_user", f.admin, 0, f.book.ID, domain.ReasonInvalidInput},
		{"book_not_found", f.user, f.user.UserID, 404, domain.ReasonBookNotFound},
		{"book_unavailable", f.user, f.user.UserID, empty.ID, domain.ReasonBookUnavailable},
		{"duplicate_request", f.user, f.user.UserID, f.book.ID, domain.ReasonDuplicateRequest},
		{"for_another_user", f.user, f.admin.UserID, f.book.ID, domain.ReasonForbidden},
		{"admin_for_missing_user", f.admin, 404, f.book.ID, domain.ReasonUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.m.RequestIssue(f.ctx, tt.sess, tt.userID, tt.bookID)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Nil(t, res.Transaction)
		})
	}

	st, err := f.m.Stats(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.TotalTransactions)
}

func Test_RequestIssue_ConcurrentDuplicatesYieldOne(t *testing.T) {
	f := newFixture(t, 3)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		reasons []domain.Reason
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.m.RequestIssue(f.ctx, f.user, f.user.UserID, f.book.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reasons = append(reasons, "ERROR")
				return
			}
			if res.OK() {
				ok++
				return
			}
			reasons = append(reasons, res.Reason)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Len(t, reasons, n-1)
	for _, r := range reasons {
		assert.Equal(t, domain.ReasonDuplicateRequest, r)
	}
}

func Test_DeleteTransaction(t *testing.T) {
	f := newFixture(t, 2)

	active := f.request(t, f.user)
	_, err := f.m.Approve(f.ctx, f.admin, active)
	require.NoError(t, err)
	require.Equal(t, 1, f.quantity(t))

	res, err := f.m.DeleteTransaction(f.ctx, f.admin, active)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 2, f.quantity(t), "deleting an issued copy must put it back")
	_, err = f.st.Transactions.GetByID(f.ctx, active)
	assert.ErrorIs(t, err, store.ErrNotFound)

	pending := f.request(t, f.user)
	res, err = f.m.DeleteTransaction(f.ctx, f.admin, pending)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 2, f.quantity(t))

	res, err = f.m.DeleteTransaction(f.ctx, f.admin, pending)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonTransactionNotFound, res.Reason)

	res, err = f.m.DeleteTransaction(f.ctx, f.user, pending)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonForbidden, res.Reason)
}

func Test_AdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t, 1)
	id := f.request(t, f.user)

	res, err := f.m.Approve(f.ctx, f.user, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonForbidden, res.Reason)

	res, err = f.m.Deny(f.ctx, f.user, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonForbidden, res.Reason)

	res, err = f.m.AdminReturn(f.ctx, f.user, id, false)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonForbidden, res.Reason)

	assert.Equal(t, 1, f.quantity(t))
}

func Test_QuantityNeverNegative(t *testing.T) {
	f := newFixture(t, 2)
	var ids []uint
	for _, name := range []string{"Ben", "Chen", "Dara", "Eli"} {
		s := f.addUser(t, name, name+"@example.com")
		ids = append(ids, f.request(t, s))
	}

	for _, id := range ids {
		_, err := f.m.Approve(f.ctx, f.admin, id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f.quantity(t), 0)
	}
	assert.Equal(t, 0, f.quantity(t))

	issued, err := f.m.IssuedWithFines(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 2, issued.TotalIssued)

	for _, v := range issued.Transactions {
		_, err := f.m.AdminReturn(f.ctx, f.admin, v.ID, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.quantity(t))
}

func Test_Queries(t *testing.T) {
	f := newFixture(t, 3)
	other := f.addUser(t, "Ben Ortiz", "ben@example.com")

	mine := f.request(t, f.user)
	_, err := f.m.Approve(f.ctx, f.admin, mine)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	theirs := f.request(t, other)

	f.clock.Advance(9 * 24 * time.Hour)

	v, err := f.m.Get(f.ctx, f.user, mine)
	require.NoError(t, err)
	assert.Equal(t, "Dune", v.BookTitle)
	assert.Equal(t, 3, v.Fine.OverdueDays)
	assert.Equal(t, 30.0, v.Fine.Fine)

	_, err = f.m.Get(f.ctx, f.user, theirs)
	assert.Equal(t, domain.ReasonTransactionNotFound, domain.ReasonOf(err))

	all, err := f.m.List(f.ctx, f.admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, theirs, all[0].ID, "newest first")

	_, err = f.m.List(f.ctx, f.user)
	assert.Equal(t, domain.ReasonForbidden, domain.ReasonOf(err))

	pending, err := f.m.ListByStatus(f.ctx, f.admin, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Ben Ortiz", pending[0].UserName)
	assert.Equal(t, "N/A", pending[0].Fine.FineStatus)

	active, err := f.m.ListActiveByUser(f.ctx, f.user, f.user.UserID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].Fine.IsOverdue)

	_, err = f.m.ListByUser(f.ctx, f.user, other.UserID)
	assert.Equal(t, domain.ReasonForbidden, domain.ReasonOf(err))

	report, err := f.m.IssuedWithFines(f.ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalIssued)
	assert.Equal(t, 1, report.OverdueCount)
	assert.Equal(t, 30.0, report.TotalFines)
}

type brokenPublisher struct{}

func (brokenPublisher) Publish(context.Context, events.TransactionEvent) error {
	return errors.New("broker down")
}

func Test_PublishFailureDoesNotUndoOperation(t *testing.T) {
	f := newFixture(t, 1)
	logger, hook := test.NewNullLogger()
	m := lending.NewManager(f.st, domain.DefaultLoanPolicy(),
		lending.WithPublisher(brokenPublisher{}),
		lending.WithLogger(logger),
	)

	res, err := m.RequestIssue(f.ctx, f.user, f.user.UserID, f.book.ID)
	require.NoError(t, err)
	require.True(t, res.OK())

	res, err = m.Approve(f.ctx, f.admin, res.Transaction.ID)
	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, 0, f.quantity(t))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "Event publish failed", entry.Message)
	assert.Equal(t, events.TypeApproved, entry.Data["event"])
}
