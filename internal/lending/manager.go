// Package lending owns the transaction lifecycle: request, approve, deny,
// return and delete, together with the book quantity each step moves.
package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"library_system/internal/domain"
	"library_system/internal/events"
	"library_system/internal/store"
)

// errRefused aborts an InTx closure after the Result has been filled in, so
// any write already made inside it is rolled back.
var errRefused = errors.New("refused")

// BookCache is told when book quantities change
type BookCache interface {
	InvalidateBooks(ctx context.Context)
}

// Manager runs lifecycle operations against the store
type Manager struct {
	store     *store.Store
	policy    domain.LoanPolicy
	locker    RequestLocker
	publisher events.Publisher
	cache     BookCache
	now       func() time.Time
	log       logrus.FieldLogger
}

// Option configures a Manager
type Option func(*Manager)

// WithLocker replaces the in-process request locker
func WithLocker(l RequestLocker) Option { return func(m *Manager) { m.locker = l } }

// WithPublisher sets where lifecycle events go
func WithPublisher(p events.Publisher) Option { return func(m *Manager) { m.publisher = p } }

// WithBookCache registers the catalog cache to invalidate on stock changes
func WithBookCache(c BookCache) Option { return func(m *Manager) { m.cache = c } }

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLogger overrides the standard logrus logger
func WithLogger(l logrus.FieldLogger) Option { return func(m *Manager) { m.log = l } }

// NewManager builds a Manager with an in-process locker and no event sink
func NewManager(st *store.Store, policy domain.LoanPolicy, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		policy:    policy,
		locker:    NewLocalLocker(),
		publisher: events.NopPublisher{},
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Policy returns the loan policy in use
func (m *Manager) Policy() domain.LoanPolicy { return m.policy }

// RequestIssue files a PENDING request by userID for bookID. The book must
// exist and have a copy on the shelf, and the user must not already hold a
// pending or active transaction for it. Stock is not touched until approval.
func (m *Manager) RequestIssue(ctx context.Context, sess domain.Session, userID, bookID uint) (Result, error) {
	if userID == 0 || bookID == 0 {
		return refuse(domain.ReasonInvalidInput, "Invalid user ID or book ID"), nil
	}
	if !sess.IsAdmin() && sess.UserID != userID {
		return refuse(domain.ReasonForbidden, "Cannot request books for another user"), nil
	}

	unlock, err := m.locker.Lock(ctx, fmt.Sprintf("request:%d:%d", userID, bookID))
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return refuse(domain.ReasonBusy, "Another request for this book is in progress"), nil
		}
		return Result{}, fmt.Errorf("request lock: %w", err)
	}
	defer unlock()

	var (
		res Result
		t   domain.Transaction
	)
	err = m.store.InTx(ctx, func(s *store.Store) error {
		book, err := s.Books.GetByID(ctx, bookID)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonBookNotFound, "Book not found")
			return errRefused
		}
		if err != nil {
			return err
		}
		if !book.IsAvailable() {
			res = refuse(domain.ReasonBookUnavailable, "Book is currently not available")
			return errRefused
		}
		user, err := s.Users.GetByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonUserNotFound, "User not found")
			return errRefused
		}
		if err != nil {
			return err
		}
		dup, err := s.Transactions.HasActiveRequest(ctx, userID, bookID)
		if err != nil {
			return err
		}
		if dup {
			res = refuse(domain.ReasonDuplicateRequest, "You already have an active request or issued copy of this book")
			return errRefused
		}

		t = domain.Transaction{
			UserID:    userID,
			BookID:    bookID,
			Status:    domain.StatusPending,
			IssueDate: m.now(),
		}
		if err := s.Transactions.Create(ctx, &t); err != nil {
			return err
		}
		t.User, t.Book = &user, &book
		return nil
	})
	if err != nil {
		if errors.Is(err, errRefused) {
			m.logRefusal("request", res, logrus.Fields{"user_id": userID, "book_id": bookID})
			return res, nil
		}
		m.log.WithFields(logrus.Fields{"user_id": userID, "book_id": bookID, "error": err.Error()}).
			Error("Book request failed")
		return Result{}, fmt.Errorf("request issue: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"transaction_id": t.ID,
		"user_id":        userID,
		"book_id":        bookID,
	}).Info("Book requested")
	m.publish(ctx, events.TypeRequested, t, sess, nil)

	v := m.view(t)
	return Result{
		Message:     fmt.Sprintf("Your request for %q is pending approval", v.BookTitle),
		Transaction: &v,
	}, nil
}

// Approve moves a PENDING transaction to APPROVED and takes one copy off the
// shelf. Availability is re-checked at this point; the status change and the
// decrement commit together or not at all.
func (m *Manager) Approve(ctx context.Context, sess domain.Session, id uint) (Result, error) {
	if res, ok := m.adminOnly(sess); !ok {
		return res, nil
	}

	var (
		res Result
		t   domain.Transaction
	)
	err := m.store.InTx(ctx, func(s *store.Store) error {
		var err error
		t, err = s.Transactions.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonTransactionNotFound, "Transaction not found")
			return errRefused
		}
		if err != nil {
			return err
		}
		if !t.IsPending() {
			res = refuse(domain.ReasonNotPending, "Transaction is not pending approval")
			return errRefused
		}

		err = s.Transactions.TransitionStatus(ctx, id, domain.StatusPending, domain.StatusApproved)
		if errors.Is(err, store.ErrStateChanged) {
			res = refuse(domain.ReasonNotPending, "Transaction is not pending approval")
			return errRefused
		}
		if err != nil {
			return err
		}

		err = s.Books.DecrementIfAvailable(ctx, t.BookID)
		if errors.Is(err, store.ErrNoStock) {
			res = refuse(domain.ReasonBookUnavailable, "Book is no longer available")
			return errRefused
		}
		if err != nil {
			return err
		}
		t.Status = domain.StatusApproved
		if t.Book != nil {
			t.Book.Quantity--
		}
		return nil
	})
	if err != nil {
		return m.failed("approve", id, res, err)
	}

	m.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"user_id":        t.UserID,
		"book_id":        t.BookID,
		"admin_id":       sess.UserID,
	}).Info("Book request approved")
	m.invalidateBooks(ctx)
	m.publish(ctx, events.TypeApproved, t, sess, nil)

	v := m.view(t)
	return Result{Message: "Book request approved", Transaction: &v}, nil
}

// Deny moves a PENDING transaction to DENIED. Stock is not affected.
func (m *Manager) Deny(ctx context.Context, sess domain.Session, id uint) (Result, error) {
	if res, ok := m.adminOnly(sess); !ok {
		return res, nil
	}

	t, err := m.store.Transactions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return m.refused("deny", id, refuse(domain.ReasonTransactionNotFound, "Transaction not found")), nil
	}
	if err != nil {
		return m.failed("deny", id, Result{}, err)
	}
	if !t.IsPending() {
		return m.refused("deny", id, refuse(domain.ReasonNotPending, "Transaction is not pending approval")), nil
	}

	err = m.store.Transactions.TransitionStatus(ctx, id, domain.StatusPending, domain.StatusDenied)
	if errors.Is(err, store.ErrStateChanged) {
		return m.refused("deny", id, refuse(domain.ReasonNotPending, "Transaction is not pending approval")), nil
	}
	if err != nil {
		return m.failed("deny", id, Result{}, err)
	}
	t.Status = domain.StatusDenied

	m.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"user_id":        t.UserID,
		"book_id":        t.BookID,
		"admin_id":       sess.UserID,
	}).Info("Book request denied")
	m.publish(ctx, events.TypeDenied, t, sess, nil)

	v := m.view(t)
	return Result{Message: "Book request denied", Transaction: &v}, nil
}

// AdminReturn closes an active transaction: the fine is assessed from the issue
// date, the return date is set and one copy goes back on the shelf.
// fineCollected is recorded on the receipt and does not gate the return.
func (m *Manager) AdminReturn(ctx context.Context, sess domain.Session, id uint, fineCollected bool) (Result, error) {
	if res, ok := m.adminOnly(sess); !ok {
		return res, nil
	}

	now := m.now()
	var (
		res     Result
		t       domain.Transaction
		receipt ReturnReceipt
	)
	err := m.store.InTx(ctx, func(s *store.Store) error {
		var err error
		t, err = s.Transactions.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonTransactionNotFound, "Transaction not found")
			return errRefused
		}
		if err != nil {
			return err
		}
		if !t.IsActive() {
			res = refuse(domain.ReasonNotActive, "Book is not currently issued or already returned")
			return errRefused
		}

		fine := m.policy.Assess(t, now)
		receipt = ReturnReceipt{
			ReturnDate:    now,
			OverdueDays:   fine.OverdueDays,
			Fine:          fine.Fine,
			FineCollected: fineCollected,
		}

		err = s.Transactions.SetReturnDate(ctx, id, now)
		if errors.Is(err, store.ErrStateChanged) {
			res = refuse(domain.ReasonNotActive, "Book is not currently issued or already returned")
			return errRefused
		}
		if err != nil {
			return err
		}
		if err := m.restock(ctx, s, t); err != nil {
			return err
		}
		t.ReturnDate = &now
		return nil
	})
	if err != nil {
		return m.failed("return", id, res, err)
	}

	fields := logrus.Fields{
		"transaction_id": id,
		"user_id":        t.UserID,
		"book_id":        t.BookID,
		"admin_id":       sess.UserID,
		"overdue_days":   receipt.OverdueDays,
		"fine":           receipt.Fine,
	}
	if receipt.Fine > 0 {
		fields["fine_collected"] = fineCollected
	}
	m.log.WithFields(fields).Info("Book returned")
	m.invalidateBooks(ctx)
	m.publish(ctx, events.TypeReturned, t, sess, &receipt)

	msg := "Book returned. No fine applicable"
	switch {
	case receipt.Fine > 0 && fineCollected:
		msg = fmt.Sprintf("Book returned. Fine of %.2f collected", receipt.Fine)
	case receipt.Fine > 0:
		msg = fmt.Sprintf("Book returned. Fine of %.2f NOT collected", receipt.Fine)
	}
	v := m.view(t)
	return Result{Message: msg, Transaction: &v, Receipt: &receipt}, nil
}

// DeleteTransaction removes a transaction. Deleting an active one puts its
// copy back on the shelf first, in the same database transaction.
func (m *Manager) DeleteTransaction(ctx context.Context, sess domain.Session, id uint) (Result, error) {
	if res, ok := m.adminOnly(sess); !ok {
		return res, nil
	}
	if id == 0 {
		return refuse(domain.ReasonInvalidInput, "Invalid transaction ID"), nil
	}

	var (
		res       Result
		t         domain.Transaction
		restocked bool
	)
	err := m.store.InTx(ctx, func(s *store.Store) error {
		var err error
		t, err = s.Transactions.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonTransactionNotFound, "Transaction not found")
			return errRefused
		}
		if err != nil {
			return err
		}
		if t.IsActive() {
			if err := m.restock(ctx, s, t); err != nil {
				return err
			}
			restocked = true
		}
		err = s.Transactions.Delete(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			res = refuse(domain.ReasonTransactionNotFound, "Transaction not found")
			return errRefused
		}
		return err
	})
	if err != nil {
		return m.failed("delete", id, res, err)
	}

	m.log.WithFields(logrus.Fields{
		"transaction_id": id,
		"book_id":        t.BookID,
		"admin_id":       sess.UserID,
		"restocked":      restocked,
	}).Info("Transaction deleted")
	if restocked {
		m.invalidateBooks(ctx)
	}
	m.publish(ctx, events.TypeDeleted, t, sess, nil)

	return Result{Message: "Transaction deleted"}, nil
}

// restock puts a copy back. A book that no longer exists is skipped.
func (m *Manager) restock(ctx context.Context, s *store.Store, t domain.Transaction) error {
	err := s.Books.Increment(ctx, t.BookID)
	if errors.Is(err, store.ErrNotFound) {
		m.log.WithFields(logrus.Fields{"transaction_id": t.ID, "book_id": t.BookID}).
			Warn("Book missing while restocking")
		return nil
	}
	if err == nil && t.Book != nil {
		t.Book.Quantity++
	}
	return err
}

func (m *Manager) adminOnly(sess domain.Session) (Result, bool) {
	if !sess.IsAdmin() {
		return refuse(domain.ReasonForbidden, "Admin access required"), false
	}
	return Result{}, true
}

// failed sorts an InTx error into a refusal or an infrastructure error
func (m *Manager) failed(op string, id uint, res Result, err error) (Result, error) {
	if errors.Is(err, errRefused) {
		return m.refused(op, id, res), nil
	}
	m.log.WithFields(logrus.Fields{
		"op":             op,
		"transaction_id": id,
		"error":          err.Error(),
	}).Error("Lending operation failed")
	return Result{}, fmt.Errorf("%s transaction %d: %w", op, id, err)
}

func (m *Manager) refused(op string, id uint, res Result) Result {
	m.logRefusal(op, res, logrus.Fields{"transaction_id": id})
	return res
}

func (m *Manager) logRefusal(op string, res Result, fields logrus.Fields) {
	fields["op"] = op
	fields["reason"] = res.Reason
	m.log.WithFields(fields).Warn(res.Message)
}

func (m *Manager) invalidateBooks(ctx context.Context) {
	if m.cache != nil {
		m.cache.InvalidateBooks(ctx)
	}
}

func (m *Manager) publish(ctx context.Context, typ string, t domain.Transaction, sess domain.Session, r *ReturnReceipt) {
	ev := events.NewTransactionEvent(typ, m.now())
	ev.TransactionID = t.ID
	ev.UserID = t.UserID
	ev.BookID = t.BookID
	ev.Status = string(t.Status)
	ev.ActorID = sess.UserID
	if r != nil {
		ev.OverdueDays = r.OverdueDays
		ev.Fine = r.Fine
		ev.FineCollected = r.FineCollected
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.log.WithFields(logrus.Fields{"event": typ, "transaction_id": t.ID, "error": err.Error()}).
			Warn("Event publish failed")
	}
}

func (m *Manager) view(t domain.Transaction) View {
	v := View{Transaction: t, Fine: m.policy.Assess(t, m.now())}
	if t.User != nil {
		v.UserName = t.User.Name
	} else {
		v.UserName = fmt.Sprintf("User ID: %d", t.UserID)
	}
	if t.Book != nil {
		v.BookTitle = t.Book.Title
		v.BookAuthor = t.Book.Author
	} else {
		v.BookTitle = fmt.Sprintf("Book ID: %d", t.BookID)
	}
	return v
}
