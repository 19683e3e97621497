package lending

import (
	"context"
	"errors"

	"library_system/internal/domain"
	"library_system/internal/store"
)

// Get returns one transaction. Users may only see their own.
func (m *Manager) Get(ctx context.Context, sess domain.Session, id uint) (View, error) {
	t, err := m.store.Transactions.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return View{}, domain.Fail(domain.ReasonTransactionNotFound, "Transaction not found")
	}
	if err != nil {
		return View{}, err
	}
	if !sess.IsAdmin() && t.UserID != sess.UserID {
		return View{}, domain.Fail(domain.ReasonTransactionNotFound, "Transaction not found")
	}
	return m.view(t), nil
}

// List returns every transaction, newest first
func (m *Manager) List(ctx context.Context, sess domain.Session) ([]View, error) {
	if !sess.IsAdmin() {
		return nil, domain.Fail(domain.ReasonForbidden, "Admin access required")
	}
	return m.views(m.store.Transactions.List(ctx))
}

// ListByStatus returns transactions in one status
func (m *Manager) ListByStatus(ctx context.Context, sess domain.Session, status domain.Status) ([]View, error) {
	if !sess.IsAdmin() {
		return nil, domain.Fail(domain.ReasonForbidden, "Admin access required")
	}
	return m.views(m.store.Transactions.ListByStatus(ctx, status))
}

// ListByUser returns the history of one borrower
func (m *Manager) ListByUser(ctx context.Context, sess domain.Session, userID uint) ([]View, error) {
	if !sess.IsAdmin() && sess.UserID != userID {
		return nil, domain.Fail(domain.ReasonForbidden, "Cannot view another user's transactions")
	}
	return m.views(m.store.Transactions.ListByUser(ctx, userID))
}

// ListActiveByUser returns the books a borrower currently holds, with fines
func (m *Manager) ListActiveByUser(ctx context.Context, sess domain.Session, userID uint) ([]View, error) {
	if !sess.IsAdmin() && sess.UserID != userID {
		return nil, domain.Fail(domain.ReasonForbidden, "Cannot view another user's transactions")
	}
	return m.views(m.store.Transactions.ListActiveByUser(ctx, userID))
}

// IssuedWithFines lists every book currently issued and totals the fines
// owed as of now.
func (m *Manager) IssuedWithFines(ctx context.Context, sess domain.Session) (IssuedReport, error) {
	if !sess.IsAdmin() {
		return IssuedReport{}, domain.Fail(domain.ReasonForbidden, "Admin access required")
	}
	vs, err := m.views(m.store.Transactions.ListActive(ctx))
	if err != nil {
		return IssuedReport{}, err
	}
	r := IssuedReport{Transactions: vs, TotalIssued: len(vs)}
	for _, v := range vs {
		if v.Fine.IsOverdue {
			r.OverdueCount++
			r.TotalFines += v.Fine.Fine
		}
	}
	return r, nil
}

// HasActiveRequest reports whether the user has a pending or issued copy of
// the book
func (m *Manager) HasActiveRequest(ctx context.Context, userID, bookID uint) (bool, error) {
	return m.store.Transactions.HasActiveRequest(ctx, userID, bookID)
}

// Stats counts transactions for the admin dashboard
func (m *Manager) Stats(ctx context.Context) (store.LendingStats, error) {
	return m.store.Transactions.Stats(ctx)
}

func (m *Manager) views(txs []domain.Transaction, err error) ([]View, error) {
	if err != nil {
		return nil, err
	}
	vs := make([]View, 0, len(txs))
	for _, t := range txs {
		vs = append(vs, m.view(t))
	}
	return vs, nil
}
