package api

import (
	"errors"
	"io"
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"library_system/internal/domain"
	"library_system/internal/lending"
)

// IssueRequest is the body of POST /transactions
type IssueRequest struct {
	BookID uint `json:"book_id" binding:"required"` // Book to borrow
}

// ReturnRequest is the body of POST /admin/transactions/:id/return
type ReturnRequest struct {
	FineCollected bool `json:"fine_collected"` // Recorded on the receipt only
}

// RequestIssueHandler files a borrow request for the caller
func RequestIssueHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IssueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		sess := currentSession(c)
		res, err := lm.RequestIssue(c.Request.Context(), sess, sess.UserID, req.BookID)
		respondResult(c, http.StatusCreated, res, err)
	}
}

// MyTransactionsHandler lists the caller's transactions; active=true limits
// the list to books currently held
func MyTransactionsHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		var (
			views []lending.View
			err   error
		)
		if c.Query("active") == "true" {
			views, err = lm.ListActiveByUser(c.Request.Context(), sess, sess.UserID)
		} else {
			views, err = lm.ListByUser(c.Request.Context(), sess, sess.UserID)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paginate(c, "transactions", views))
	}
}

// ListTransactionsHandler lists every transaction, optionally by status or user
func ListTransactionsHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, sess := c.Request.Context(), currentSession(c)
		var (
			views []lending.View
			err   error
		)
		switch {
		case c.Query("status") != "":
			status, ok := domain.ParseStatus(c.Query("status"))
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be PENDING, APPROVED or DENIED", "reason": domain.ReasonInvalidInput})
				return
			}
			views, err = lm.ListByStatus(ctx, sess, status)
		case c.Query("user_id") != "":
			userID, ok := parseID(c, "user_id", c.Query("user_id"))
			if !ok {
				return
			}
			views, err = lm.ListByUser(ctx, sess, userID)
		default:
			views, err = lm.List(ctx, sess)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paginate(c, "transactions", views))
	}
}

// GetTransactionHandler returns one transaction with its fine position
func GetTransactionHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		v, err := lm.Get(c.Request.Context(), currentSession(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// IssuedBooksHandler lists books currently out with fines owed as of today
func IssuedBooksHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := lm.IssuedWithFines(c.Request.Context(), currentSession(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// ApproveHandler approves a pending request
func ApproveHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		res, err := lm.Approve(c.Request.Context(), currentSession(c), id)
		respondResult(c, http.StatusOK, res, err)
	}
}

// DenyHandler denies a pending request
func DenyHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		res, err := lm.Deny(c.Request.Context(), currentSession(c), id)
		respondResult(c, http.StatusOK, res, err)
	}
}

// ReturnHandler accepts an issued copy back and reports the fine
func ReturnHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ReturnRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) { // An empty body means no fine was collected
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		res, err := lm.AdminReturn(c.Request.Context(), currentSession(c), id, req.FineCollected)
		respondResult(c, http.StatusOK, res, err)
	}
}

// DeleteTransactionHandler removes a transaction, restocking an issued copy
func DeleteTransactionHandler(lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		res, err := lm.DeleteTransaction(c.Request.Context(), currentSession(c), id)
		respondResult(c, http.StatusOK, res, err)
	}
}
