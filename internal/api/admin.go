package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging

	"library_system/internal/accounts"
	"library_system/internal/catalog"
	"library_system/internal/domain"
	"library_system/internal/lending"
	"library_system/internal/store"
)

// ListUsersHandler returns all users, optionally filtered by role
func ListUsersHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := acc.ListUsers(c.Request.Context(), currentSession(c), c.Query("role"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paginate(c, "users", users))
	}
}

// GetUserHandler returns one user
func GetUserHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		u, err := acc.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// CreateUserHandler adds an account
func CreateUserHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in accounts.UserInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		u, err := acc.CreateUser(c.Request.Context(), currentSession(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

// UpdateUserHandler edits an account; an empty password keeps the old one
func UpdateUserHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var in accounts.UserInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		u, err := acc.UpdateUser(c.Request.Context(), currentSession(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// DeleteUserHandler removes an account
func DeleteUserHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := acc.DeleteUser(c.Request.Context(), currentSession(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
	}
}

// StatsResponse is the admin dashboard summary
type StatsResponse struct {
	Users   accounts.Counts    `json:"users"`
	Books   store.CatalogStats `json:"books"`
	Lending store.LendingStats `json:"lending"`
	Policy  domain.LoanPolicy  `json:"policy"`
}

// StatsHandler returns counts across users, books and transactions
func StatsHandler(acc *accounts.Service, cat *catalog.Service, lm *lending.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var (
			resp StatsResponse
			err  error
		)
		if resp.Users, err = acc.Counts(ctx); err != nil {
			respondError(c, err)
			return
		}
		if resp.Books, err = cat.Stats(ctx); err != nil {
			respondError(c, err)
			return
		}
		if resp.Lending, err = lm.Stats(ctx); err != nil {
			respondError(c, err)
			return
		}
		resp.Policy = lm.Policy()
		logrus.WithField("admin_id", currentSession(c).UserID).Debug("Stats requested")
		c.JSON(http.StatusOK, resp)
	}
}
