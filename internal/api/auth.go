package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"library_system/internal/accounts"
	"library_system/internal/domain"
)

// LoginRequest is the login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Email must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse carries the session token
type AuthResponse struct {
	Token string      `json:"token"` // JWT token
	User  domain.User `json:"user"`  // Logged in user
}

// ChangePasswordRequest is the body of PUT /me/password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		token, user, err := acc.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err) // Invalid credentials or store failure
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, User: user})
	}
}

// MeHandler returns the caller's account
func MeHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := acc.GetUser(c.Request.Context(), currentSession(c).UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// ChangePasswordHandler changes the caller's password
func ChangePasswordHandler(acc *accounts.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		if err := acc.ChangePassword(c.Request.Context(), currentSession(c), req.OldPassword, req.NewPassword); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
	}
}
