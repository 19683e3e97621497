package api

import (
	"github.com/gin-gonic/gin" // Gin web framework

	"library_system/internal/accounts"
	"library_system/internal/catalog"
	"library_system/internal/lending"
	"library_system/internal/middleware"
)

// Deps are the services the handlers run on
type Deps struct {
	Accounts     *accounts.Service
	Catalog      *catalog.Service
	Lending      *lending.Manager
	JWTSecret    string
	LoginLimiter *middleware.RateLimiter // nil disables login rate limiting
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Auth routes
	login := []gin.HandlerFunc{LoginHandler(d.Accounts)}
	if d.LoginLimiter != nil {
		login = append([]gin.HandlerFunc{d.LoginLimiter.Middleware()}, login...)
	}
	r.POST("/auth/login", login...) // Login endpoint

	// Routes for any logged in user
	auth := r.Group("")
	auth.Use(middleware.JWTAuthMiddleware(d.JWTSecret, d.Accounts))
	auth.GET("/me", MeHandler(d.Accounts))                          // Current account
	auth.PUT("/me/password", ChangePasswordHandler(d.Accounts))     // Change own password
	auth.GET("/me/transactions", MyTransactionsHandler(d.Lending))  // Own history, ?active=true
	auth.GET("/books", ListBooksHandler(d.Catalog))                 // Catalog listing and search
	auth.GET("/books/:id", GetBookHandler(d.Catalog))               // One book
	auth.POST("/transactions", RequestIssueHandler(d.Lending))      // Request a book
	auth.GET("/transactions/:id", GetTransactionHandler(d.Lending)) // Own transaction (any for admins)

	// Admin routes (protected, admin only)
	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnlyMiddleware())
	admin.GET("/users", ListUsersHandler(d.Accounts))         // List users, ?role=
	admin.POST("/users", CreateUserHandler(d.Accounts))       // Create user
	admin.GET("/users/:id", GetUserHandler(d.Accounts))       // One user
	admin.PUT("/users/:id", UpdateUserHandler(d.Accounts))    // Edit user
	admin.DELETE("/users/:id", DeleteUserHandler(d.Accounts)) // Delete user

	admin.POST("/books", CreateBookHandler(d.Catalog))                   // Add book
	admin.PUT("/books/:id", UpdateBookHandler(d.Catalog))                // Edit book
	admin.PATCH("/books/:id/quantity", UpdateQuantityHandler(d.Catalog)) // Set shelf count
	admin.DELETE("/books/:id", DeleteBookHandler(d.Catalog))             // Delete book

	admin.GET("/transactions", ListTransactionsHandler(d.Lending))         // All, ?status= or ?user_id=
	admin.GET("/transactions/issued", IssuedBooksHandler(d.Lending))       // Issued books with fines
	admin.POST("/transactions/:id/approve", ApproveHandler(d.Lending))     // Approve request
	admin.POST("/transactions/:id/deny", DenyHandler(d.Lending))           // Deny request
	admin.POST("/transactions/:id/return", ReturnHandler(d.Lending))       // Accept return
	admin.DELETE("/transactions/:id", DeleteTransactionHandler(d.Lending)) // Delete transaction

	admin.GET("/stats", StatsHandler(d.Accounts, d.Catalog, d.Lending)) // Dashboard counts
}
