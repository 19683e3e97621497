package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"library_system/internal/catalog"
	"library_system/internal/domain"
)

// QuantityRequest is the body of PATCH /admin/books/:id/quantity
type QuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"` // New shelf count, may be 0
}

// ListBooksHandler lists or searches the catalog.
// Query: q (any field), title, author, category, available=true.
func ListBooksHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		books, err := cat.Search(c.Request.Context(), catalog.Query{
			Term:          c.Query("q"),
			Title:         c.Query("title"),
			Author:        c.Query("author"),
			Category:      c.Query("category"),
			AvailableOnly: c.Query("available") == "true",
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paginate(c, "books", books))
	}
}

// GetBookHandler returns one book
func GetBookHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		b, err := cat.GetBook(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// CreateBookHandler adds a book
func CreateBookHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in catalog.BookInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		b, err := cat.CreateBook(c.Request.Context(), currentSession(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

// UpdateBookHandler replaces a book's details
func UpdateBookHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var in catalog.BookInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "reason": domain.ReasonInvalidInput})
			return
		}
		b, err := cat.UpdateBook(c.Request.Context(), currentSession(c), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// UpdateQuantityHandler sets the shelf count of a book
func UpdateQuantityHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req QuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Quantity is required", "reason": domain.ReasonInvalidInput})
			return
		}
		b, err := cat.UpdateQuantity(c.Request.Context(), currentSession(c), id, *req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, b)
	}
}

// DeleteBookHandler removes a book
func DeleteBookHandler(cat *catalog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := cat.DeleteBook(c.Request.Context(), currentSession(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
	}
}
