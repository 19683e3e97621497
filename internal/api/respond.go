package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging

	"library_system/internal/domain"
	"library_system/internal/lending"
	"library_system/internal/middleware"
)

// statusOf maps a refusal reason to its HTTP status
func statusOf(reason domain.Reason) int {
	switch reason.Kind() {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

// respondError writes a refusal with its reason, or logs the error and
// answers 500 for anything else
func respondError(c *gin.Context, err error) {
	if f, ok := domain.AsFailure(err); ok {
		c.JSON(statusOf(f.Reason), gin.H{"error": f.Message, "reason": f.Reason})
		return
	}
	logrus.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
		"error":  err.Error(),
	}).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

// respondResult writes a lifecycle result; refusals use the same body as respondError
func respondResult(c *gin.Context, okStatus int, res lending.Result, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.OK() {
		c.JSON(statusOf(res.Reason), gin.H{"error": res.Message, "reason": res.Reason})
		return
	}
	c.JSON(okStatus, res)
}

// currentSession returns the caller's session; JWTAuthMiddleware guarantees it
// on every protected route
func currentSession(c *gin.Context) domain.Session {
	sess, _ := middleware.Session(c)
	return sess
}

// idParam parses a positive numeric path parameter, answering 400 otherwise
func idParam(c *gin.Context, name string) (uint, bool) {
	return parseID(c, name, c.Param(name))
}

func parseID(c *gin.Context, name, raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "reason": domain.ReasonInvalidInput})
		return 0, false
	}
	return uint(id), true
}

// pageParams reads page and page_size, defaulting to 1 and 20 (max 100)
func pageParams(c *gin.Context) (int, int) {
	page := 1      // Default page number
	pageSize := 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size within limits
		}
	}
	return page, pageSize
}

// paginate slices items for one page and wraps them with paging metadata
func paginate[T any](c *gin.Context, key string, items []T) gin.H {
	page, pageSize := pageParams(c)
	if items == nil {
		items = []T{} // Encode as [] rather than null
	}
	total := len(items)
	start := total
	if page-1 <= total/pageSize { // Compare before multiplying so huge pages cannot overflow
		start = min((page-1)*pageSize, total)
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return gin.H{
		key:           items[start:end],
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": (total + pageSize - 1) / pageSize,
	}
}
