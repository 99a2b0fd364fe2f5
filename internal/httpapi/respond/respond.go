// Package respond is the one place every handler formats a response,
// grounded on the teacher's recurring `gin.H{"status": "success", "data": ...}`
// idiom (internal/api/handlers/*.go), generalized into the envelope spec.md
// §6 requires: `{data, pagination:{total,limit,offset,hasMore}, filters}`
// for list endpoints and `{data}` for everything else.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/pkg/apierr"
)

// OK writes a single-resource success envelope.
func OK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"status": "success", "data": data})
}

// Pagination is the shape every list response nests under "pagination".
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// List writes the paginated envelope. filters is whatever query parameters
// the caller applied, echoed back so a client can confirm what was honored.
func List(c *gin.Context, data interface{}, total int64, limit, offset int, filters gin.H) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   data,
		"pagination": Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+limit) < total,
		},
		"filters": filters,
	})
}

// Error maps an apierr.Kind to its HTTP status and writes the error
// envelope; any other error is treated as Internal. This is the sole place
// in the HTTP layer that inspects a Kind (spec.md §7: "map Kind to a status
// code once, at the edge").
func Error(c *gin.Context, err error) {
	ae, ok := err.(*apierr.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": gin.H{"message": err.Error()}})
		return
	}
	body := gin.H{"message": ae.Message}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	c.JSON(apierr.StatusCode(ae.Kind), gin.H{"status": "error", "error": body})
}

// Pair parses limit/offset query params with spec-wide defaults.
func Pair(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v := c.Query("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			offset = n
		}
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, apierr.New(apierr.Validation, "expected a non-negative integer")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
