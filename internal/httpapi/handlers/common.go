package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/arenahq/bot-arena/pkg/apierr"
)

func idString(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// pathID parses a uint path parameter, used by every :id/:botId/:userId route.
func pathID(c *gin.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, apierr.NewValidation(apierr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return uint(n), nil
}

func pathIDFromQuery(raw string) (uint, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apierr.NewValidation(apierr.FieldError{Field: "bot_id", Message: "must be a positive integer"})
	}
	return uint(n), nil
}
