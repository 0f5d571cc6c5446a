package httputil

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/mailqueue/internal/errors"
)

// PageBounds configures ParsePagination. Default applies when limit is absent.
type PageBounds struct {
	Default int
	Max     int
}

// ParsePagination reads the offset and limit query parameters. Offset defaults to 0 and
// limit to bounds.Default; a limit outside 1..bounds.Max is rejected. Errors wrap
// apperrors.ErrInvalidInput.
func ParsePagination(c *gin.Context, bounds PageBounds) (offset, limit int, err error) {
	offset, err = queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalidInput,
			"invalid offset parameter: must be a non-negative integer")
	}

	limit, err = queryInt(c, "limit", bounds.Default)
	if err != nil || limit < 1 || limit > bounds.Max {
		return 0, 0, apperrors.Wrapf(apperrors.ErrInvalidInput,
			"invalid limit parameter: must be between 1 and %d", bounds.Max)
	}

	return offset, limit, nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
