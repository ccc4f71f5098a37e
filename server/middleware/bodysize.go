package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const defaultMaxBodySize = 10 * 1024 * 1024 // 10MB

// ParseSize parses sizes such as "10MB", "512KB", "1GB" or a plain byte
// count. An empty string yields the default.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultMaxBodySize, nil
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return val * multiplier, nil
}

// BodySizeLimit restricts request bodies to maxSize. Invalid sizes fall back
// to 10MB.
func BodySizeLimit(maxSize string) gin.HandlerFunc {
	size, err := ParseSize(maxSize)
	if err != nil {
		size = defaultMaxBodySize
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, size)
		c.Next()
	}
}
