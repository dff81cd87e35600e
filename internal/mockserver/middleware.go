package mockserver

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxAPIKey = "api_key"

// errorResponse matches the flat error body the API returns
type errorResponse struct {
	Object  string `json:"object"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    *int   `json:"code"`
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Object:  "error",
		Message: message,
		Type:    errorType(status),
	})
}

func errorType(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// BearerAuth rejects requests whose bearer token does not match apiKey.
// An empty apiKey accepts any non-empty token.
func BearerAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if apiKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			abortWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}

		c.Set(ctxAPIKey, token)
		c.Next()
	}
}

// Instrument records every request on m
func Instrument(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// CORS lets browser clients call the mock API from any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			origin = "*"
		}

		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept, Cache-Control")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
