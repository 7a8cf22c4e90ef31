package handler

import (
	"net/http"

	"github.com/fabseal/fabseal/internal/requestid"
	"github.com/gin-gonic/gin"
)

const (
	// RequestIDCookie carries the hex request id between calls
	RequestIDCookie = "request-id"
	cookiePath      = "/api/v1"
)

// requestID returns the id from the cookie, if present and well formed
func requestID(c *gin.Context) (requestid.ID, bool) {
	raw, err := c.Cookie(RequestIDCookie)
	if err != nil {
		return 0, false
	}
	id, err := requestid.Parse(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

// setRequestID stores id in the session cookie
func (h *CreateHandler) setRequestID(c *gin.Context, id requestid.ID) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(RequestIDCookie, id.String(), int(h.sessionTTL.Seconds()), cookiePath, "", h.secureCookie, true)
}

// mintRequestID starts a new request, replacing any id in the cookie
func (h *CreateHandler) mintRequestID(c *gin.Context) requestid.ID {
	id := requestid.New()
	h.setRequestID(c, id)
	return id
}

// ensureRequestID returns the cookie id or mints and sets a new one
func (h *CreateHandler) ensureRequestID(c *gin.Context) requestid.ID {
	if id, ok := requestID(c); ok {
		return id
	}
	return h.mintRequestID(c)
}
