package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Flash categories
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

const (
	flashCookie     = "pettycash_flash"
	flashContextKey = "flashes"
	flashMaxAge     = 60
)

// Flash is a one-shot message shown on the next rendered page
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash queues a message for the next page this client renders.
func addFlash(c *gin.Context, category, message string) {
	flashes := pendingFlashes(c)
	flashes = append(flashes, Flash{Category: category, Message: message})
	c.Set(flashContextKey, flashes)

	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	setFlashCookie(c, base64.RawURLEncoding.EncodeToString(raw), flashMaxAge)
}

// takeFlashes returns every queued message and clears them.
func takeFlashes(c *gin.Context) []Flash {
	flashes := pendingFlashes(c)
	c.Set(flashContextKey, []Flash{})
	setFlashCookie(c, "", -1)
	return flashes
}

// pendingFlashes starts from the incoming cookie and includes messages added during this request.
func pendingFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashContextKey); ok {
		if flashes, ok := v.([]Flash); ok {
			return flashes
		}
	}
	var flashes []Flash
	if v, err := c.Cookie(flashCookie); err == nil && v != "" {
		if raw, err := base64.RawURLEncoding.DecodeString(v); err == nil {
			_ = json.Unmarshal(raw, &flashes)
		}
	}
	c.Set(flashContextKey, flashes)
	return flashes
}

func setFlashCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
