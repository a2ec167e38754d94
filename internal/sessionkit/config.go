package sessionkit

import (
	"net/http"
	"time"
)

// ServerConfig carries the process-wide session settings: the two signing
// secrets, token lifetimes, and cookie delivery attributes. It is constructed
// once at startup and passed explicitly; nothing reads it from globals.
type ServerConfig struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	TokenIssuer        string
	AccessCookieName   string
	RefreshCookieName  string
	CookieDomain       string
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	SameSiteMode       http.SameSite
	AllowInsecureHTTP  bool
	GoogleWebClientID  string
}
