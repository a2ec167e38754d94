package sessionkit

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MountAuthRoutes registers the session endpoints: signup, login, logout,
// refresh-token, profile, and (when a validator and client ID are configured)
// Google sign-in.
func MountAuthRoutes(router gin.IRouter, configuration ServerConfig, users UserStore, manager *SessionManager, logger *zap.Logger, metrics MetricsRecorder, googleValidator GoogleTokenValidator) {
	if users == nil {
		panic("user store is required")
	}
	if manager == nil {
		panic("session manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	router.POST("/api/auth/signup", func(contextGin *gin.Context) {
		var inbound struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if strings.TrimSpace(inbound.Name) == "" || strings.TrimSpace(inbound.Email) == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "https_required"})
			return
		}

		user, createErr := users.Create(contextGin, inbound.Name, inbound.Email, inbound.Password)
		if createErr != nil {
			if errors.Is(createErr, ErrUserAlreadyExists) {
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_exists"})
				return
			}
			logger.Error("signup user create failed",
				zap.String("code", "auth.signup.create_failed"),
				zap.Error(createErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		pair, issueErr := manager.Issue(contextGin, user.ID)
		if issueErr != nil {
			logger.Error("signup session issue failed",
				zap.String("code", "auth.signup.issue_failed"),
				zap.Error(issueErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		writeSessionCookies(contextGin, configuration, pair)
		metrics.Increment(metricAuthSignupSuccess)
		contextGin.JSON(http.StatusCreated, gin.H{"user": user})
	})

	router.POST("/api/auth/login", func(contextGin *gin.Context) {
		var inbound struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if strings.TrimSpace(inbound.Email) == "" || inbound.Password == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "https_required"})
			return
		}

		user, authErr := users.Authenticate(contextGin, inbound.Email, inbound.Password)
		if authErr != nil {
			if errors.Is(authErr, ErrInvalidCredentials) {
				metrics.Increment(metricAuthLoginFailure)
				contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_credentials"})
				return
			}
			logger.Error("login lookup failed",
				zap.String("code", "auth.login.lookup_failed"),
				zap.Error(authErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		pair, issueErr := manager.Issue(contextGin, user.ID)
		if issueErr != nil {
			logger.Error("login session issue failed",
				zap.String("code", "auth.login.issue_failed"),
				zap.Error(issueErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		writeSessionCookies(contextGin, configuration, pair)
		metrics.Increment(metricAuthLoginSuccess)
		contextGin.JSON(http.StatusOK, user)
	})

	router.POST("/api/auth/logout", func(contextGin *gin.Context) {
		refreshCookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
		if cookieErr == nil && refreshCookie != nil {
			manager.Revoke(contextGin, refreshCookie.Value)
		}
		clearCookie(contextGin, configuration, configuration.AccessCookieName, "/")
		clearCookie(contextGin, configuration, configuration.RefreshCookieName, refreshCookiePath)
		metrics.Increment(metricAuthLogoutSuccess)
		contextGin.JSON(http.StatusOK, gin.H{"message": "logout successful"})
	})

	router.POST("/api/auth/refresh-token", func(contextGin *gin.Context) {
		refreshCookie, cookieErr := contextGin.Request.Cookie(configuration.RefreshCookieName)
		if cookieErr != nil || refreshCookie == nil || strings.TrimSpace(refreshCookie.Value) == "" {
			metrics.Increment(metricAuthRefreshFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		accessToken, accessExpiresAt, rotateErr := manager.Rotate(contextGin, refreshCookie.Value)
		if rotateErr != nil {
			if errors.Is(rotateErr, ErrStoreUnavailable) {
				logger.Error("refresh rejected by store outage",
					zap.String("code", "auth.refresh.store_unavailable"),
					zap.Error(rotateErr))
				contextGin.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			metrics.Increment(metricAuthRefreshFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token"})
			return
		}

		writeAccessCookie(contextGin, configuration, accessToken, accessExpiresAt)
		metrics.Increment(metricAuthRefreshSuccess)
		contextGin.JSON(http.StatusOK, gin.H{"message": "token refreshed"})
	})

	router.GET("/api/auth/profile", RequireAccess(configuration, manager.Codec()), func(contextGin *gin.Context) {
		identity, found := IdentityFromContext(contextGin)
		if !found {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		user, profileErr := users.GetProfile(contextGin, identity)
		if profileErr != nil {
			if errors.Is(profileErr, ErrUserNotFound) {
				contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown_identity"})
				return
			}
			logger.Error("profile lookup failed",
				zap.String("code", "auth.profile.lookup_failed"),
				zap.String("identity", identity),
				zap.Error(profileErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		contextGin.JSON(http.StatusOK, user)
	})

	if googleValidator != nil && strings.TrimSpace(configuration.GoogleWebClientID) != "" {
		mountGoogleSignIn(router, configuration, users, manager, logger, metrics, googleValidator)
	}
}

func mountGoogleSignIn(router gin.IRouter, configuration ServerConfig, users UserStore, manager *SessionManager, logger *zap.Logger, metrics MetricsRecorder, googleValidator GoogleTokenValidator) {
	router.POST("/api/auth/google", func(contextGin *gin.Context) {
		var inbound struct {
			GoogleIDToken string `json:"google_id_token"`
		}
		if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.GoogleIDToken) == "" {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
			return
		}
		if !configuration.AllowInsecureHTTP && !isHTTPS(contextGin.Request) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "https_required"})
			return
		}

		payload, validateErr := googleValidator.Validate(contextGin, inbound.GoogleIDToken, configuration.GoogleWebClientID)
		if validateErr != nil {
			metrics.Increment(metricAuthLoginFailure)
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_google_token"})
			return
		}
		issuerValue, okIssuer := payload.Claims["iss"].(string)
		if !okIssuer || (issuerValue != "https://accounts.google.com" && issuerValue != "accounts.google.com") {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_issuer"})
			return
		}
		googleSub, _ := payload.Claims["sub"].(string)
		userEmail, _ := payload.Claims["email"].(string)
		emailVerified, _ := payload.Claims["email_verified"].(bool)
		userDisplayName, _ := payload.Claims["name"].(string)
		if googleSub == "" || userEmail == "" || !emailVerified {
			contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unverified_identity"})
			return
		}

		user, upsertErr := users.UpsertGoogleUser(contextGin, googleSub, userEmail, userDisplayName)
		if upsertErr != nil || user.ID == "" {
			logger.Error("google upsert failed",
				zap.String("code", "auth.google.upsert_failed"),
				zap.Error(upsertErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		pair, issueErr := manager.Issue(contextGin, user.ID)
		if issueErr != nil {
			logger.Error("google session issue failed",
				zap.String("code", "auth.google.issue_failed"),
				zap.Error(issueErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		writeSessionCookies(contextGin, configuration, pair)
		metrics.Increment(metricAuthLoginSuccess)
		contextGin.JSON(http.StatusOK, user)
	})
}

// refreshCookiePath keeps the long-lived credential off every request except
// the auth endpoints that actually need it.
const refreshCookiePath = "/api/auth"

func writeSessionCookies(contextGin *gin.Context, configuration ServerConfig, pair TokenPair) {
	writeAccessCookie(contextGin, configuration, pair.AccessToken, pair.AccessExpiresAt)
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Domain:   configuration.CookieDomain,
		Expires:  pair.RefreshExpiresAt,
		MaxAge:   int(configuration.RefreshTTL / time.Second),
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func writeAccessCookie(contextGin *gin.Context, configuration ServerConfig, accessToken string, expiresAt time.Time) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     configuration.AccessCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(configuration.AccessTTL / time.Second),
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearCookie(contextGin *gin.Context, configuration ServerConfig, name string, path string) {
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   !configuration.AllowInsecureHTTP,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func isHTTPS(request *http.Request) bool {
	if request.TLS != nil {
		return true
	}
	scheme := request.Header.Get("X-Forwarded-Proto")
	if strings.EqualFold(scheme, "https") {
		return true
	}
	forwarded := request.Header.Get("Forwarded")
	if forwarded != "" && strings.Contains(strings.ToLower(forwarded), "proto=https") {
		return true
	}
	host, _, splitErr := net.SplitHostPort(request.Host)
	if splitErr == nil && host == "localhost" {
		return true
	}
	return false
}
