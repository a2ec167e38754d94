package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ecomkit/storefront/internal/credstorepg"
	"github.com/ecomkit/storefront/internal/identity"
	"github.com/ecomkit/storefront/internal/sessionkit"
	"github.com/ecomkit/storefront/internal/web"
	webassets "github.com/ecomkit/storefront/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGoogleTokenValidator = func(ctx context.Context) (sessionkit.GoogleTokenValidator, error) {
	return sessionkit.NewGoogleTokenValidator(ctx)
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "storefront",
		Short:   "Storefront backend with JWT session issuance, refresh-token rotation, and cart APIs",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only")
	rootCmd.Flags().String("access_token_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 signing secret for refresh tokens")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow insecure HTTP for local dev")
	rootCmd.Flags().String("redis_url", "", "Redis URL for refresh credentials (leave empty for in-memory store)")
	rootCmd.Flags().String("database_url", "", "Database URL for users and carts (postgres:// or sqlite://; leave empty for in-memory stores)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin clients (required to set SameSite=None cookies)")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")
	rootCmd.Flags().String("google_web_client_id", "", "Google Web OAuth Client ID (enables Google sign-in when set)")

	_ = viper.BindPFlag("listen_addr", rootCmd.Flags().Lookup("listen_addr"))
	_ = viper.BindPFlag("cookie_domain", rootCmd.Flags().Lookup("cookie_domain"))
	_ = viper.BindPFlag("access_token_secret", rootCmd.Flags().Lookup("access_token_secret"))
	_ = viper.BindPFlag("refresh_token_secret", rootCmd.Flags().Lookup("refresh_token_secret"))
	_ = viper.BindPFlag("access_ttl", rootCmd.Flags().Lookup("access_ttl"))
	_ = viper.BindPFlag("refresh_ttl", rootCmd.Flags().Lookup("refresh_ttl"))
	_ = viper.BindPFlag("dev_insecure_http", rootCmd.Flags().Lookup("dev_insecure_http"))
	_ = viper.BindPFlag("redis_url", rootCmd.Flags().Lookup("redis_url"))
	_ = viper.BindPFlag("database_url", rootCmd.Flags().Lookup("database_url"))
	_ = viper.BindPFlag("enable_cors", rootCmd.Flags().Lookup("enable_cors"))
	_ = viper.BindPFlag("cors_allowed_origins", rootCmd.Flags().Lookup("cors_allowed_origins"))
	_ = viper.BindPFlag("google_web_client_id", rootCmd.Flags().Lookup("google_web_client_id"))

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
	tokenIssuer       = "storefront"

	configCodeMissingAccessSecret     = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret    = "config.missing_refresh_token_secret"
	configCodeIdenticalSecrets        = "config.identical_token_secrets"
	configCodeInvalidAccessTTL        = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL       = "config.invalid_refresh_ttl"
	configCodeUninitializedServerConf = "config.uninitialized_server_config"
	configCodeGoogleValidatorInit     = "config.google_validator_init"
	configCodeInvalidRedisURL         = "config.invalid_redis_url"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (sessionkit.ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}

	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}
	if accessSecret == refreshSecret {
		return sessionkit.ServerConfig{}, configError(configCodeIdenticalSecrets, "access and refresh secrets must differ so tokens cannot stand in for each other")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	return sessionkit.ServerConfig{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		TokenIssuer:        tokenIssuer,
		AccessCookieName:   accessCookieName,
		RefreshCookieName:  refreshCookieName,
		CookieDomain:       viper.GetString("cookie_domain"),
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		GoogleWebClientID:  viper.GetString("google_web_client_id"),
	}, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(sessionkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	devInsecureHTTP := viper.GetBool("dev_insecure_http")
	redisURL := viper.GetString("redis_url")
	databaseURL := viper.GetString("database_url")
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	serverConfig.AllowInsecureHTTP = devInsecureHTTP
	serverConfig.SameSiteMode = http.SameSiteStrictMode
	if enableCORS {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	router.GET("/static/storefront-client.js", func(contextGin *gin.Context) {
		web.ServeEmbeddedStaticJS(contextGin, webassets.FS, "storefront-client.js")
	})
	router.GET("/config.js", func(contextGin *gin.Context) {
		web.ServeClientConfig(contextGin, web.ClientConfig{
			GoogleClientID: serverConfig.GoogleWebClientID,
		})
	})

	credentialStore, credentialErr := buildCredentialStore(command.Context(), logger, redisURL, databaseURL)
	if credentialErr != nil {
		return credentialErr
	}

	userStore, cartStore, storeErr := buildUserAndCartStores(command.Context(), logger, databaseURL)
	if storeErr != nil {
		return storeErr
	}

	codec, codecErr := sessionkit.NewTokenCodec(serverConfig, nil)
	if codecErr != nil {
		return codecErr
	}
	metricsRecorder := sessionkit.NewCounterMetrics()
	manager := sessionkit.NewSessionManager(codec, credentialStore, logger, metricsRecorder)

	var googleValidator sessionkit.GoogleTokenValidator
	if serverConfig.GoogleWebClientID != "" {
		validator, validatorErr := buildGoogleTokenValidator(command.Context())
		if validatorErr != nil {
			return fmt.Errorf("%s: %w", configCodeGoogleValidatorInit, validatorErr)
		}
		googleValidator = validator
	}

	sessionkit.MountAuthRoutes(router, serverConfig, userStore, manager, logger, metricsRecorder, googleValidator)
	web.MountCartRoutes(router, serverConfig, codec, cartStore, logger)

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

// buildCredentialStore picks the refresh-credential backend: Redis when a URL
// is configured, Postgres when the database URL speaks postgres, otherwise an
// in-process map.
func buildCredentialStore(ctx context.Context, logger *zap.Logger, redisURL string, databaseURL string) (sessionkit.CredentialStore, error) {
	if redisURL != "" {
		options, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("%s: %w", configCodeInvalidRedisURL, parseErr)
		}
		client := redis.NewClient(options)
		logger.Info("using redis refresh credential store", zap.String("addr", options.Addr))
		return sessionkit.NewRedisCredentialStore(client), nil
	}
	if isPostgresURL(databaseURL) {
		pool, poolErr := credstorepg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, poolErr
		}
		if schemaErr := credstorepg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, schemaErr
		}
		logger.Info("using postgres refresh credential store")
		return credstorepg.NewPostgresCredentialStore(pool), nil
	}
	logger.Info("using in-memory refresh credential store")
	return sessionkit.NewMemoryCredentialStore(), nil
}

func buildUserAndCartStores(ctx context.Context, logger *zap.Logger, databaseURL string) (sessionkit.UserStore, web.CartStore, error) {
	if databaseURL == "" {
		logger.Info("using in-memory user and cart stores")
		return identity.NewMemoryUserStore(), web.NewMemoryCartStore(), nil
	}
	userStore, userErr := identity.NewDatabaseUserStore(ctx, databaseURL)
	if userErr != nil {
		return nil, nil, userErr
	}
	cartStore, cartErr := web.NewDatabaseCartStore(ctx, userStore.Gorm())
	if cartErr != nil {
		return nil, nil, cartErr
	}
	logger.Info("using persistent user and cart stores", zap.String("driver", userStore.Driver()))
	return userStore, cartStore, nil
}

func isPostgresURL(databaseURL string) bool {
	if databaseURL == "" {
		return false
	}
	parsed, parseErr := url.Parse(databaseURL)
	if parseErr != nil {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
