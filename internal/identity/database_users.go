package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	sqliteDialector "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ecomkit/storefront/internal/sessionkit"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("user_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("user_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("user_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("user_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("user_store.unsupported_no_scheme")
)

const defaultRole = "customer"

// DatabaseUserStore persists application users using GORM.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
	hashCost    int
}

// Driver exposes the selected database driver label.
func (store *DatabaseUserStore) Driver() string {
	return store.driverLabel
}

// Gorm exposes the underlying handle so sibling stores can share one database.
func (store *DatabaseUserStore) Gorm() *gorm.DB {
	return store.db
}

type userRecord struct {
	UserID       string `gorm:"column:user_id;primaryKey"`
	Name         string `gorm:"column:name;not null"`
	Email        string `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null;default:''"`
	GoogleSub    string `gorm:"column:google_sub;index;not null;default:''"`
	Role         string `gorm:"column:role;not null"`
}

func (userRecord) TableName() string {
	return "users"
}

// NewDatabaseUserStore constructs a GORM-backed store.
func NewDatabaseUserStore(ctx context.Context, databaseURL string) (*DatabaseUserStore, error) {
	return NewDatabaseUserStoreWithCost(ctx, databaseURL, bcrypt.DefaultCost)
}

// NewDatabaseUserStoreWithCost constructs a store with an explicit bcrypt cost.
func NewDatabaseUserStoreWithCost(ctx context.Context, databaseURL string, hashCost int) (*DatabaseUserStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("user_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("user_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("user_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseUserStore{
		db:          gormDB,
		driverLabel: driverLabel,
		hashCost:    hashCost,
	}, nil
}

// Create registers a new user with a bcrypt password hash.
func (store *DatabaseUserStore) Create(ctx context.Context, name string, email string, password string) (sessionkit.User, error) {
	normalizedEmail := normalizeEmail(email)
	var existing userRecord
	lookupErr := store.db.WithContext(ctx).Where("email = ?", normalizedEmail).Take(&existing).Error
	if lookupErr == nil {
		return sessionkit.User{}, fmt.Errorf("user_store.create.%s: %w", store.driverLabel, sessionkit.ErrUserAlreadyExists)
	}
	if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return sessionkit.User{}, fmt.Errorf("user_store.create.%s: %w", store.driverLabel, lookupErr)
	}

	passwordHash, hashErr := bcrypt.GenerateFromPassword([]byte(password), store.hashCost)
	if hashErr != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.create.%s: %w", store.driverLabel, hashErr)
	}
	record := userRecord{
		UserID:       uuid.NewString(),
		Name:         name,
		Email:        normalizedEmail,
		PasswordHash: string(passwordHash),
		Role:         defaultRole,
	}
	if err := store.db.WithContext(ctx).Create(&record).Error; err != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.create.%s: %w", store.driverLabel, err)
	}
	return record.toUser(), nil
}

// Authenticate resolves a user by email and verifies the password.
func (store *DatabaseUserStore) Authenticate(ctx context.Context, email string, password string) (sessionkit.User, error) {
	var record userRecord
	err := store.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sessionkit.User{}, fmt.Errorf("user_store.authenticate.%s: %w", store.driverLabel, sessionkit.ErrInvalidCredentials)
		}
		return sessionkit.User{}, fmt.Errorf("user_store.authenticate.%s: %w", store.driverLabel, err)
	}
	if record.PasswordHash == "" {
		return sessionkit.User{}, fmt.Errorf("user_store.authenticate.%s: %w", store.driverLabel, sessionkit.ErrInvalidCredentials)
	}
	if compareErr := bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)); compareErr != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.authenticate.%s: %w", store.driverLabel, sessionkit.ErrInvalidCredentials)
	}
	return record.toUser(), nil
}

// GetProfile returns the user behind an application user id.
func (store *DatabaseUserStore) GetProfile(ctx context.Context, userID string) (sessionkit.User, error) {
	var record userRecord
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sessionkit.User{}, fmt.Errorf("user_store.profile.%s: %w", store.driverLabel, sessionkit.ErrUserNotFound)
		}
		return sessionkit.User{}, fmt.Errorf("user_store.profile.%s: %w", store.driverLabel, err)
	}
	return record.toUser(), nil
}

// UpsertGoogleUser links a Google identity to an application user, creating one
// on first sign-in. A user who signed up with a password and later signs in with
// Google keeps their original account.
func (store *DatabaseUserStore) UpsertGoogleUser(ctx context.Context, googleSub string, email string, displayName string) (sessionkit.User, error) {
	normalizedEmail := normalizeEmail(email)

	var record userRecord
	err := store.db.WithContext(ctx).Where("google_sub = ?", googleSub).Take(&record).Error
	if err == nil {
		return record.toUser(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return sessionkit.User{}, fmt.Errorf("user_store.google.%s: %w", store.driverLabel, err)
	}

	err = store.db.WithContext(ctx).Where("email = ?", normalizedEmail).Take(&record).Error
	if err == nil {
		record.GoogleSub = googleSub
		if updateErr := store.db.WithContext(ctx).Save(&record).Error; updateErr != nil {
			return sessionkit.User{}, fmt.Errorf("user_store.google.%s: %w", store.driverLabel, updateErr)
		}
		return record.toUser(), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return sessionkit.User{}, fmt.Errorf("user_store.google.%s: %w", store.driverLabel, err)
	}

	record = userRecord{
		UserID:    uuid.NewString(),
		Name:      displayName,
		Email:     normalizedEmail,
		GoogleSub: googleSub,
		Role:      defaultRole,
	}
	if createErr := store.db.WithContext(ctx).Create(&record).Error; createErr != nil {
		return sessionkit.User{}, fmt.Errorf("user_store.google.%s: %w", store.driverLabel, createErr)
	}
	return record.toUser(), nil
}

func (record userRecord) toUser() sessionkit.User {
	return sessionkit.User{
		ID:    record.UserID,
		Name:  record.Name,
		Email: record.Email,
		Role:  record.Role,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("user_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("user_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("user_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("user_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
