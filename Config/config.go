package Config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"Workdesk/Models"
)

var ErrMissingCredentials = errors.New("missing credentials")

const (
	BackendFirestore = "firestore"
	BackendLocal     = "local"
)

type Config struct {
	Backend string

	FirebaseCredentials   string
	FirebaseProjectID     string
	FirebaseStorageBucket string

	DBDriver   string
	DBDSN      string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	UploadDir     string
	PublicBaseURL string
	Port          string
	JWTSecret     string
	SessionTTL    time.Duration

	AdminEmail    string
	AdminPassword string

	SlackBotToken  string
	SlackAppToken  string
	SlackChannelID string

	SMTPServer    string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFrom      string
	SMTPFromName  string
	SMTPTLS       bool
	SMTPSkipCheck bool

	NotifySeenCapacity int
	UploadTimeout      time.Duration
	DefaultLocale      string
	WorkWeekTarget     time.Duration

	// LogFile, when set, receives the application log instead of stderr.
	LogFile    string
	RequestLog bool
}

// Load reads .env when present and then the process environment.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}
	return FromEnv()
}

func FromEnv() Config {
	return Config{
		Backend: strings.ToLower(getEnv("WORKDESK_BACKEND", BackendLocal)),

		FirebaseCredentials:   os.Getenv("FIREBASE_CREDENTIALS"),
		FirebaseProjectID:     os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseStorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:      os.Getenv("DB_DSN"),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "workdesk"),

		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "/files"),
		Port:          getEnv("PORT", "3001"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", 7*24*time.Hour),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SlackBotToken:  os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:  os.Getenv("SLACK_APP_TOKEN"),
		SlackChannelID: os.Getenv("SLACK_CHANNEL_ID"),

		SMTPServer:    os.Getenv("SMTP_SERVER"),
		SMTPPort:      getInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:      os.Getenv("SMTP_FROM"),
		SMTPFromName:  getEnv("SMTP_FROM_NAME", "Workdesk"),
		SMTPTLS:       getEnv("SMTP_TLS", "false") == "true",
		SMTPSkipCheck: getEnv("SMTP_SKIP_TLS_CHECK", "false") == "true",

		NotifySeenCapacity: getInt("NOTIFY_SEEN_CAPACITY", 1024),
		UploadTimeout:      getDuration("UPLOAD_TIMEOUT", 90*time.Second),
		DefaultLocale:      strings.ToLower(getEnv("DEFAULT_LOCALE", "ko")),
		WorkWeekTarget:     getDuration("WORK_WEEK_TARGET", 40*time.Hour),

		LogFile:    os.Getenv("LOG_FILE"),
		RequestLog: getEnv("REQUEST_LOG", "true") != "false",
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFirestore:
		if c.FirebaseCredentials == "" || c.FirebaseProjectID == "" {
			return fmt.Errorf("%w: FIREBASE_CREDENTIALS and FIREBASE_PROJECT_ID must be set", ErrMissingCredentials)
		}
	case BackendLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("%w: JWT_SECRET must be set for the local backend", ErrMissingCredentials)
		}
		switch c.DBDriver {
		case "sqlite", "mysql", "postgres":
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
		}
	default:
		return fmt.Errorf("unsupported WORKDESK_BACKEND %q", c.Backend)
	}
	if c.NotifySeenCapacity <= 0 {
		return fmt.Errorf("NOTIFY_SEEN_CAPACITY must be positive, got %d", c.NotifySeenCapacity)
	}
	return nil
}

// DSN returns DB_DSN, or one assembled from the DB_* parts.
func (c Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "mysql":
		return Models.MySQLDSN(c.DBHost, orDefault(c.DBPort, "3306"), c.DBUser, c.DBPassword, c.DBName)
	case "postgres":
		return Models.PostgresDSN(c.DBHost, orDefault(c.DBPort, "5432"), c.DBUser, c.DBPassword, c.DBName)
	}
	return c.DBName + ".db"
}

// SlackEnabled reports whether notifications and digests go to Slack.
func (c Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

// EmailEnabled reports whether notifications are also mailed.
func (c Config) EmailEnabled() bool {
	return c.SMTPServer != "" && c.SMTPFrom != ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", key, v, err)
		return fallback
	}
	return d
}
