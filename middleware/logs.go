package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogConfig holds configuration for the logging middleware
type LogConfig struct {
	Console bool
	File    bool
	// Log file path
	LogFilePath string
	// Log format: "json" or "text"
	Format        string
	IncludeUserID bool
	// Skip logging for paths with these prefixes
	SkipPaths []string
}

// LogData is one request as written to the request log.
type LogData struct {
	Timestamp     time.Time     `json:"timestamp"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	URL           string        `json:"url"`
	Status        int           `json:"status"`
	Latency       time.Duration `json:"latency"`
	IP            string        `json:"ip"`
	UserAgent     string        `json:"user_agent"`
	RequestID     string        `json:"request_id"`
	Error         string        `json:"error,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	Username      string        `json:"username,omitempty"`
	ContentLength int64         `json:"content_length"`
}

const (
	RequestLogPath = "logs/requests.log"
	ErrorLogPath   = "logs/errors.log"
)

// DefaultLogConfig returns a default configuration for the logging middleware
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Console:       true,
		File:          true,
		LogFilePath:   RequestLogPath,
		Format:        "json",
		IncludeUserID: true,
		// The notification stream stays open; its latency is meaningless.
		SkipPaths: []string{"/health", "/files", "/api/notifications/stream"},
	}
}

// LoggingMiddleware creates a new logging middleware with the given configuration
func LoggingMiddleware(config ...LogConfig) fiber.Handler {
	cfg := DefaultLogConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.File {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0755); err != nil {
			log.Printf("Error creating logs directory: %v\n", err)
		}
	}

	return func(c *fiber.Ctx) error {
		for _, skipPath := range cfg.SkipPaths {
			if strings.HasPrefix(c.Path(), skipPath) {
				return c.Next()
			}
		}

		start := time.Now()
		err := c.Next()

		data := requestData(c, start, err)
		if !cfg.IncludeUserID {
			data.UserID, data.Username = "", ""
		}
		logRequest(cfg, data)
		return err
	}
}

func requestData(c *fiber.Ctx, start time.Time, err error) LogData {
	data := LogData{
		Timestamp:     start,
		Method:        c.Method(),
		Path:          c.Path(),
		URL:           c.OriginalURL(),
		Status:        c.Response().StatusCode(),
		Latency:       time.Since(start),
		IP:            c.IP(),
		UserAgent:     c.Get(fiber.HeaderUserAgent),
		RequestID:     c.Get(fiber.HeaderXRequestID),
		ContentLength: int64(len(c.Response().Body())),
	}
	if user, ok := CurrentUser(c); ok {
		data.UserID = user.UID
		data.Username = user.DisplayName
	}
	if err != nil {
		data.Error = err.Error()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			data.Status = fe.Code
		}
	}
	return data
}

func logRequest(cfg LogConfig, data LogData) {
	var logMessage string
	switch cfg.Format {
	case "json":
		jsonData, _ := json.Marshal(data)
		logMessage = string(jsonData)
	default:
		logMessage = formatTextLog(data)
	}

	if cfg.Console {
		log.Println(logMessage)
	}
	if cfg.File {
		logToFile(cfg.LogFilePath, logMessage)
	}
}

// formatTextLog formats the log data as human-readable text
func formatTextLog(data LogData) string {
	userIDStr := ""
	if data.UserID != "" {
		userIDStr = fmt.Sprintf(" user:%s", data.UserID)
	}

	return fmt.Sprintf(
		"[%s] %s %s %s %d %s %s %s%s",
		data.Timestamp.Format("2006-01-02 15:04:05"),
		data.Method,
		data.Path,
		getStatusColor(data.Status),
		data.Status,
		getLatencyColor(data.Latency),
		data.Latency,
		data.IP,
		userIDStr,
	)
}

func getStatusColor(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "✅"
	case status >= 300 && status < 400:
		return "🔄"
	case status >= 400 && status < 500:
		return "⚠️"
	case status >= 500:
		return "❌"
	default:
		return "❓"
	}
}

func getLatencyColor(latency time.Duration) string {
	switch {
	case latency < 100*time.Millisecond:
		return "🟢"
	case latency < 500*time.Millisecond:
		return "🟡"
	case latency < 1*time.Second:
		return "🟠"
	default:
		return "🔴"
	}
}

var fileMu sync.Mutex

// logToFile writes the log message to a file
func logToFile(filePath, message string) {
	fileMu.Lock()
	defer fileMu.Unlock()

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("Error opening log file: %v\n", err)
		return
	}
	defer file.Close()

	if len(message) > 0 && message[len(message)-1] != '\n' {
		message += "\n"
	}
	if _, err = file.WriteString(message); err != nil {
		log.Printf("Error writing to log file: %v\n", err)
	}
}

// RequestLogger logs every request as JSON to the console and the request log.
func RequestLogger() fiber.Handler {
	return LoggingMiddleware(DefaultLogConfig())
}

// ErrorLogger creates a middleware that only logs errors
func ErrorLogger(filePath string) fiber.Handler {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.Printf("Error creating logs directory: %v\n", err)
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		data := requestData(c, start, err)
		if err != nil || data.Status >= 400 {
			jsonData, _ := json.Marshal(data)
			logToFile(filePath, string(jsonData))
		}
		return err
	}
}
