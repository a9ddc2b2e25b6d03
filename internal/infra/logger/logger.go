// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"lodge_billing_notifier/internal/infra/config"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// Init initializes the global logger based on application configuration.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout) // Default output

	// Set Log Level
	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'. Error: %v", cfg.LogLevel, err)
		Log.SetLevel(logrus.InfoLevel)
	} else {
		Log.SetLevel(level)
	}

	// Set Log Formatter
	if cfg.Environment == "production" || cfg.Environment == "staging" {
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	if cfg.SentryDSN != "" {
		Log.AddHook(&SentryHook{})
	}

	Log.Info("Logger initialized successfully.")
	Log.Debugf("Log level set to: %s", Log.GetLevel().String())
	Log.Debugf("Log format set for environment: %s", cfg.Environment)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// SentryHook forwards error-level entries to Sentry.
// sentry.Init must have been called; otherwise the hub drops events.
type SentryHook struct{}

func (h *SentryHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range entry.Data {
			if key == logrus.ErrorKey {
				continue
			}
			scope.SetExtra(key, value)
		}
		if err, ok := entry.Data[logrus.ErrorKey].(error); ok {
			scope.SetExtra("message", entry.Message)
			sentry.CaptureException(err)
			return
		}
		sentry.CaptureMessage(entry.Message)
	})
	return nil
}
