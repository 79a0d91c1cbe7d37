// file: logger/logger.go

package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the shared logger instance used across all packages.
var Log = logrus.New()

// Init configures the global logger. In production we emit structured JSON
// for log aggregation; in development a readable text format with debug level.
func Init(environment string) {
	Log.SetOutput(os.Stdout)

	if environment == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
		Log.SetLevel(logrus.InfoLevel)
		return
	}

	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	Log.SetLevel(logrus.DebugLevel)
}
