package log

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
}

// Get returns the process logger with level and format taken from
// LOG_LEVEL and LOG_FORMAT.
func Get() *logrus.Logger {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "error":
		log.Level = logrus.ErrorLevel
	case "warn":
		log.Level = logrus.WarnLevel
	case "debug":
		log.Level = logrus.DebugLevel
	default:
		log.Level = logrus.InfoLevel
	}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		log.Formatter = &logrus.JSONFormatter{}
	}
	return log
}

// WithPrefix returns an entry tagged with the component name.
func WithPrefix(prefix string) *logrus.Entry {
	return Get().WithField("prefix", prefix)
}
