package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns the JSON logger used across the agent. LOG_LEVEL picks the
// level (trace, debug, info, warn, error); anything else means info.
func New() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})

	level, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil || level > logrus.TraceLevel || level < logrus.ErrorLevel {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	return l
}
