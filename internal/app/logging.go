package app

import (
	"io"
	"strings"

	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("app")

// LogFormat is the line format of every log record.
const LogFormat = "%{time:15:04:05.000} %{module} %{level:.4s} > %{message}"

// ParseLogLevel parses a level name. Unknown names yield INFO.
func ParseLogLevel(s string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logging.DEBUG
	case "info":
		return logging.INFO
	case "warn", "warning":
		return logging.WARNING
	case "error":
		return logging.ERROR
	default:
		return logging.INFO
	}
}

// SetupLogging sends every module's log records at level or above to w.
func SetupLogging(level string, w io.Writer) {
	backend := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(LogFormat))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(ParseLogLevel(level), "")
	logging.SetBackend(leveled)
}
