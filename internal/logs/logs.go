package logs

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Init with
// logrus defaults.
var Logger = logrus.New()

type Options struct {
	Level  string // trace|debug|info|warn|error
	Format string // text|json
	File   string // empty means stderr only
}

// Init configures Logger. An unknown level falls back to info; a log file
// that cannot be opened falls back to stderr with a warning.
func Init(o Options) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(o.Level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	switch strings.ToLower(o.Format) {
	case "json":
		Logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Logger.SetOutput(os.Stderr)
	if o.File != "" {
		f, err := os.OpenFile(o.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			Logger.Warnf("log file %s: %v, logging to stderr", o.File, err)
			return
		}
		Logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}
}
