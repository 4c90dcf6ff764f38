package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"buildctl/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup configures the global zerolog logger from the log section of the configuration. Unknown levels
// fall back to info.
func Setup(conf *config.BCConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(conf.Log.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(Writer(conf)).With().Timestamp().Logger()
	if err != nil {
		log.Warn().Str("level", conf.Log.Level).Msg("Unknown log level, using info")
	}
}

// Writer returns the output the logger writes to. When a log file is configured, the file is rotated
// by lumberjack.
func Writer(conf *config.BCConfig) io.Writer {
	var out io.Writer = os.Stderr
	if conf.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   conf.Log.File,
			MaxSize:    conf.Log.MaxSizeMB,
			MaxBackups: conf.Log.MaxBackups,
			MaxAge:     conf.Log.MaxAgeDays,
			LocalTime:  true,
		}
	}

	if strings.EqualFold(conf.Log.Format, "json") {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: conf.Log.File != ""}
}
