package logger

import (
	"io"
	"net/http"
	"os"
	"strings"

	"go-blog-app/internal/config"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Logger is the logging interface handed to every layer of the blog.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(err error, msg string)
	Fatal(err error, msg string)
	With(fields map[string]interface{}) Logger
}

type zerologLogger struct {
	logger zerolog.Logger
}

// New builds a zerolog-backed Logger writing JSON, or human-readable lines
// when cfg.Format is "console". A nil writer logs to stdout.
func New(cfg config.LogConfig, out io.Writer) Logger {
	if out == nil {
		out = os.Stdout
	}
	output := out
	if strings.EqualFold(cfg.Format, "console") {
		output = zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stdout}
	}
	return &zerologLogger{
		logger: zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp().Logger(),
	}
}

// parseLevel falls back to info for an empty or unknown level.
func parseLevel(s string) zerolog.Level {
	if s == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		tmpLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		tmpLogger.Warn().Msgf("Invalid log level '%s', defaulting to 'info'", s)
		return zerolog.InfoLevel
	}
	return level
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zerologLogger{logger: zerolog.Nop()}
}

// ForRequest tags l with the request id set by chi's RequestID middleware
// and the request line.
func ForRequest(l Logger, r *http.Request) Logger {
	fields := map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		fields["request_id"] = id
	}
	return l.With(fields)
}

func (l *zerologLogger) Debug(msg string) { l.logger.Debug().Msg(msg) }

func (l *zerologLogger) Info(msg string) { l.logger.Info().Msg(msg) }

func (l *zerologLogger) Warn(msg string) { l.logger.Warn().Msg(msg) }

func (l *zerologLogger) Error(err error, msg string) { l.logger.Error().Err(err).Msg(msg) }

// Fatal logs and exits the process.
func (l *zerologLogger) Fatal(err error, msg string) { l.logger.Fatal().Err(err).Msg(msg) }

func (l *zerologLogger) With(fields map[string]interface{}) Logger {
	return &zerologLogger{logger: l.logger.With().Fields(fields).Logger()}
}
