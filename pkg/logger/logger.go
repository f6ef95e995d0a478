// Package logger holds the process-wide zerolog logger shared by the portal
// and the dev backend.
//
// Call Init once from main; everything else asks for Get or a Component.
// Entries are JSON unless Pretty is set:
//
//	{"level":"info","service":"portal","component":"session","sid":"3f2a9c1e…","message":"..."}
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// sidPrefix is how much of a session id is kept in log fields.
const sidPrefix = 8

// Options controls logger behaviour at initialisation time.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Anything else is info.
	Level string
	// Pretty switches to the coloured console writer for local runs.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
	// Service and Version are stamped on every entry when set.
	Service string
	Version string
}

var (
	root atomic.Pointer[zerolog.Logger]
	once sync.Once
)

// Init builds the shared logger. Only the first call has any effect; later
// calls return the logger built by the first one.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		l := build(opts)
		root.Store(&l)
	})
	return *root.Load()
}

func build(opts Options) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if lvl <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	if opts.Version != "" {
		ctx = ctx.Str("version", opts.Version)
	}
	return ctx.Logger()
}

// Get returns the shared logger. It panics before Init.
func Get() zerolog.Logger {
	l := root.Load()
	if l == nil {
		panic("logger: Get() called before Init()")
	}
	return *l
}

// Component returns the shared logger tagged with a "component" field.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// SessionID shortens a session cookie value for logging. The full value is a
// bearer credential for the portal and must not reach the log sink.
func SessionID(sid string) string {
	if len(sid) <= sidPrefix {
		return sid
	}
	return sid[:sidPrefix] + "…"
}

// Reset clears the shared logger so the next Init rebuilds it. Tests only.
func Reset() {
	once = sync.Once{}
	root.Store(nil)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
