// Package logging provides levelled diagnostic logging with an optional
// rotating log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/lumberjack"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts the level names case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel, nil
	case "INFO", "":
		return InfoLevel, nil
	case "WARNING", "WARN":
		return WarningLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

var level atomic.Int32

func init() { level.Store(int32(InfoLevel)) }

// Logf is the sink for every message. It defaults to log.Printf but may be
// replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the sink. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetLevel drops messages below l.
func SetLevel(l Level) { level.Store(int32(l)) }

func GetLevel() Level { return Level(level.Load()) }

func logAt(l Level, format string, args ...interface{}) {
	if l < GetLevel() {
		return
	}
	Logf(" "+l.String()+" "+format, args...)
}

func Debugf(format string, args ...interface{})   { logAt(DebugLevel, format, args...) }
func Infof(format string, args ...interface{})    { logAt(InfoLevel, format, args...) }
func Warningf(format string, args ...interface{}) { logAt(WarningLevel, format, args...) }
func Errorf(format string, args ...interface{})   { logAt(ErrorLevel, format, args...) }

// Bytes formats a byte count for log messages.
func Bytes(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FileConfig describes a rotating log file.
type FileConfig struct {
	Logfile string `yaml:"logfile"`
	MaxSize int    `yaml:"max_log_size"`
	MaxAge  int    `yaml:"max_log_age"`
	// Quiet stops messages being echoed to stderr.
	Quiet bool `yaml:"quiet"`
}

// Open sends the standard logger to a rotating log file. Without a log file
// name it leaves output on stderr and returns a no-op closer.
func (c *FileConfig) Open() io.Closer {
	if c == nil || c.Logfile == "" {
		return io.NopCloser(nil)
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	if c.Quiet {
		log.SetOutput(l)
	} else {
		log.SetOutput(io.MultiWriter(os.Stderr, l))
	}
	Infof("logging to %s", c.Logfile)
	return closer{l}
}

type closer struct{ l *lumberjack.Logger }

func (c closer) Close() error {
	log.SetOutput(os.Stderr)
	return c.l.Close()
}
