package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level names accepted by Init.
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

var levels = map[string]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

var (
	mu       sync.RWMutex
	std      = log.New(os.Stdout, "", log.LstdFlags)
	errs     = log.New(os.Stderr, "", log.LstdFlags)
	minLevel = levels[INFO]
	logFile  *os.File
)

// Options configures the global logger.
type Options struct {
	Level string // debug, info, warn or error
	File  string // optional, appended to alongside the console
}

// Init installs the level filter and, when a file is given, mirrors output into it.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	lvl, ok := levels[strings.ToLower(opts.Level)]
	if !ok {
		lvl = levels[INFO]
	}
	minLevel = lvl

	if opts.File == "" {
		std = log.New(os.Stdout, "", log.LstdFlags)
		errs = log.New(os.Stderr, "", log.LstdFlags)
		return nil
	}

	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", opts.File, err)
	}
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	std = log.New(io.MultiWriter(os.Stdout, f), "", log.LstdFlags)
	errs = log.New(io.MultiWriter(os.Stderr, f), "", log.LstdFlags)
	return nil
}

// SetOutput redirects every level to w. Used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std = log.New(w, "", 0)
	errs = log.New(w, "", 0)
}

// Close releases the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	std = log.New(os.Stdout, "", log.LstdFlags)
	errs = log.New(os.Stderr, "", log.LstdFlags)
	return err
}

func shouldLog(level string) bool {
	return levels[level] >= minLevel
}

func output(level, prefix, format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if !shouldLog(level) {
		return
	}
	target := std
	if level == ERROR {
		target = errs
	}
	_ = target.Output(3, prefix+fmt.Sprintf(format, v...))
}

// Printf logs at info level.
func Printf(format string, v ...any) { output(INFO, "", format, v...) }

// Println logs at info level.
func Println(v ...any) { output(INFO, "", "%s", strings.TrimSuffix(fmt.Sprintln(v...), "\n")) }

func Debugf(format string, v ...any) { output(DEBUG, "DEBUG: ", format, v...) }

func Warnf(format string, v ...any) { output(WARN, "WARN: ", format, v...) }

// Errorf is always written, regardless of level.
func Errorf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	_ = errs.Output(2, "ERROR: "+fmt.Sprintf(format, v...))
}

// Fatalf logs and exits with status 1.
func Fatalf(format string, v ...any) {
	Errorf(format, v...)
	_ = Close()
	os.Exit(1)
}
