package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)
}

// writer is an io.Writer that splits its input stream into lines and writes
// those lines to an underlying logger.
type writer struct {
	// callback is the logging callback.
	callback func(string)
	// buffer is any incomplete line fragment left over from a previous
	// write.
	buffer []byte
}

// trimCarriageReturn trims any single trailing carriage return from the end
// of a byte slice.
func trimCarriageReturn(buffer []byte) []byte {
	if len(buffer) > 0 && buffer[len(buffer)-1] == '\r' {
		return buffer[:len(buffer)-1]
	}
	return buffer
}

// Write implements io.Writer.Write.
func (w *writer) Write(buffer []byte) (int, error) {
	w.buffer = append(w.buffer, buffer...)

	var processed int
	remaining := w.buffer
	for {
		index := bytes.IndexByte(remaining, '\n')
		if index == -1 {
			break
		}
		w.callback(string(trimCarriageReturn(remaining[:index])))
		processed += index + 1
		remaining = remaining[index+1:]
	}

	if processed > 0 {
		leftover := len(w.buffer) - processed
		if leftover > 0 {
			copy(w.buffer[:leftover], w.buffer[processed:])
		}
		w.buffer = w.buffer[:leftover]
	}

	return len(buffer), nil
}

// Logger is the main logger type. It has the novel property that it still
// functions if nil, but it doesn't log anything. It wraps the standard
// logger provided by the log package, so it respects any flags set for that
// logger. It is safe for concurrent usage.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is the minimum level at which this logger (and its
	// subloggers) will emit output.
	level Level
}

// RootLogger is the root logger from which all other loggers derive. Its
// level defaults to LevelInfo; callers configure it once at startup via
// SetLevel.
var RootLogger = &Logger{level: LevelInfo}

// SetLevel sets the logging threshold for this logger only. Subloggers copy
// their parent's level when they are created, so subloggers created
// afterwards inherit the new level while existing ones keep theirs.
func (l *Logger) SetLevel(level Level) {
	if l != nil {
		l.level = level
	}
}

// Sublogger creates a new sublogger with the specified name.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}

	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}

	return &Logger{
		prefix: prefix,
		level:  l.level,
	}
}

// output is the internal logging method.
func (l *Logger) output(calldepth int, level Level, line string) {
	if l.level < level {
		return
	}
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(calldepth, line)
}

// Info logs information with semantics equivalent to fmt.Print, gated on
// LevelInfo.
func (l *Logger) Info(v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprint(v...))
	}
}

// Infof logs information with semantics equivalent to fmt.Printf, gated on
// LevelInfo.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l != nil {
		l.output(3, LevelInfo, fmt.Sprintf(format, v...))
	}
}

// Debug logs information with semantics equivalent to fmt.Print, gated on
// LevelDebug.
func (l *Logger) Debug(v ...interface{}) {
	if l != nil {
		l.output(3, LevelDebug, fmt.Sprint(v...))
	}
}

// Debugf logs information with semantics equivalent to fmt.Printf, gated on
// LevelDebug.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l != nil {
		l.output(3, LevelDebug, fmt.Sprintf(format, v...))
	}
}

// Writer returns an io.Writer that writes lines at LevelInfo.
func (l *Logger) Writer() io.Writer {
	if l == nil {
		return io.Discard
	}
	return &writer{callback: func(s string) { l.Info(s) }}
}

// Warn logs error information with a warning prefix and yellow color, gated
// on LevelWarn.
func (l *Logger) Warn(err error) {
	if l != nil {
		l.output(3, LevelWarn, color.YellowString("warning: %v", err))
	}
}

// Error logs error information with an error prefix and red color, gated on
// LevelError.
func (l *Logger) Error(err error) {
	if l != nil {
		l.output(3, LevelError, color.RedString("error: %v", err))
	}
}
