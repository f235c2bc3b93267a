package ws

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Logger adapts a *log.Logger to runtime.Logger so the service logs the same
// way outside Nakama.
type Logger struct {
	out    *log.Logger
	fields map[string]interface{}
}

func NewLogger(out *log.Logger) *Logger {
	if out == nil {
		out = log.Default()
	}
	return &Logger{out: out}
}

func (l *Logger) Debug(format string, v ...interface{}) { l.print("DEBUG", format, v...) }
func (l *Logger) Info(format string, v ...interface{})  { l.print("INFO", format, v...) }
func (l *Logger) Warn(format string, v ...interface{})  { l.print("WARN", format, v...) }
func (l *Logger) Error(format string, v ...interface{}) { l.print("ERROR", format, v...) }

func (l *Logger) WithField(key string, v interface{}) runtime.Logger {
	return l.WithFields(map[string]interface{}{key: v})
}

func (l *Logger) WithFields(fields map[string]interface{}) runtime.Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{out: l.out, fields: merged}
}

func (l *Logger) Fields() map[string]interface{} {
	return l.fields
}

func (l *Logger) print(level, format string, v ...interface{}) {
	line := fmt.Sprintf(format, v...)
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
		line += b.String()
	}
	l.out.Printf("[%s] %s", level, line)
}
