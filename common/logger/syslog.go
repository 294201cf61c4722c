package logger

import (
	"log/syslog"
	"strings"
)

// SyslogWriteSyncer implements [zapcore.WriteSyncer] allowing Zap output to be
// redirected to syslog.
type SyslogWriteSyncer struct {
	writer *syslog.Writer
}

// NewSyslogWriteSyncer returns a SyslogWriteSyncer that uses the log/syslog package to send
// messages to syslog. The priority is only used if the actual priority cannot be parsed from the
// log message. The tag indicates the source of the log entry.
func NewSyslogWriteSyncer(priority syslog.Priority, tag string) (*SyslogWriteSyncer, error) {
	writer, err := syslog.New(priority, tag)
	if err != nil {
		return nil, err
	}
	return &SyslogWriteSyncer{
		writer: writer,
	}, nil
}

// parseConsoleEntry splits an entry produced by zapcore.NewConsoleEncoder() into its level and
// the message. The timestamp is dropped since syslog has its own.
func parseConsoleEntry(p []byte) (level string, msg string, ok bool) {
	// <TIMESTAMP>\t<LEVEL>\t<STRING>
	fields := strings.Split(string(p), "\t")
	if len(fields) < 3 {
		return "", "", false
	}
	return fields[1], strings.Join(fields[2:], " "), true
}

// Write maps the level of the zap entry to the syslog severity levels defined in RFC5424. Entries
// that can't be parsed are written as is.
func (s *SyslogWriteSyncer) Write(p []byte) (n int, err error) {
	level, msg, ok := parseConsoleEntry(p)
	if !ok {
		return s.writer.Write(p)
	}
	switch level {
	case "debug":
		return len(p), s.writer.Debug(msg)
	case "info":
		return len(p), s.writer.Info(msg)
	case "warn":
		return len(p), s.writer.Warning(msg)
	case "error":
		return len(p), s.writer.Err(msg)
	case "dpanic", "panic", "fatal":
		return len(p), s.writer.Crit(msg)
	default:
		return s.writer.Write(p)
	}
}

// Sync is a no-op, the syslog package doesn't buffer messages.
func (s *SyslogWriteSyncer) Sync() error {
	return nil
}
