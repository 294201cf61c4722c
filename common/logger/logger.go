// Package logger provides the zap based logging used by the fpgakit libraries and tools. Library
// packages only ever receive a *zap.Logger, this package decides where log entries end up.
package logger

import (
	"fmt"
	"log/syslog"
	"os"
	"path"
	"path/filepath"
	"reflect"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a wrapper around zap.Logger that allows the level to be changed after the
// application has started.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config represents the configuration for a Logger.
type Config struct {
	Type            supportedLogTypes `mapstructure:"type"`
	File            string            `mapstructure:"file"`
	Level           int8              `mapstructure:"level"`
	MaxSize         int               `mapstructure:"max-size"`
	NumRotatedFiles int               `mapstructure:"num-rotated-files"`
	Developer       bool              `mapstructure:"developer"`
}

type supportedLogTypes string

const (
	StdOut  supportedLogTypes = "stdout"
	StdErr  supportedLogTypes = "stderr"
	LogFile supportedLogTypes = "logfile"
	// The syslog type is the slowest logging option due to how zap log messages
	// need to be translated to syslog messages and severity levels.
	Syslog supportedLogTypes = "syslog"
)

// SupportedLogTypes is a slice of supported log types. It is used for printing help text, for
// example if an invalid type is specified.
var SupportedLogTypes = []supportedLogTypes{
	StdOut,
	StdErr,
	LogFile,
	Syslog,
}

// New returns new logger based on the provided configuration.
func New(newConfig Config) (*Logger, error) {

	logMgr := Logger{}

	// Use the opinionated Zap development configuration.
	// This notably gives us stack traces at warn and error levels.
	if newConfig.Developer {
		logMgr.level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = logMgr.level
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		logMgr.Logger = l
		return &logMgr, nil
	}

	zapConfig := zap.NewProductionEncoderConfig()
	zapConfig.TimeKey = "timestamp"
	zapConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// IMPORTANT: If the encoding type ever changes then parseConsoleEntry() used to write to
	// syslog MUST be updated accordingly.
	zapEncoder := zapcore.NewConsoleEncoder(zapConfig)

	zapLevel, err := getLevel(newConfig.Level)
	if err != nil {
		return nil, err
	}
	logMgr.level = zap.NewAtomicLevelAt(zapLevel)

	var logDestination zapcore.WriteSyncer
	switch newConfig.Type {
	case StdOut:
		logDestination = zapcore.AddSync(os.Stdout)
	case StdErr, "":
		logDestination = zapcore.Lock(os.Stderr)
	case LogFile:
		// Just being able to write to the provided log file is not sufficient
		// if we want to rotate log files. Make sure the directory selected for
		// logging exists and we can write to it.
		if err := ensureLogsAreWritable(newConfig.File); err != nil {
			return nil, err
		}
		logDestination = zapcore.AddSync(&lumberjack.Logger{
			Filename:   newConfig.File,
			MaxSize:    newConfig.MaxSize,
			MaxBackups: newConfig.NumRotatedFiles,
		})
	case Syslog:
		// Entries whose level cannot be parsed are logged with severity info. The process name is
		// used as the tag.
		l, err := NewSyslogWriteSyncer(syslog.LOG_INFO|syslog.LOG_LOCAL0, path.Base(os.Args[0]))
		if err != nil {
			return nil, fmt.Errorf("unable to initialize syslog destination: %w", err)
		}
		logDestination = l
	default:
		return nil, fmt.Errorf("unsupported log type: %s", newConfig.Type)
	}

	logMgr.Logger = zap.New(zapcore.NewCore(zapEncoder, logDestination, logMgr.level))
	return &logMgr, nil
}

// SetLevel changes the level of an existing logger. Developer loggers always stay at debug.
func (lm *Logger) SetLevel(level int8) error {
	newLevel, err := getLevel(level)
	if err != nil {
		return err
	}
	// We don't set the component on the logging struct because then it would be
	// included in every log message.
	log := lm.Logger.With(zap.String("component", path.Base(reflect.TypeOf(Logger{}).PkgPath())))
	if lm.level.Level() != newLevel {
		lm.level.SetLevel(newLevel)
		log.Log(newLevel, "set log level", zap.Stringer("logLevel", newLevel))
	} else {
		log.Debug("no change to log level")
	}
	return nil
}

// Level returns the current level.
func (lm *Logger) Level() zapcore.Level {
	return lm.level.Level()
}

// getLevel maps the numeric verbosity used on the command line (0 - least verbose, 5 - most
// verbose) to zap levels.
func getLevel(newLevel int8) (zapcore.Level, error) {
	switch newLevel {
	case 0:
		return zapcore.FatalLevel, nil
	case 1:
		return zapcore.ErrorLevel, nil
	case 2:
		return zapcore.WarnLevel, nil
	case 3:
		return zapcore.InfoLevel, nil
	case 4, 5:
		return zapcore.DebugLevel, nil
	default:
		// If we used zapcore.InvalidLevel we could cause a panic.
		// So instead return a sane level just in case something decides to
		// ignore the error and use the level we return anyway.
		return zapcore.InfoLevel, fmt.Errorf("the provided log level (%d) is invalid (must be between 0 and 5)", newLevel)
	}
}

// ensureLogsAreWritable verifies the directory of the log file exists and a file can be created in
// it, which lumberjack needs to rotate logs.
func ensureLogsAreWritable(logFile string) error {
	if logFile == "" {
		return fmt.Errorf("a log file must be specified when logging to a file")
	}
	dir := filepath.Dir(logFile)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("unable to access the log directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("the log directory %s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".logcheck-*")
	if err != nil {
		return fmt.Errorf("the log directory %s is not writable: %w", dir, err)
	}
	f.Close()
	return os.Remove(f.Name())
}
