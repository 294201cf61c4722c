package config

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	fpgaruntime "github.com/thinkparq/fpgakit/common/fpga/runtime"
	"github.com/thinkparq/fpgakit/common/logger"
)

// Viper keys for the global config. Should be used when accessing it instead of raw strings.
// Currently these are also used by the frontend for command line flag and env variable names.
const (
	// The directory sysfs is mounted at. Only changed for testing or when inspecting a copy of
	// another machine's sysfs tree.
	SysfsRootKey = "sysfs-root"
	// The directory containing the FME and port character devices.
	DevDirKey = "dev-dir"
	// Which generation of the kernel driver to expect ("auto", "classic" or "dfl").
	ProfileKey = "profile"
	// Prints values in their raw, base form, without adding units and SI/IEC prefixes.
	RawKey = "raw"
	// Tells the command to print additional, normally hidden info such as sysfs paths and object
	// ids.
	DebugKey = "debug"
	// The maximum number of workers to use when a command can complete work in parallel
	NumWorkersKey = "num-workers"
	// Set the log level (0 - least verbosity, 5 - highest verbosity).
	LogLevelKey = "log-level"
	// Sets up a reasonable default development logging configuration. Logging is enabled at
	// DebugLevel and above, and uses a console encoder. Logs are written to standard error.
	// Stacktraces are included on logs of WarnLevel and above. DPanicLevel logs will panic.
	LogDeveloperKey = "log-developer"
	// Where log messages are written (stderr, stdout, logfile or syslog).
	LogTypeKey = "log-type"
	// The file used when LogTypeKey is logfile.
	LogFileKey = "log-file"
	// Print only the given columns of a table. Applied automatically when cmdfmt.NewPrintomatic()
	// is used. "all" prints all available columns, not only the default ones.
	ColumnsKey = "columns"
	// Determines the number of rows to be printed before the header is repeated. Also determines
	// how often output is actually flushed to stdout. If set to 0, no header is printed and each
	// row is flushed immediately.
	PageSizeKey = "page-size"
	OutputKey   = "output"
)

// OutputType is used to control what type of structured output should be printed.
type OutputType string

const (
	OutputTable      OutputType = "table"
	OutputJSON       OutputType = "json"
	OutputJSONPretty OutputType = "json-pretty"
	OutputNDJSON     OutputType = "ndjson"
)

var (
	OutputOptions = []fmt.Stringer{OutputTable, OutputJSON, OutputJSONPretty, OutputNDJSON}
)

func (t OutputType) String() string {
	switch t {
	case OutputTable:
		return "table"
	case OutputJSON:
		return "json"
	case OutputJSONPretty:
		return "json-pretty"
	case OutputNDJSON:
		return "ndjson"
	default:
		return "unknown"
	}
}

// GlobalConfig is used with InitViperFromExternal when the CTL backend is consumed as a library.
// While not all global configuration is applicable in this mode, it and InitViperFromExternal()
// should be kept in sync with any global configuration needed to use CTL as a library.
type GlobalConfig struct {
	SysfsRoot  string
	DevDir     string
	Profile    string
	LogLevel   int8
	NumWorkers int
}

// InitViperFromExternal is used when the CTL backend is consumed as a library by applications other
// than the fpgactl frontend. It is used to initialize the backend Viper config singleton from
// externally defined configuration. Empty values fall back to the runtime defaults.
func InitViperFromExternal(cfg GlobalConfig) {
	defaults := fpgaruntime.DefaultConfig()
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = defaults.SysfsRoot
	}
	if cfg.DevDir == "" {
		cfg.DevDir = defaults.DevDir
	}
	if cfg.Profile == "" {
		cfg.Profile = defaults.Profile
	}

	globalFlagSet := pflag.FlagSet{}
	globalFlagSet.String(SysfsRootKey, cfg.SysfsRoot, "")
	globalFlagSet.String(DevDirKey, cfg.DevDir, "")
	globalFlagSet.String(ProfileKey, cfg.Profile, "")
	globalFlagSet.Int(NumWorkersKey, cfg.NumWorkers, "")
	globalFlagSet.Int8(LogLevelKey, cfg.LogLevel, "")

	viper.SetEnvPrefix("fpga")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	globalFlagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindEnv(flag.Name)
		viper.BindPFlag(flag.Name, flag)
	})
}

// trimStringsHook strips surrounding white space from string settings. Values coming from
// environment variables or config files are not trimmed by viper.
func trimStringsHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(reflect.ValueOf(data).String()), nil
}

// decodeSettings decodes the given viper keys into a struct using the mapstructure tags of the
// target. Keys that are not set fall back to whatever the target already contains.
func decodeSettings(settings map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(trimStringsHook),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(settings)
}

// RuntimeConfig returns the runtime configuration derived from the global config. Driver
// interfaces are left empty so the runtime uses the real system.
func RuntimeConfig() (fpgaruntime.Config, error) {
	cfg := fpgaruntime.DefaultConfig()
	settings := map[string]any{}
	for _, key := range []string{SysfsRootKey, DevDirKey, ProfileKey} {
		if v := viper.Get(key); v != nil {
			settings[key] = v
		}
	}
	if err := decodeSettings(settings, &cfg); err != nil {
		return fpgaruntime.Config{}, fmt.Errorf("invalid runtime configuration: %w", err)
	}
	return cfg, nil
}

// The global runtime singleton.
var globalRuntime *fpgaruntime.Runtime

// Runtime returns the runtime used by all commands, creating it on first use. The profile is
// detected at this point so commands that don't touch devices (like version) work on machines
// without any FPGA driver loaded.
func Runtime() (*fpgaruntime.Runtime, error) {
	if globalRuntime != nil {
		return globalRuntime, nil
	}
	cfg, err := RuntimeConfig()
	if err != nil {
		return nil, err
	}
	log, err := GetLogger()
	if err != nil {
		return nil, err
	}
	rt, err := fpgaruntime.New(cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	globalRuntime = rt
	return globalRuntime, nil
}

// SetRuntime replaces the global runtime. It is used by applications consuming CTL as a library
// that already manage their own runtime, for example one backed by a different driver.Opener. Any
// previous runtime is closed.
func SetRuntime(rt *fpgaruntime.Runtime) {
	if globalRuntime != nil && globalRuntime != rt {
		globalRuntime.Close()
	}
	globalRuntime = rt
}

// Resets the global state and frees resources
func Cleanup() {
	if globalRuntime != nil {
		globalRuntime.Close()
	}
	globalRuntime = nil
	if globalLogger != nil {
		globalLogger.Sync()
	}
}

var globalLogger *logger.Logger

// Returns a global logger that logs to stderr unless configured otherwise. Don't rely solely on
// the logger to communicate important information to the user since all non-fatal log messages
// are disabled by default. The logger DOES NOT replace the need to return meaningful errors.
//
// IMPORTANT: Unless your code is what is responsible for exiting when an error is encountered,
// generally calling `log.Fatal()` is discouraged as this will immediately terminate the program.
//
// When logging keep in mind it is bad practice to both log and return an error. Instead the logger
// should be used to add additional context, typically at the debug level, for what operations led
// up to some error being returned.
//
// Note when getting the logger unless there is a bug in the logging implementation errors are
// unlikely and can usually be ignored for interactive tools. If the configured destination cannot
// be used the logger falls back to stderr.
func GetLogger() (*logger.Logger, error) {
	if globalLogger != nil {
		return globalLogger, nil
	}

	logLevel := viper.GetInt(LogLevelKey)
	invalidLogLevel := false
	if logLevel < 0 || logLevel > 5 {
		// If the user gave an invalid log level ignore it and set logging to the highest
		// verbosity. This means we can generally always return a valid logger so most callers
		// don't need to check for an error from GetLogger().
		logLevel = 5
		invalidLogLevel = true
	}

	var logCfg logger.Config
	err := decodeSettings(map[string]any{
		"type":      viper.GetString(LogTypeKey),
		"file":      viper.GetString(LogFileKey),
		"level":     logLevel,
		"developer": viper.GetBool(LogDeveloperKey),
	}, &logCfg)
	if err == nil {
		globalLogger, err = logger.New(logCfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to initialize the requested logger, logging to stderr instead: %s\n", err)
		globalLogger, err = logger.New(logger.Config{Level: int8(logLevel), Type: logger.StdErr})
		if err != nil {
			return nil, err
		}
	}
	if invalidLogLevel {
		globalLogger.Debug("enabling debug logging and ignoring user provided log level (was not in the range 0-5)")
	}
	return globalLogger, nil
}
