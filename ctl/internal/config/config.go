package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	fpgaruntime "github.com/thinkparq/fpgakit/common/fpga/runtime"
	"github.com/thinkparq/fpgakit/common/logger"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
)

// This package handles the global command line tool config - the global flags and environment
// variable bindings.

// Defines all the global flags and binds them to the backends config singleton
func InitGlobalFlags(cmd *cobra.Command) {
	defaults := fpgaruntime.DefaultConfig()

	cmd.PersistentFlags().Bool(config.DebugKey, false, "Print additional details that are normally hidden.")

	cmd.PersistentFlags().Bool(config.RawKey, false, "Print raw values without SI or IEC prefixes.")

	cmd.PersistentFlags().String(config.SysfsRootKey, defaults.SysfsRoot, `The directory sysfs is mounted at.
	Change this to inspect a copy of the sysfs tree of another machine.`)

	cmd.PersistentFlags().String(config.DevDirKey, defaults.DevDir, "The directory containing the FME and port device nodes.")

	cmd.PersistentFlags().String(config.ProfileKey, defaults.Profile, fmt.Sprintf(`The kernel driver generation to expect ('classic' or 'dfl').
	By default ('%s') the profile is determined from the class directories present below the sysfs root.`, fpgaruntime.ProfileAuto))

	cmd.PersistentFlags().Int(config.NumWorkersKey, runtime.GOMAXPROCS(0), "The maximum number of workers to use when a command can complete work in parallel (default: number of CPUs).")

	cmd.PersistentFlags().Int8(config.LogLevelKey, 0, fmt.Sprintf(`By default all logging is disabled except for fatal errors.
	Optionally additional logging can be enabled to assist with debugging (0=Fatal, 1=Error, 2=Warn, 3=Info, 4+5=Debug).
	When enabling logging you may wish to set --%s=0 to ensure output and log messages are synchronized.`, config.PageSizeKey))

	cmd.PersistentFlags().String(config.LogTypeKey, string(logger.StdErr), fmt.Sprintf("Where log messages are written to (one of %v).", logger.SupportedLogTypes))
	cmd.PersistentFlags().String(config.LogFileKey, "/var/log/fpgactl.log", fmt.Sprintf("The log file used when --%s=%s.", config.LogTypeKey, logger.LogFile))

	cmd.PersistentFlags().Bool(config.LogDeveloperKey, false, "Enable logging at DebugLevel and above and print stack traces at WarnLevel and above.")
	cmd.PersistentFlags().MarkHidden(config.LogDeveloperKey)

	cmd.PersistentFlags().StringSlice(config.ColumnsKey, []string{}, "The table columns to print. Specify 'all' to print all available columns.")
	cmd.PersistentFlags().Uint(config.PageSizeKey, 100, `The number of table rows before the header is repeated and the output is flushed to stdout.
	If set to 0, prints no header and immediately flushes every row.`)
	cmd.PersistentFlags().Var(util.ValidatedStringFlag(config.OutputOptions, config.OutputTable), config.OutputKey, fmt.Sprintf("Print output in the specified format (one of %v).", config.OutputOptions))

	// Environment variables should start with FPGA_
	viper.SetEnvPrefix("fpga")
	// Environment variables cannot use "-", replace with "_"
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	os.Setenv("FPGA_BINARY_NAME", "fpgactl")

	// Bind all persistent pflags to viper
	cmd.PersistentFlags().VisitAll(func(flag *pflag.Flag) {
		viper.BindEnv(flag.Name)
		viper.BindPFlag(flag.Name, flag)
	})
}

func Cleanup() {
	config.Cleanup()
}
