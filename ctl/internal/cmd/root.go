package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thinkparq/fpgakit/ctl/internal/cmd/buffer"
	"github.com/thinkparq/fpgakit/ctl/internal/cmd/device"
	"github.com/thinkparq/fpgakit/ctl/internal/cmd/errorreg"
	"github.com/thinkparq/fpgakit/ctl/internal/cmd/mmio"
	cmdConfig "github.com/thinkparq/fpgakit/ctl/internal/config"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
)

// Main entry point of the tool
func Execute() int {
	// The header is generated here so the underline matches the width of the version string.
	longHelpHeader := fmt.Sprintf("FPGA Command Line Tool: %s", Version)
	cmd := &cobra.Command{
		Use:   BinaryName,
		Short: "Discover and inspect FPGA accelerators.",
		Long: fmt.Sprintf("%s\n%s\n%s", longHelpHeader, strings.Repeat("=", len(longHelpHeader)), util.WrapText(`This tool discovers the FPGA management engines (FMEs) and accelerator ports exposed by the kernel driver through sysfs, and allows inspecting their error registers, MMIO space and DMA buffer support.

* View help for specific commands with "<command> help".
* Both the classic (intel-fpga) and the DFL driver layout are supported. The layout is detected automatically unless --profile is set.
* Use --sysfs-root and --dev-dir to inspect a copy of a sysfs tree.
`, util.TermWidth(), 0)),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if viper.GetInt(config.NumWorkersKey) < 1 {
				return util.NewCtlError(fmt.Errorf("the number of workers must be at least 1"), util.InvalidArgument)
			}
			return nil
		},
	}

	// Normalize flags to lowercase - makes the program accept case insensitive flags
	cmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		lowercaseFlagName := strings.ToLower(name)
		return pflag.NormalizedName(lowercaseFlagName)
	})

	cmdConfig.InitGlobalFlags(cmd)
	defer cmdConfig.Cleanup()

	cmd.AddCommand(versionCmd)
	cmd.AddCommand(device.NewCmd())
	cmd.AddCommand(errorreg.NewCmd())
	cmd.AddCommand(mmio.NewCmd())
	cmd.AddCommand(buffer.NewCmd())

	// Ctrl+C cancels the context so watch loops and long buffer tests stop cleanly and handles are
	// closed before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Exit codes distinguish busy, missing and inaccessible devices so scripts can react to them.
	return util.ExitCodeFor(cmd.ExecuteContext(ctx))
}
