package errorreg

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/errorreg"
)

const watchFlag = "watch"

type listCfg struct {
	watchInterval time.Duration
	// Exit with PartialSuccess if any listed register is not zero.
	failOnErrors bool
}

func newListCmd() *cobra.Command {
	frontendCfg := listCfg{}
	cfg := backend.GetErrors_Config{Selector: device.NewSelector()}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the error registers of FPGA devices and accelerators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed(watchFlag) {
				return runListCmd(cmd.Context(), cfg, frontendCfg)
			}
			ticker := time.NewTicker(frontendCfg.watchInterval)
			defer ticker.Stop()
			for {
				t := util.TermRefresher{}
				if err := t.StartRefresh(); err != nil {
					return err
				}
				if err := runListCmd(cmd.Context(), cfg, frontendCfg); err != nil {
					t.FinishRefresh()
					return err
				}
				t.FinishRefresh(util.WithTermFooter(fmt.Sprintf("Refreshing every %s until Ctrl+C (last refresh: %s).", frontendCfg.watchInterval, time.Now().Format(time.TimeOnly))))
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	util.AddSelectorFlags(cmd.Flags(), &cfg.Selector, true)
	cmd.Flags().BoolVar(&cfg.NonZeroOnly, "nonzero", false, "Only list registers that have a value other than zero.")
	cmd.Flags().StringSliceVar(&cfg.Names, "name", nil, "Only list registers with these names (for example errors,first_error).")
	cmd.Flags().DurationVar(&frontendCfg.watchInterval, watchFlag, 1*time.Second, "Periodically re-read the registers until cancelled with Ctrl+C.")
	cmd.Flags().BoolVar(&frontendCfg.failOnErrors, "fail-on-errors", false, "Exit with a non-zero code if any listed register is not zero.")

	return cmd
}

func runListCmd(ctx context.Context, cfg backend.GetErrors_Config, frontendCfg listCfg) error {
	registers, err := backend.GetErrors(ctx, cfg)
	if err != nil {
		return err
	}

	allColumns := []string{"type", "address", "sysfs-path", "index", "register", "value", "clearable"}
	defaultColumns := []string{"type", "address", "register", "value", "clearable"}

	tbl := cmdfmt.NewPrintomatic(allColumns, defaultColumns)
	defer tbl.PrintRemaining()
	set := 0
	for _, r := range registers {
		if r.Value != 0 {
			set++
		}
		tbl.AddItem(
			r.Resource.ObjType,
			r.Resource.Address,
			r.Resource.SysfsPath,
			r.Index,
			r.Name,
			util.FormatHex(r.Value, 64),
			r.CanClear,
		)
	}

	if frontendCfg.failOnErrors && set > 0 {
		return util.NewCtlError(fmt.Errorf("%d error registers are set", set), util.PartialSuccess)
	}
	return nil
}
