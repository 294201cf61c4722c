package buffer

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/thinkparq/fpgakit/ctl/internal/cmdfmt"
	"github.com/thinkparq/fpgakit/ctl/internal/util"
	"github.com/thinkparq/fpgakit/ctl/pkg/config"
	backend "github.com/thinkparq/fpgakit/ctl/pkg/ctl/buffer"
	"github.com/thinkparq/fpgakit/ctl/pkg/ctl/device"
)

func newTestCmd() *cobra.Command {
	cfg := backend.Test_Config{Selector: device.NewSelector()}

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Prepare and release DMA buffers on an accelerator",
		Long: `Repeatedly prepare buffers of the given sizes on an accelerator, verify their IO addresses and
release them again. Buffers larger than 4KiB are backed by 2MiB huge pages and buffers larger than
2MiB by 1GiB huge pages, so those have to be reserved first (see /proc/sys/vm/nr_hugepages).

The selection has to match exactly one accelerator.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTestCmd(cmd, cfg)
		},
	}

	util.AddSelectorFlags(cmd.Flags(), &cfg.Selector, false)
	util.SizeSliceVar(cmd.Flags(), &cfg.Sizes, "size", "s", "4KiB", "Sizes of the buffers to prepare in every iteration (for example 4KiB,2MiB).")
	util.SizeSliceVar(cmd.Flags(), &cfg.Split, "split", "", "", "Split every buffer into views of these sizes and print their IO addresses.")
	cmd.Flags().IntVarP(&cfg.Iterations, "iterations", "n", 1, "How often to prepare and release the buffers.")
	cmd.Flags().BoolVar(&cfg.Shared, "shared", false, "Open the accelerator in shared mode.")
	cmd.Flags().BoolVar(&cfg.Quiet, "quiet", false, "Do not log buffers that cannot be prepared as errors.")

	return cmd
}

func runTestCmd(cmd *cobra.Command, cfg backend.Test_Config) error {
	resource, results, err := backend.Test(cmd.Context(), cfg)
	if err != nil {
		if resource != nil {
			return fmt.Errorf("buffer test on %s failed after %d buffers: %w", resource.Address, len(results), err)
		}
		return err
	}

	raw := viper.GetBool(config.RawKey)
	tbl := cmdfmt.NewPrintomatic(
		[]string{"iteration", "wsid", "requested", "length", "pages", "iova", "views"},
		[]string{"iteration", "wsid", "requested", "pages", "iova", "views"},
	)
	defer tbl.PrintRemaining()
	for _, r := range results {
		views := make([]string, 0, len(r.Views))
		for _, v := range r.Views {
			views = append(views, fmt.Sprintf("+%d:%s@%s", v.Offset, util.FormatBytes(v.Length, raw), util.FormatHex(v.IOVA, 64)))
		}
		tbl.AddItem(
			r.Iteration,
			r.WSID,
			util.FormatBytes(r.Requested, raw),
			util.FormatBytes(r.Length, raw),
			r.Pages,
			util.FormatHex(r.IOVA, 64),
			strings.Join(views, "\n"),
		)
	}
	return nil
}
