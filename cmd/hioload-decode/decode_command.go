package main

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/facade"
	"github.com/momentics/hioload-decode/format"
)

type decodeResult struct {
	path    string
	success bool
	dims    [3]int
	alpha   bool
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var discard int
	var alpha bool
	var substrate string

	cmd := &cobra.Command{
		Use:   "decode <file>...",
		Short: "Decode ZRAW, PNG, JPEG or GIF files and report the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.config()
			if err != nil {
				return err
			}
			if substrate != "" {
				cfg.Substrate = substrate
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			pool, err := facade.New(cfg, facade.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("start decode pool: %w", err)
			}
			defer pool.Shutdown()

			var mu sync.Mutex
			results := make([]decodeResult, len(args))
			for i, path := range args {
				payload, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				results[i].path = path
				slot := &results[i]
				pool.Submit(openImage(payload), discard, alpha, api.ResponderFunc(
					func(success bool, primary, aux api.RawImage) {
						mu.Lock()
						defer mu.Unlock()
						slot.success = success
						if primary != nil {
							slot.dims = [3]int{primary.Width(), primary.Height(), primary.Components()}
						}
						slot.alpha = aux != nil && aux.HasData()
					}))
			}

			interval := cfg.TickInterval
			for pool.Tick(interval) > 0 {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}

			mu.Lock()
			defer mu.Unlock()
			out := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if !r.success {
					failed++
					fmt.Fprintf(out, "%s: failed\n", r.path)
					continue
				}
				fmt.Fprintf(out, "%s: %dx%d, %d components", r.path, r.dims[0], r.dims[1], r.dims[2])
				if r.alpha {
					fmt.Fprint(out, ", alpha")
				}
				fmt.Fprintln(out)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed to decode", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&discard, "discard", "d", -1, "Discard level (0 = full resolution, negative keeps the file's own)")
	cmd.Flags().BoolVar(&alpha, "alpha", false, "Also decode the alpha channel")
	cmd.Flags().StringVar(&substrate, "substrate", "", "Override the execution substrate (futures or executor)")
	return cmd
}

// openImage picks a decoder by content.
func openImage(payload []byte) api.FormattedImage {
	if bytes.HasPrefix(payload, []byte("ZRAW")) {
		return format.NewZRAW(payload)
	}
	return format.NewStdImage(payload)
}
