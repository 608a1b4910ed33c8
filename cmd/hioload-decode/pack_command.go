package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/momentics/hioload-decode/format"
	"github.com/momentics/hioload-decode/raw"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	var discard int

	cmd := &cobra.Command{
		Use:   "pack <image> <out.zraw>",
		Short: "Convert a PNG, JPEG or GIF file into a ZRAW container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			src := format.NewStdImage(payload)
			if !src.UpdateData() {
				return fmt.Errorf("%s: unsupported or corrupt image", args[0])
			}
			if discard >= 0 {
				src.SetDiscardLevel(discard)
			}
			img := raw.New(src.Width(), src.Height(), src.Components(), nil)
			defer img.Release()
			if !src.Decode(img, 0) || !img.HasData() {
				return fmt.Errorf("%s: decode failed", args[0])
			}
			packed, err := format.EncodeZRAW(img.Width(), img.Height(), img.Components(), img.Data())
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], packed, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			logger.Info("packed", "source", args[0], "format", src.Format(),
				"width", img.Width(), "height", img.Height(), "bytes", len(packed))
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx%d, %d components, %d bytes\n",
				args[1], img.Width(), img.Height(), img.Components(), len(packed))
			return nil
		},
	}

	cmd.Flags().IntVarP(&discard, "discard", "d", -1, "Discard level applied before packing")
	return cmd
}
