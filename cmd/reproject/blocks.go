package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pspoerri/mapreproject/internal/raster"
	"github.com/pspoerri/mapreproject/internal/reproject"
)

var (
	blocksSize int
	blocksPNG  string
)

var blocksCmd = &cobra.Command{
	Use:   "blocks WIDTHxHEIGHT",
	Short: "Print how an image of the given size is split into blocks",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlocks,
}

func init() {
	blocksCmd.Flags().IntVar(&blocksSize, "block-size", reproject.DefaultBlockSize, "Block size in pixels")
	blocksCmd.Flags().StringVar(&blocksPNG, "png", "", "Also write the block layout as a PNG")
	rootCmd.AddCommand(blocksCmd)
}

func runBlocks(cmd *cobra.Command, args []string) error {
	size, err := parseSize(args[0])
	if err != nil {
		return err
	}
	blocks := reproject.GetBlocks(size.Width, size.Height, blocksSize)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s in %d blocks (block size %d)\n", size, len(blocks), blocksSize)
	for i, b := range blocks {
		fmt.Fprintf(out, "%4d  %-24s %dx%d\n", i, b, b.Width(), b.Height())
	}

	if blocksPNG == "" {
		return nil
	}
	img, err := raster.New(size.Width, size.Height, nil, raster.Nearest)
	if err != nil {
		return err
	}
	img.Fill(raster.NewColor(255, 255, 255, 255))
	reproject.DrawBlocks(img, blocks)
	f, err := os.Create(blocksPNG)
	if err != nil {
		return err
	}
	if err := img.WritePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", blocksPNG, err)
	}
	return f.Close()
}
