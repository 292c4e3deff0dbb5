package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"figlens/internal/config"
	"figlens/internal/figma"
	"figlens/internal/markup"
	"figlens/internal/preview"
	"figlens/internal/serialize"

	"github.com/spf13/cobra"
)

func previewCmd() *cobra.Command {
	var (
		out    string
		width  int
		height int
	)

	cmd := &cobra.Command{
		Use:   "preview [file]",
		Short: "Render a selection dump to a PNG",
		Long: `Reads a JSON scene dump, generates markup for it, and screenshots the result
in headless Chrome. Use "-" to read from stdin. Requires Chrome or Chromium.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}

			objs, err := figma.ParseNodes(data)
			if err != nil {
				return fmt.Errorf("parse scene dump: %w", err)
			}
			if len(objs) == 0 {
				return fmt.Errorf("dump contains no nodes")
			}

			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				cfg = config.Defaults()
			}
			rules, err := serialize.LoadRules(cfg.Markup.RulesPath)
			if err != nil {
				return fmt.Errorf("category rules: %w", err)
			}

			nodes := serialize.New(serialize.WithCategories(rules)).SerializeAll(objs)
			html := markup.NewGenerator(cfg.Markup.CenterTolerance).Generate(nodes)

			// Viewport follows the root frame unless overridden by flags.
			if geo := nodes[0].Geometry; geo != nil {
				if width <= 0 {
					width = geo.Width
				}
				if height <= 0 {
					height = geo.Height
				}
			}

			renderer := preview.New(preview.Config{
				ChromePath: cfg.Preview.ChromePath,
				Width:      cfg.Preview.Width,
				Height:     cfg.Preview.Height,
				Logger:     logger,
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			png, err := renderer.Render(ctx, html, width, height)
			if err != nil {
				return fmt.Errorf("render: %w", err)
			}

			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("preview written", "file", out, "bytes", len(png))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "preview.png", "output PNG path")
	cmd.Flags().IntVar(&width, "width", 0, "viewport width (default: root frame width)")
	cmd.Flags().IntVar(&height, "height", 0, "viewport height (default: root frame height)")
	return cmd
}
