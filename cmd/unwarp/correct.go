package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"Unwarp/pkg/enhance"
	"Unwarp/pkg/geometry"
	"Unwarp/pkg/perspective"
	"Unwarp/pkg/utils"
)

type correctOptions struct {
	corners string
	output  string
	width   int
	height  int
	enhance bool
	clamp   bool
}

func newCorrectCmd(logger *logrus.Logger) *cobra.Command {
	opts := correctOptions{}

	cmd := &cobra.Command{
		Use:   "correct <image>",
		Short: "Warp the quadrilateral given by --corners onto an upright rectangle",
		Example: `  unwarp correct photo.jpg --corners "50,80 350,60 380,280 30,300" -o flat.png
  unwarp correct photo.jpg --corners "50,80 350,60 380,280 30,300" --width 1240 --height 1754 --enhance`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runCorrect(ctx, logger, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.corners, "corners", "c", "", `four corners "x,y x,y x,y x,y" in TL, TR, BR, BL order`)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "corrected.png", "output PNG path")
	cmd.Flags().IntVar(&opts.width, "width", 0, "output width (0 fits the selection)")
	cmd.Flags().IntVar(&opts.height, "height", 0, "output height (0 fits the selection)")
	cmd.Flags().BoolVar(&opts.enhance, "enhance", false, "apply contrast enhancement and edge-preserving smoothing")
	cmd.Flags().BoolVar(&opts.clamp, "clamp", true, "clamp corners into the image bounds")
	_ = cmd.MarkFlagRequired("corners")

	return cmd
}

func runCorrect(ctx context.Context, logger *logrus.Logger, input string, opts correctOptions) error {
	u := utils.New()

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	src, format, err := u.DecodeImage(data)
	if err != nil {
		return err
	}

	points, err := parseCorners(opts.corners)
	if err != nil {
		return err
	}
	if opts.clamp {
		bounds := geometry.Sz(float64(src.Bounds().Dx()), float64(src.Bounds().Dy()))
		for i := range points {
			points[i] = geometry.Clamp(points[i], bounds)
		}
	}

	width, height := outputSize(points, opts.width, opts.height)
	logger.WithFields(logrus.Fields{
		"input":   input,
		"format":  format,
		"corners": points,
		"width":   width,
		"height":  height,
	}).Debug("Correcting image")

	start := time.Now()
	out, err := perspective.Warp(ctx, src, points, width, height)
	if err != nil {
		return err
	}
	if opts.enhance {
		if out, err = enhance.Enhance(ctx, out, enhance.DefaultConfig()); err != nil {
			return err
		}
	}

	encoded, err := u.EncodePNG(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, encoded, 0o644); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"output":  opts.output,
		"elapsed": fmt.Sprintf("%.2fs", time.Since(start).Seconds()),
	}).Info("Image corrected")
	return nil
}
