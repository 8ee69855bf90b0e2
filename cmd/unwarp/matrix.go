package main

import (
	"fmt"
	"io"
	"math"

	"github.com/spf13/cobra"

	"Unwarp/pkg/geometry"
	"Unwarp/pkg/perspective"
)

func newMatrixCmd() *cobra.Command {
	var (
		corners string
		width   int
		height  int
		inverse bool
	)

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the homography that maps the corners onto the output rectangle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parseCorners(corners)
			if err != nil {
				return err
			}
			w, h := outputSize(points, width, height)
			return printMatrix(cmd.OutOrStdout(), points, w, h, inverse)
		},
	}

	cmd.Flags().StringVarP(&corners, "corners", "c", "", `four corners "x,y x,y x,y x,y" in TL, TR, BR, BL order`)
	cmd.Flags().IntVar(&width, "width", 0, "output width (0 fits the selection)")
	cmd.Flags().IntVar(&height, "height", 0, "output height (0 fits the selection)")
	cmd.Flags().BoolVar(&inverse, "inverse", false, "print the output-to-source transform instead")
	_ = cmd.MarkFlagRequired("corners")

	return cmd
}

func printMatrix(w io.Writer, points []geometry.Point, width, height int, inverse bool) error {
	m, err := perspective.ToRectangle(points, width, height)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "size %dx%d\n", width, height)
	if !inverse {
		writeRows(w, m)
		return nil
	}

	inv, err := m.Inverse()
	if err != nil {
		return err
	}
	writeRows(w, inv)
	fmt.Fprintf(w, "residual %.3e\n", roundTripResidual(m, inv))
	return nil
}

func writeRows(w io.Writer, m perspective.Matrix) {
	for r := 0; r < 3; r++ {
		fmt.Fprintf(w, "% 14.8f % 14.8f % 14.8f\n", m[3*r], m[3*r+1], m[3*r+2])
	}
}

// roundTripResidual is the largest entry of m*inv - I after scaling the
// product so its last entry is 1. Large values flag an ill-conditioned
// selection.
func roundTripResidual(m, inv perspective.Matrix) float64 {
	prod := m.Mul(inv)
	if prod[8] == 0 {
		return math.Inf(1)
	}
	id := perspective.Identity()
	worst := 0.0
	for i := range prod {
		worst = math.Max(worst, math.Abs(prod[i]/prod[8]-id[i]))
	}
	return worst
}
