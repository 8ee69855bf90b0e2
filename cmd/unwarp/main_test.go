package main

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Unwarp/pkg/geometry"
	"Unwarp/pkg/perspective"
)

func TestParseCorners(t *testing.T) {
	points, err := parseCorners("50,80 350,60;380,280  30,300")
	require.NoError(t, err)
	assert.Equal(t, []geometry.Point{{X: 50, Y: 80}, {X: 350, Y: 60}, {X: 380, Y: 280}, {X: 30, Y: 300}}, points)

	for _, raw := range []string{"", "1,2 3,4 5,6", "1,2 3,4 5,6 7", "1,2 3,4 5,6 a,8"} {
		_, err := parseCorners(raw)
		assert.Error(t, err, raw)
	}
}

func TestMatrixCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(logrus.New())
	root.SetOut(&out)
	root.SetArgs([]string{"matrix", "--corners", "0,0 100,0 100,50 0,50", "--width", "200", "--height", "100"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "size 200x100", lines[0])
	assertRow(t, []float64{2, 0, 0}, lines[1])
	assertRow(t, []float64{0, 2, 0}, lines[2])
	assertRow(t, []float64{0, 0, 1}, lines[3])
}

func assertRow(t *testing.T, want []float64, line string) {
	t.Helper()
	fields := strings.Fields(line)
	require.Len(t, fields, len(want))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		require.NoError(t, err)
		assert.InDelta(t, want[i], v, 1e-6)
	}
}

func TestMatrixCommand_Inverse(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(logrus.New())
	root.SetOut(&out)
	root.SetArgs([]string{"matrix", "--corners", "0,0 100,0 100,50 0,50", "--width", "200", "--height", "100", "--inverse"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assertRow(t, []float64{0.5, 0, 0}, lines[1])
	assertRow(t, []float64{0, 0.5, 0}, lines[2])
	assertRow(t, []float64{0, 0, 1}, lines[3])

	fields := strings.Fields(lines[4])
	require.Len(t, fields, 2)
	assert.Equal(t, "residual", fields[0])
	residual, err := strconv.ParseFloat(fields[1], 64)
	require.NoError(t, err)
	assert.Less(t, residual, 1e-9)
}

func TestRoundTripResidual(t *testing.T) {
	m, err := perspective.ToRectangle([]geometry.Point{{X: 50, Y: 80}, {X: 350, Y: 60}, {X: 380, Y: 280}, {X: 30, Y: 300}}, 400, 300)
	require.NoError(t, err)
	inv, err := m.Inverse()
	require.NoError(t, err)
	assert.Less(t, roundTripResidual(m, inv), 1e-9)

	assert.Greater(t, roundTripResidual(m, perspective.Identity()), 1e-3)
}

func TestMatrixCommand_Degenerate(t *testing.T) {
	root := newRootCmd(logrus.New())
	root.SetOut(io.Discard)
	root.SetArgs([]string{"matrix", "--corners", "0,0 10,10 20,20 30,30"})
	assert.Error(t, root.Execute())
}

func TestCorrectCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.png")
	output := filepath.Join(dir, "out.png")

	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 6), G: uint8(y * 8), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(input, buf.Bytes(), 0o644))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	root := newRootCmd(logger)
	root.SetArgs([]string{"correct", input, "--corners", "5,5 35,5 35,25 5,25", "-o", output, "--enhance"})
	require.NoError(t, root.Execute())

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 30, 20), decoded.Bounds())
}
