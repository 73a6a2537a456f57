package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/pixel"
)

// CreateBenchCmd creates the bench command: time every available backend
// on the same conversion and report throughput.
func CreateBenchCmd() *cobra.Command {
	var (
		width      int
		height     int
		srcFormat  string
		dstFormat  string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark conversion backends",
		Long: `Converts the same synthetic frame with every available backend and ` +
			`reports wall time and megapixel throughput. All backends produce ` +
			`identical bytes, so the only difference worth measuring is speed.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			sf, err := pixel.Parse(srcFormat)
			if err != nil {
				return fmt.Errorf("source format: %w", err)
			}
			df, err := pixel.Parse(dstFormat)
			if err != nil {
				return fmt.Errorf("destination format: %w", err)
			}
			if !sf.IsYUV() || !df.IsRGB() {
				return fmt.Errorf("bench converts YUV to RGB, got %s to %s", sf, df)
			}

			job, err := benchJob(sf, df, width, height)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tITERATIONS\tTOTAL\tMPIX/S")

			for _, info := range convert.Backends() {
				if !info.Available || !info.Enabled {
					fmt.Fprintf(w, "%s\t-\t-\t(unavailable)\n", info.Name)
					continue
				}

				run, ok := convert.BackendRun(info.Name)
				if !ok {
					continue
				}

				start := time.Now()
				for i := 0; i < iterations; i++ {
					if err := run(job); err != nil {
						return fmt.Errorf("backend %s: %w", info.Name, err)
					}
				}
				elapsed := time.Since(start)

				mpix := float64(width) * float64(height) * float64(iterations) / 1e6
				fmt.Fprintf(w, "%s\t%d\t%s\t%.1f\n",
					info.Name, iterations, elapsed.Round(time.Millisecond),
					mpix/elapsed.Seconds())
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&width, "width", 1920, "Frame width in pixels")
	cmd.Flags().IntVar(&height, "height", 1080, "Frame height in pixels")
	cmd.Flags().StringVar(&srcFormat, "format", "nv12", "Source pixel format")
	cmd.Flags().StringVar(&dstFormat, "output-format", "rgba32", "Destination pixel format")
	cmd.Flags().IntVar(&iterations, "iterations", 100, "Conversions per backend")

	return cmd
}

// benchJob builds a reusable conversion job over a synthetic gradient.
func benchJob(sf, df pixel.Format, width, height int) (*convert.Job, error) {
	size := sf.FrameSize(width, height)
	if size == 0 {
		return nil, fmt.Errorf("no %s layout for %dx%d", sf, width, height)
	}
	raw := make([]byte, size)
	for i := range raw {
		raw[i] = byte(i * 7)
	}

	var planes [3][]byte
	var strides [3]int
	offset := 0
	for p := 0; p < sf.PlaneCount(); p++ {
		strides[p] = sf.PlaneStride(p, width)
		n := strides[p] * sf.PlaneHeight(p, height)
		planes[p] = raw[offset : offset+n]
		offset += n
	}

	return &convert.Job{
		Src:       planes,
		SrcStride: strides,
		Dst:       make([]byte, df.FrameSize(width, height)),
		DstStride: df.PlaneStride(0, width),
		Width:     width,
		Height:    height,
		Color:     convert.Colorimetry{Matrix: convert.BT601},
		SrcFormat: sf,
		DstFormat: df,
	}, nil
}
