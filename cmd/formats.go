package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/framegrab/internal/convert"
	"github.com/smazurov/framegrab/internal/pixel"
)

// CreateFormatsCmd creates the formats command: list pixel formats and
// conversion backends available on this host.
func CreateFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List pixel formats and conversion backends",
		Run: func(_ *cobra.Command, _ []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "FORMAT\tMODEL\tPLANES\tBYTES/PX")
			for _, f := range pixel.Formats {
				model := "rgb"
				if f.IsYUV() {
					model = "yuv"
				}
				bpp := "-"
				if f.BytesPerPixel() > 0 {
					bpp = fmt.Sprintf("%d", f.BytesPerPixel())
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", f, model, f.PlaneCount(), bpp)
			}
			fmt.Fprintln(w)

			fmt.Fprintln(w, "BACKEND\tPRIORITY\tAVAILABLE\tENABLED")
			for _, b := range convert.Backends() {
				fmt.Fprintf(w, "%s\t%d\t%v\t%v\n", b.Name, b.Priority, b.Available, b.Enabled)
			}
			w.Flush()
		},
	}
}
