package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{"             _                     ", "#34d399"},
	{" _ __   __ _| | __ ___   _____ _ __ ", "#2dd4bf"},
	{"| '_ \\ / _` | |/ _` \\ \\ / / _ \\ '__|", "#22d3ee"},
	{"| |_) | (_| | | (_| |\\ V /  __/ |   ", "#38bdf8"},
	{"| .__/ \\__,_|_|\\__,_| \\_/ \\___|_|   ", "#60a5fa"},
	{"|_|                                 ", "#818cf8"},
}

// PrintBanner writes the palaver banner, colored when out supports it.
func PrintBanner(out io.Writer, version string) {
	output := termenv.NewOutput(out)
	p := output.ColorProfile()

	fmt.Fprintln(out)
	for _, l := range bannerLines {
		fmt.Fprintln(out, output.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(out, output.String("  palaver "+version).Faint())
	fmt.Fprintln(out)
}
