package display

import (
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
)

const bannerArt = `
 _        _ _    _
| |_ __ _| | | _| |__   _____  __
| __/ _' | | |/ / '_ \ / _ \ \/ /
| || (_| | |   <| |_) | (_) >  <
 \__\__,_|_|_|\_\_.__/ \___/_/\_\
`

// RenderBanner returns the startup art followed by the given hint lines,
// each block centred for the current terminal width.
func RenderBanner(hints ...string) string {
	var b strings.Builder
	width := termWidth()
	for _, l := range centre(strings.Split(strings.Trim(bannerArt, "\n"), "\n"), width) {
		b.WriteString(bannerStyle.Render(l))
		b.WriteByte('\n')
	}
	if len(hints) > 0 {
		b.WriteByte('\n')
		for _, l := range centre(hints, width) {
			b.WriteString(secondaryStyle.Render(l))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// centre pads every line by the same amount so the block's widest line
// sits in the middle of width columns. The block keeps its shape.
func centre(lines []string, width int) []string {
	widest := 0
	for _, l := range lines {
		widest = max(widest, len(l))
	}
	pad := ""
	if width > widest {
		pad = strings.Repeat(" ", (width-widest)/2)
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = pad + l
	}
	return out
}

// termWidth returns the terminal's column count, or 80 when stdout is not
// a terminal.
func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
