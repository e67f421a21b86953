// Command synlight renders a source file with ANSI colors chosen by a
// ".sublime-syntax" grammar and a ".tmTheme" color scheme, either as a
// one-shot dump to stdout or as a scrollable full-screen pager (-tty).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	runewidth "github.com/mattn/go-runewidth"

	syntax "github.com/friedelschoen/go-syntax"
	"github.com/friedelschoen/go-syntax/detect"
	"github.com/friedelschoen/go-syntax/highlight"
	"github.com/friedelschoen/go-syntax/theme"
)

var grammarDir = "share/synlight/grammars"
var themeDir = "share/synlight/themes"

func main() {
	var grammarToken, themeName string
	var doList, useTTY bool
	flag.StringVar(&grammarToken, "syntax", "", "grammar extension or name (default: detect from filename/content)")
	flag.StringVar(&themeName, "theme", "default", "theme name (looked up under the theme search path as NAME.tmTheme)")
	flag.BoolVar(&doList, "list", false, "list known grammars and exit")
	flag.BoolVar(&useTTY, "tty", false, "open a scrollable full-screen pager instead of dumping to stdout")
	flag.Parse()

	userdir, userdirErr := os.UserHomeDir()

	set, loadErrs := syntax.LoadSyntaxSetFromDir(filepath.Join("/usr", grammarDir), true)
	if userdirErr == nil {
		userSet, userErrs := syntax.LoadSyntaxSetFromDir(filepath.Join(userdir, ".local", grammarDir), true)
		for _, def := range userSet.Syntaxes {
			if def.Name != "Plain Text" {
				set.AddSyntax(def)
			}
		}
		loadErrs = append(loadErrs, userErrs...)
	}
	set.Link()
	for _, err := range loadErrs {
		fmt.Fprintf(os.Stderr, "synlight: %v\n", err)
	}

	if doList {
		fmt.Println("Grammars:")
		for _, def := range set.Syntaxes {
			fmt.Printf("- %s (%s): %s\n", def.Name, def.Scope.String(), strings.Join(def.FileExtensions, ", "))
		}
		return
	}

	var sourceName string
	sourceFile := os.Stdin
	if flag.NArg() > 0 {
		sourceName = flag.Arg(0)
		var err error
		sourceFile, err = os.Open(sourceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "synlight: failed to open %q: %v\n", sourceName, err)
			os.Exit(1)
		}
		defer sourceFile.Close()
	}

	sourceBytes, err := io.ReadAll(sourceFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synlight: failed to read source: %v\n", err)
		os.Exit(1)
	}

	var def *syntax.SyntaxDefinition
	if grammarToken != "" {
		def = detect.ForToken(set, grammarToken)
	} else if sourceName != "" {
		def = detect.ForFile(set, sourceName, sourceBytes).Syntax
	} else {
		def = detect.ForFile(set, "", sourceBytes).Syntax
	}

	th, err := loadTheme(themeName, userdir, userdirErr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synlight: failed to load theme %q: %v\n", themeName, err)
		os.Exit(1)
	}
	highlighter := highlight.NewHighlighter(th)

	lines := renderLines(def, highlighter, string(sourceBytes))

	if useTTY {
		if err := runPager(lines); err != nil {
			fmt.Fprintf(os.Stderr, "synlight: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeANSI(os.Stdout, lines)
}

func loadTheme(name, userdir string, userdirErr error) (*theme.Theme, error) {
	themePath := filepath.Join("/usr", themeDir, name+".tmTheme")
	if _, err := os.Stat(themePath); err != nil {
		if userdirErr == nil {
			themePath = filepath.Join(userdir, ".local", themeDir, name+".tmTheme")
		}
		if _, err := os.Stat(themePath); err != nil && name == "default" {
			return theme.Default()
		}
	}
	return theme.LoadFromFile(themePath)
}

// renderLines parses source line by line and highlights each one, carrying
// the scope stack and the highlighter's style caches across line breaks.
func renderLines(def *syntax.SyntaxDefinition, h *highlight.Highlighter, source string) [][]highlight.Span {
	ps := syntax.NewParseState(def)
	state := highlight.NewHighlightState(h, syntax.NewScopeStack())

	var lines [][]highlight.Span
	for _, raw := range strings.SplitAfter(source, "\n") {
		line := strings.TrimSuffix(raw, "\n")
		if line == "" && raw == "" {
			continue
		}
		ops := ps.ParseLine(line)
		lines = append(lines, highlight.Highlight(state, h, ops, line))
	}
	return lines
}

// writeANSI dumps every span as 24-bit-color SGR-wrapped text, resetting
// attributes between spans so a later terminal dump can't inherit stray
// styling from the one before it.
func writeANSI(w io.Writer, lines [][]highlight.Span) {
	for _, spans := range lines {
		for _, sp := range spans {
			fmt.Fprint(w, sgrFor(sp.Style))
			fmt.Fprint(w, sp.Text)
		}
		fmt.Fprint(w, "\033[0m\n")
	}
}

func sgrFor(s theme.Style) string {
	var csi strings.Builder
	csi.WriteString("\033[0")
	if s.FontStyle.Has(theme.Bold) {
		csi.WriteString(";1")
	}
	if s.FontStyle.Has(theme.Italic) {
		csi.WriteString(";3")
	}
	if s.FontStyle.Has(theme.Underline) {
		csi.WriteString(";4")
	}
	if s.FontStyle.Has(theme.Strikethrough) {
		csi.WriteString(";9")
	}
	fmt.Fprintf(&csi, ";38;2;%d;%d;%d", s.Foreground.R, s.Foreground.G, s.Foreground.B)
	fmt.Fprintf(&csi, ";48;2;%d;%d;%d", s.Background.R, s.Background.G, s.Background.B)
	csi.WriteByte('m')
	return csi.String()
}

func tcellColor(c theme.Color) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

func tcellStyle(s theme.Style) tcell.Style {
	st := tcell.StyleDefault.Foreground(tcellColor(s.Foreground)).Background(tcellColor(s.Background))
	st = st.Bold(s.FontStyle.Has(theme.Bold)).Italic(s.FontStyle.Has(theme.Italic))
	st = st.Underline(s.FontStyle.Has(theme.Underline)).StrikeThrough(s.FontStyle.Has(theme.Strikethrough))
	return st
}

// runPager opens a full-screen tcell view over the already-highlighted
// lines and lets the user scroll with the arrow keys, j/k or PageUp/Down,
// quitting on 'q' or Ctrl+Q.
func runPager(lines [][]highlight.Span) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()
	screen.SetStyle(tcell.StyleDefault)

	top := 0
	draw := func() {
		screen.Clear()
		_, h := screen.Size()
		for row := 0; row < h && top+row < len(lines); row++ {
			x := 0
			for _, sp := range lines[top+row] {
				st := tcellStyle(sp.Style)
				for _, r := range sp.Text {
					screen.SetContent(x, row, r, nil, st)
					x += runewidth.RuneWidth(r)
				}
			}
		}
		screen.Show()
	}
	draw()

	for {
		ev := screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventResize:
			screen.Sync()
			draw()
		case *tcell.EventKey:
			_, h := screen.Size()
			switch {
			case ev.Key() == tcell.KeyCtrlQ || ev.Rune() == 'q' || ev.Key() == tcell.KeyEscape:
				return nil
			case ev.Key() == tcell.KeyDown || ev.Rune() == 'j':
				top = clamp(top+1, 0, maxTop(len(lines), h))
			case ev.Key() == tcell.KeyUp || ev.Rune() == 'k':
				top = clamp(top-1, 0, maxTop(len(lines), h))
			case ev.Key() == tcell.KeyPgDn:
				top = clamp(top+h, 0, maxTop(len(lines), h))
			case ev.Key() == tcell.KeyPgUp:
				top = clamp(top-h, 0, maxTop(len(lines), h))
			}
			draw()
		}
	}
}

func maxTop(numLines, height int) int {
	if numLines <= height {
		return 0
	}
	return numLines - height
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
