// Package theme loads Sublime/TextMate ".tmTheme" color schemes: XML plists
// mapping scope selectors to foreground/background/font-style overrides,
// plus a handful of editor-chrome settings (caret, gutter, selection, ...).
package theme

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/friedelschoen/go-syntax"
	"howett.net/plist"
)

// Color is an RGBA color as specified literally in the theme; no color
// space conversion is performed.
type Color struct {
	R, G, B, A uint8
}

// Black and White are the defaults a Style falls back to when a theme
// supplies neither a foreground nor a background for a given scope.
var (
	Black = Color{0, 0, 0, 0xFF}
	White = Color{0xFF, 0xFF, 0xFF, 0xFF}
)

// ParseColor parses a "#rgb", "#rrggbb" or "#rrggbbaa" hex string.
func ParseColor(s string) (Color, error) {
	if !strings.HasPrefix(s, "#") {
		return Color{}, fmt.Errorf("theme: color %q missing '#'", s)
	}
	hex := s[1:]
	d := make([]uint8, len(hex))
	for i := 0; i < len(hex); i++ {
		n, err := strconv.ParseUint(hex[i:i+1], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("theme: bad color %q: %w", s, err)
		}
		d[i] = uint8(n)
	}
	switch len(d) {
	case 3:
		return Color{R: d[0]*17, G: d[1]*17, B: d[2]*17, A: 0xFF}, nil
	case 6:
		return Color{R: d[0]*16 + d[1], G: d[2]*16 + d[3], B: d[4]*16 + d[5], A: 0xFF}, nil
	case 8:
		return Color{R: d[0]*16 + d[1], G: d[2]*16 + d[3], B: d[4]*16 + d[5], A: d[6]*16 + d[7]}, nil
	default:
		return Color{}, fmt.Errorf("theme: color %q has unexpected length", s)
	}
}

// FontStyle is a bitset of the font-weight/decoration keywords a theme rule
// can name in its "fontStyle" string. Strikethrough is carried in addition
// to the three the format most commonly uses (bold/italic/underline)
// because modern Sublime color schemes do write "strikethrough" in
// practice, and a rule that never occurs in a given theme simply never sets
// the bit.
type FontStyle uint8

const (
	Bold FontStyle = 1 << iota
	Italic
	Underline
	Strikethrough
)

// Has reports whether every bit of want is set in s.
func (s FontStyle) Has(want FontStyle) bool { return s&want == want }

// ParseFontStyle parses a whitespace-separated "fontStyle" value such as
// "bold italic". "normal" and "regular" are accepted as explicit no-ops.
func ParseFontStyle(s string) (FontStyle, error) {
	var fs FontStyle
	for _, field := range strings.Fields(s) {
		switch field {
		case "bold":
			fs |= Bold
		case "italic":
			fs |= Italic
		case "underline":
			fs |= Underline
		case "strikethrough":
			fs |= Strikethrough
		case "normal", "regular":
		default:
			return 0, fmt.Errorf("theme: unknown fontStyle %q", field)
		}
	}
	return fs, nil
}

// UnderlineOption distinguishes the few cursor/bracket-match underline
// styles a theme's settings section can request.
type UnderlineOption int

const (
	UnderlineNone UnderlineOption = iota
	UnderlinePlain
	UnderlineStippled
	UnderlineSquiggly
)

func parseUnderlineOption(s string) (UnderlineOption, error) {
	switch s {
	case "underline":
		return UnderlinePlain, nil
	case "stippled_underline":
		return UnderlineStippled, nil
	case "squiggly_underline":
		return UnderlineSquiggly, nil
	default:
		return 0, fmt.Errorf("theme: unknown underline option %q", s)
	}
}

// Style is a fully resolved foreground/background/font-style triple, the
// shape a highlighter emits per span: every field always has a value.
type Style struct {
	Foreground Color
	Background Color
	FontStyle  FontStyle
}

// DefaultStyle is the style a highlighter starts from before any theme rule
// has matched: black-on-white, no font style.
var DefaultStyle = Style{Foreground: Black, Background: White}

// Apply returns the style produced by layering modifier over s: any field
// modifier leaves unset keeps s's value.
func (s Style) Apply(modifier StyleModifier) Style {
	out := s
	if modifier.Foreground != nil {
		out.Foreground = *modifier.Foreground
	}
	if modifier.Background != nil {
		out.Background = *modifier.Background
	}
	if modifier.FontStyle != nil {
		out.FontStyle = *modifier.FontStyle
	}
	return out
}

// StyleModifier is the partial style a single theme rule contributes: only
// the fields a ".tmTheme" entry actually specifies are set.
type StyleModifier struct {
	Foreground *Color
	Background *Color
	FontStyle  *FontStyle
}

// Apply returns the modifier produced by layering other over m: a field set
// in other wins, otherwise m's own value (which may itself be unset)
// carries through. Used to cascade multiple matching ThemeItems by
// ascending match power before Style.Apply folds the result onto the base
// style.
func (m StyleModifier) Apply(other StyleModifier) StyleModifier {
	out := m
	if other.Foreground != nil {
		out.Foreground = other.Foreground
	}
	if other.Background != nil {
		out.Background = other.Background
	}
	if other.FontStyle != nil {
		out.FontStyle = other.FontStyle
	}
	return out
}

// ThemeItem is one "settings" array entry targeting scopes other than the
// theme's own global defaults.
type ThemeItem struct {
	Name     string
	Scope    syntax.ScopeSelectors
	Style    StyleModifier
}

// ThemeSettings holds the editor-chrome colors carried by the theme's first,
// scope-less "settings" entry: caret, gutter, selection and similar colors
// that style the editor UI rather than highlighted text.
type ThemeSettings struct {
	Foreground *Color
	Background *Color
	Caret      *Color

	LineHighlight *Color

	BracketContentsForeground *Color
	BracketContentsOptions    *UnderlineOption
	BracketsForeground        *Color
	BracketsBackground        *Color
	BracketsOptions           *UnderlineOption

	TagsForeground *Color
	TagsOptions    *UnderlineOption

	FindHighlight           *Color
	FindHighlightForeground *Color

	Gutter           *Color
	GutterForeground *Color

	Selection           *Color
	SelectionBackground *Color
	SelectionBorder     *Color
	InactiveSelection   *Color

	Guide      *Color
	ActiveGuide *Color
	StackGuide  *Color

	Highlight           *Color
	HighlightForeground *Color
}

// Theme is a parsed ".tmTheme" color scheme.
type Theme struct {
	Name     string
	Author   string
	Settings ThemeSettings
	Scopes   []ThemeItem
}

// --- raw plist shape --------------------------------------------------

type themePlist struct {
	Name           string              `plist:"name"`
	Author         string              `plist:"author"`
	Settings       []themeItemPlist    `plist:"settings"`
	GutterSettings *gutterSettingsPlist `plist:"gutterSettings"`
}

// gutterSettingsPlist is the modern, top-level sibling of "settings" that
// some themes use instead of (or alongside) the legacy settings.gutter keys.
type gutterSettingsPlist struct {
	Background string `plist:"background"`
	Foreground string `plist:"foreground"`
}

type themeItemPlist struct {
	Name     string               `plist:"name"`
	Scope    string               `plist:"scope"`
	Settings map[string]string `plist:"settings"`
}

// LoadFromBytes parses a ".tmTheme" XML plist document.
func LoadFromBytes(data []byte) (*Theme, error) {
	var raw themePlist
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if len(raw.Settings) == 0 {
		return nil, fmt.Errorf("theme: no settings entries")
	}

	t := &Theme{Name: raw.Name, Author: raw.Author}

	settings, err := parseThemeSettings(raw.Settings[0].Settings)
	if err != nil {
		return nil, err
	}
	t.Settings = settings

	if raw.GutterSettings != nil {
		// The modern gutterSettings dict only fills in what the legacy
		// settings.gutter/gutterForeground keys left unset.
		if t.Settings.Gutter == nil {
			if c, err := ParseColor(raw.GutterSettings.Background); err == nil {
				t.Settings.Gutter = &c
			}
		}
		if t.Settings.GutterForeground == nil {
			if c, err := ParseColor(raw.GutterSettings.Foreground); err == nil {
				t.Settings.GutterForeground = &c
			}
		}
	}

	for _, item := range raw.Settings[1:] {
		if item.Scope == "" {
			// A theme may legally carry more than one scope-less entry;
			// anything past the first is ignored rather than rejected, since
			// some real-world themes do this by accident.
			continue
		}
		sel, err := syntax.ParseScopeSelectors(item.Scope)
		if err != nil {
			return nil, fmt.Errorf("theme: scope %q: %w", item.Scope, err)
		}
		mod, err := parseStyleModifier(item.Settings)
		if err != nil {
			return nil, fmt.Errorf("theme: item %q: %w", item.Name, err)
		}
		t.Scopes = append(t.Scopes, ThemeItem{Name: item.Name, Scope: sel, Style: mod})
	}
	return t, nil
}

// LoadFromFile reads and parses a ".tmTheme" file from disk.
func LoadFromFile(pathname string) (*Theme, error) {
	data, err := os.ReadFile(pathname)
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(data)
}

func parseStyleModifier(m map[string]string) (StyleModifier, error) {
	var mod StyleModifier
	if v, ok := m["foreground"]; ok {
		c, err := ParseColor(v)
		if err != nil {
			return mod, err
		}
		mod.Foreground = &c
	}
	if v, ok := m["background"]; ok {
		c, err := ParseColor(v)
		if err != nil {
			return mod, err
		}
		mod.Background = &c
	}
	if v, ok := m["fontStyle"]; ok {
		fs, err := ParseFontStyle(v)
		if err != nil {
			return mod, err
		}
		mod.FontStyle = &fs
	}
	return mod, nil
}

func parseThemeSettingsColor(m map[string]string, key string) (*Color, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	c, err := ParseColor(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &c, nil
}

func parseThemeSettingsUnderline(m map[string]string, key string) (*UnderlineOption, error) {
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	u, err := parseUnderlineOption(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &u, nil
}

func parseThemeSettings(m map[string]string) (ThemeSettings, error) {
	var s ThemeSettings
	var err error

	colorFields := []struct {
		key string
		dst **Color
	}{
		{"foreground", &s.Foreground},
		{"background", &s.Background},
		{"caret", &s.Caret},
		{"lineHighlight", &s.LineHighlight},
		{"bracketContentsForeground", &s.BracketContentsForeground},
		{"bracketsForeground", &s.BracketsForeground},
		{"bracketsBackground", &s.BracketsBackground},
		{"tagsForeground", &s.TagsForeground},
		{"findHighlight", &s.FindHighlight},
		{"findHighlightForeground", &s.FindHighlightForeground},
		{"gutter", &s.Gutter},
		{"gutterForeground", &s.GutterForeground},
		{"selection", &s.Selection},
		{"selectionBackground", &s.SelectionBackground},
		{"selectionBorder", &s.SelectionBorder},
		{"inactiveSelection", &s.InactiveSelection},
		{"guide", &s.Guide},
		{"activeGuide", &s.ActiveGuide},
		{"stackGuide", &s.StackGuide},
		{"highlight", &s.Highlight},
		{"highlightForeground", &s.HighlightForeground},
	}
	for _, f := range colorFields {
		*f.dst, err = parseThemeSettingsColor(m, f.key)
		if err != nil {
			return s, err
		}
	}

	underlineFields := []struct {
		key string
		dst **UnderlineOption
	}{
		{"bracketContentsOptions", &s.BracketContentsOptions},
		{"bracketsOptions", &s.BracketsOptions},
		{"tagsOptions", &s.TagsOptions},
	}
	for _, f := range underlineFields {
		*f.dst, err = parseThemeSettingsUnderline(m, f.key)
		if err != nil {
			return s, err
		}
	}

	return s, nil
}
