package theme

import "github.com/friedelschoen/go-syntax"

// builtinRule is one row of the bundled default theme: a scope selector
// string and the style it contributes, kept as plain data so Default can
// build the Theme once and report a parse error instead of panicking on a
// malformed selector.
type builtinRule struct {
	scope string
	style StyleModifier
}

func colorPtr(c Color) *Color        { return &c }
func fontPtr(f FontStyle) *FontStyle { return &f }

// builtinPalette follows the color-naming conventions chroma's bundled
// "monokai" style uses for the same scope families (background/foreground,
// comment, string, keyword, number, name.function, name.constant), so a
// reader familiar with that ecosystem recognizes the defaults immediately.
var builtinPalette = []builtinRule{
	{"comment", StyleModifier{Foreground: colorPtr(Color{0x75, 0x71, 0x5E, 0xFF}), FontStyle: fontPtr(Italic)}},
	{"string", StyleModifier{Foreground: colorPtr(Color{0xE6, 0xDB, 0x74, 0xFF})}},
	{"constant.numeric", StyleModifier{Foreground: colorPtr(Color{0xAE, 0x81, 0xFF, 0xFF})}},
	{"constant.language", StyleModifier{Foreground: colorPtr(Color{0xAE, 0x81, 0xFF, 0xFF})}},
	{"keyword", StyleModifier{Foreground: colorPtr(Color{0xF9, 0x26, 0x72, 0xFF})}},
	{"storage", StyleModifier{Foreground: colorPtr(Color{0xF9, 0x26, 0x72, 0xFF})}},
	{"entity.name.function", StyleModifier{Foreground: colorPtr(Color{0xA6, 0xE2, 0x2E, 0xFF})}},
	{"entity.name.class", StyleModifier{Foreground: colorPtr(Color{0xA6, 0xE2, 0x2E, 0xFF}), FontStyle: fontPtr(Underline)}},
	{"entity.name.tag", StyleModifier{Foreground: colorPtr(Color{0xF9, 0x26, 0x72, 0xFF})}},
	{"entity.other.attribute-name", StyleModifier{Foreground: colorPtr(Color{0xA6, 0xE2, 0x2E, 0xFF})}},
	{"variable.parameter", StyleModifier{Foreground: colorPtr(Color{0xFD, 0x97, 0x1F, 0xFF}), FontStyle: fontPtr(Italic)}},
	{"support.function", StyleModifier{Foreground: colorPtr(Color{0x66, 0xD9, 0xEF, 0xFF})}},
	{"support.type", StyleModifier{Foreground: colorPtr(Color{0x66, 0xD9, 0xEF, 0xFF}), FontStyle: fontPtr(Italic)}},
	{"invalid", StyleModifier{Foreground: colorPtr(White), Background: colorPtr(Color{0xF9, 0x26, 0x72, 0xFF})}},
}

// Default returns the bundled fallback theme, for callers that have no
// ".tmTheme" file of their own to load (e.g. a first run with no configured
// theme search path).
func Default() (*Theme, error) {
	t := &Theme{
		Name: "Default",
		Settings: ThemeSettings{
			Foreground: colorPtr(Color{0xF8, 0xF8, 0xF2, 0xFF}),
			Background: colorPtr(Color{0x27, 0x28, 0x22, 0xFF}),
			Caret:      colorPtr(Color{0xF8, 0xF8, 0xF0, 0xFF}),
			Selection:  colorPtr(Color{0x49, 0x48, 0x3E, 0xFF}),
		},
	}
	for _, rule := range builtinPalette {
		sel, err := syntax.ParseScopeSelectors(rule.scope)
		if err != nil {
			return nil, err
		}
		t.Scopes = append(t.Scopes, ThemeItem{Name: rule.scope, Scope: sel, Style: rule.style})
	}
	return t, nil
}
