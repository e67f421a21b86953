// Package detect picks a grammar for a file using github.com/go-enry/go-enry,
// GitHub's Linguist port, before falling back to the plain-text grammar.
package detect

import (
	"path/filepath"
	"strings"

	enry "github.com/go-enry/go-enry/v2"

	syntax "github.com/friedelschoen/go-syntax"
)

// Result names the grammar picked for a file and the tier that found it, so
// callers can log or tune detection without re-deriving it.
type Result struct {
	Syntax *syntax.SyntaxDefinition
	Method string
}

// ForFile detects the grammar for filename given its content, trying
// progressively less certain signals: the bare filename, its extension, a
// shebang line, an editor modeline, the first line against each grammar's
// FirstLineMatch, and finally enry's Bayesian classifier. The plain-text
// grammar is returned, with Method "fallback", if nothing matches.
func ForFile(set *syntax.SyntaxSet, filename string, content []byte) Result {
	if lang, safe := enry.GetLanguageByFilename(filename); safe {
		if s := bySyntaxName(set, lang); s != nil {
			return Result{s, "filename"}
		}
	}
	if ext := strings.TrimPrefix(filepath.Ext(filename), "."); ext != "" {
		if s := set.FindSyntaxByExtension(ext); s != nil {
			return Result{s, "extension"}
		}
	}
	if lang, safe := enry.GetLanguageByShebang(content); safe {
		if s := bySyntaxName(set, lang); s != nil {
			return Result{s, "shebang"}
		}
	}
	if lang, safe := enry.GetLanguageByModeline(content); safe {
		if s := bySyntaxName(set, lang); s != nil {
			return Result{s, "modeline"}
		}
	}
	if firstLine, _, _ := strings.Cut(string(content), "\n"); firstLine != "" {
		if s := set.FindSyntaxByFirstLine(firstLine); s != nil {
			return Result{s, "first-line"}
		}
	}
	if lang := enry.GetLanguage(filename, content); lang != "" {
		if s := bySyntaxName(set, lang); s != nil {
			return Result{s, "classifier"}
		}
	}
	return Result{set.FindSyntaxPlainText(), "fallback"}
}

// ForToken picks a grammar from a short language tag, such as a fenced
// code-block language or a user-supplied "--syntax" flag, falling back to
// plain text if token names nothing known.
func ForToken(set *syntax.SyntaxSet, token string) *syntax.SyntaxDefinition {
	if s := set.FindSyntaxByToken(token); s != nil {
		return s
	}
	return set.FindSyntaxPlainText()
}

// bySyntaxName resolves an enry language name (e.g. "Go", "C++") to a
// grammar, trying an exact display-name match before falling back to
// FindSyntaxByToken's extension/case-insensitive-name search.
func bySyntaxName(set *syntax.SyntaxSet, enryName string) *syntax.SyntaxDefinition {
	if s := set.FindSyntaxByName(enryName); s != nil {
		return s
	}
	return set.FindSyntaxByToken(enryName)
}
