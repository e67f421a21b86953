package detect

import (
	"testing"

	syntax "github.com/friedelschoen/go-syntax"
)

func mustScope(t *testing.T, s string) syntax.Scope {
	t.Helper()
	sc, err := syntax.NewScope(s)
	if err != nil {
		t.Fatalf("NewScope(%q): %v", s, err)
	}
	return sc
}

func buildSet(t *testing.T) *syntax.SyntaxSet {
	t.Helper()
	ss := syntax.NewSyntaxSet()
	ss.AddSyntax(&syntax.SyntaxDefinition{
		Name:           "Go",
		Scope:          mustScope(t, "source.go"),
		FileExtensions: []string{"go"},
		Contexts:       map[string]*syntax.Context{"main": syntax.NewContext("main")},
	})
	ss.AddSyntax(&syntax.SyntaxDefinition{
		Name:           "Python",
		Scope:          mustScope(t, "source.python"),
		FileExtensions: []string{"py"},
		FirstLineMatch: `^#!.*\bpython[0-9.]*\b`,
		Contexts:       map[string]*syntax.Context{"main": syntax.NewContext("main")},
	})
	ss.AddPlainTextSyntax()
	ss.Link()
	return ss
}

func TestForFileMatchesByFilenameExtension(t *testing.T) {
	ss := buildSet(t)
	content := []byte("package main\n\nfunc main() {}\n")
	result := ForFile(ss, "main.go", content)
	if result.Syntax.Name != "Go" {
		t.Fatalf("got syntax %q, want Go", result.Syntax.Name)
	}
}

func TestForFileFallsBackToFirstLineShebang(t *testing.T) {
	ss := buildSet(t)
	content := []byte("#!/usr/bin/env python3\nprint('hi')\n")
	result := ForFile(ss, "run", content)
	if result.Syntax.Name != "Python" {
		t.Fatalf("got syntax %q (method %s), want Python", result.Syntax.Name, result.Method)
	}
	if result.Method == "fallback" {
		t.Fatalf("expected a real detection tier, got fallback")
	}
}

func TestForFileFallsBackToPlainText(t *testing.T) {
	ss := buildSet(t)
	result := ForFile(ss, "data.bin", []byte{0x00, 0x01, 0x02})
	if result.Syntax.Name != "Plain Text" {
		t.Fatalf("got syntax %q, want Plain Text", result.Syntax.Name)
	}
	if result.Method != "fallback" {
		t.Fatalf("got method %q, want fallback", result.Method)
	}
}

func TestForTokenMatchesExtension(t *testing.T) {
	ss := buildSet(t)
	s := ForToken(ss, "go")
	if s.Name != "Go" {
		t.Fatalf("got syntax %q, want Go", s.Name)
	}
}

func TestForTokenFallsBackToPlainText(t *testing.T) {
	ss := buildSet(t)
	s := ForToken(ss, "brainfuck")
	if s.Name != "Plain Text" {
		t.Fatalf("got syntax %q, want Plain Text", s.Name)
	}
}
