// Package scan implements the lexical scanner: a character-at-a-time
// tokenizer over C/C++ source that emits #include and C++20 module
// directive records, skipping comments, string/char literals and
// backslash-newline line splices along the way.
//
// It never invokes a real preprocessor: macro expansion, conditional
// compilation (#ifdef) and token pasting are not evaluated. A directive is
// recorded exactly as spelled in the source.
package scan

import (
	"bufio"
	"io"
	"os"
)

// DirectiveKind distinguishes the four directive shapes the scanner can
// emit.
type DirectiveKind int

const (
	// KindInclude is a #include "file" or #include <file>.
	KindInclude DirectiveKind = iota
	// KindModuleDecl is `export module Name;` (or `export module Name:Part;`):
	// the file providing the named module (or module partition). The
	// export is what makes this a providing declaration rather than an
	// implementation unit.
	KindModuleDecl
	// KindModuleImport is `import Name;`, `export import Name;`, or a bare
	// `module Name;`/`module Name:Part;` (a module or partition
	// implementation unit, which consumes the interface it implements
	// rather than providing one): a dependency on whatever file provides
	// the named module.
	KindModuleImport
	// KindFileImport is `import "file";` or `import <file>;`: a header
	// unit import, structurally identical to an include.
	KindFileImport
)

// Directive is one recognized #include or module construct.
type Directive struct {
	Kind Kind

	// Path holds the included/imported file name, for KindInclude and
	// KindFileImport.
	Path string
	// System is true when Path was delimited with <...> rather than "...".
	System bool

	// Module holds the module (or module partition, "Name:Part") name,
	// for KindModuleDecl and KindModuleImport.
	Module string
	// Exported is true for `export module`/`export import`.
	Exported bool
}

// Kind is an alias kept for readability at call sites (scan.Directive{Kind: scan.KindInclude, ...}).
type Kind = DirectiveKind

// File scans the named file and returns its directives in source order.
func File(path string) ([]Directive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Reader(f)
}

// Reader scans r and returns its directives in source order.
func Reader(r io.Reader) ([]Directive, error) {
	s := &scanner{r: bufio.NewReader(r)}
	if err := s.advance(); err != nil {
		return nil, err
	}
	if s.eof {
		return nil, nil
	}
	return s.run()
}

type scanner struct {
	r   *bufio.Reader
	cur rune
	eof bool
}

// advance reads the next rune into s.cur, transparently splicing away any
// backslash-newline line continuation, wherever it occurs in the source.
func (s *scanner) advance() error {
	for {
		c, _, err := s.r.ReadRune()
		if err == io.EOF {
			s.eof = true
			s.cur = 0
			return nil
		}
		if err != nil {
			return err
		}
		if c == '\\' {
			c2, _, err2 := s.r.ReadRune()
			if err2 == nil && c2 == '\n' {
				continue // spliced away: re-loop for the real next rune
			}
			if err2 == nil {
				_ = s.r.UnreadRune()
			}
			s.cur = c
			return nil
		}
		s.cur = c
		return nil
	}
}

func (s *scanner) skipWhile(pred func(rune) bool) error {
	for !s.eof && pred(s.cur) {
		if err := s.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) readWhile(pred func(rune) bool) (string, error) {
	var out []rune
	for !s.eof && pred(s.cur) {
		out = append(out, s.cur)
		if err := s.advance(); err != nil {
			return string(out), err
		}
	}
	return string(out), nil
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

func isAlpha(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isAlnum(c rune) bool {
	return isAlpha(c) || (c >= '0' && c <= '9')
}

func isModuleNameChar(c rune) bool {
	return isAlnum(c) || c == '.'
}

func (s *scanner) run() ([]Directive, error) {
	var out []Directive
	moduleSection := true
	prevNewline := true

	for !s.eof {
		switch {
		case s.cur == '\n':
			prevNewline = true
			if err := s.advance(); err != nil {
				return out, err
			}

		case isSpace(s.cur):
			if err := s.advance(); err != nil {
				return out, err
			}

		case s.cur == '#' && prevNewline:
			d, err := s.readHash()
			if err != nil {
				return out, err
			}
			if d != nil {
				out = append(out, *d)
			}

		case s.cur == '\'':
			prevNewline = false
			if err := s.skipLiteral('\''); err != nil {
				return out, err
			}

		case s.cur == '"':
			prevNewline = false
			if err := s.skipLiteral('"'); err != nil {
				return out, err
			}

		case s.cur == '/':
			if err := s.advance(); err != nil {
				return out, err
			}
			switch s.cur {
			case '*':
				if err := s.skipBlockComment(); err != nil {
					return out, err
				}
			case '/':
				if err := s.skipLineComment(); err != nil {
					return out, err
				}
			default:
				prevNewline = false
				if err := s.advance(); err != nil {
					return out, err
				}
			}

		default:
			prevNewline = false
			if !moduleSection {
				if err := s.advance(); err != nil {
					return out, err
				}
				continue
			}
			d, matched, err := s.readModuleConstruct()
			if err != nil {
				return out, err
			}
			if !matched {
				moduleSection = false
				continue // reprocess same rune, now outside the module section
			}
			if d != nil {
				out = append(out, *d)
			}
		}
	}

	return out, nil
}

// skipLiteral consumes a '...' or "..." literal, honoring backslash
// escapes of the delimiter itself.
func (s *scanner) skipLiteral(delim rune) error {
	if err := s.advance(); err != nil { // past opening delimiter
		return err
	}
	for !s.eof && s.cur != delim {
		if s.cur == '\\' {
			if err := s.advance(); err != nil {
				return err
			}
		}
		if err := s.advance(); err != nil {
			return err
		}
	}
	if s.eof {
		return nil
	}
	return s.advance() // past closing delimiter
}

func (s *scanner) skipBlockComment() error {
	for {
		if s.eof {
			return nil
		}
		if s.cur != '*' {
			if err := s.advance(); err != nil {
				return err
			}
			continue
		}
		if err := s.advance(); err != nil {
			return err
		}
		if s.cur == '/' {
			return s.advance()
		}
	}
}

func (s *scanner) skipLineComment() error {
	return s.skipWhile(func(c rune) bool { return c != '\n' })
}

// readHash consumes a '#'-introduced preprocessor line; only #include is
// recognized, every other directive (#define, #ifdef, #pragma, ...) is
// skipped to end of line.
func (s *scanner) readHash() (*Directive, error) {
	if err := s.advance(); err != nil { // past '#'
		return nil, err
	}
	if err := s.skipWhile(isSpace); err != nil {
		return nil, err
	}
	word, err := s.readWhile(isAlpha)
	if err != nil {
		return nil, err
	}
	if word != "include" {
		return nil, s.skipWhile(func(c rune) bool { return c != '\n' })
	}
	if err := s.skipWhile(isSpace); err != nil {
		return nil, err
	}
	switch s.cur {
	case '<':
		path, err := s.readDelimited('>')
		if err != nil {
			return nil, err
		}
		return &Directive{Kind: KindInclude, Path: path, System: true}, nil
	case '"':
		path, err := s.readDelimited('"')
		if err != nil {
			return nil, err
		}
		return &Directive{Kind: KindInclude, Path: path, System: false}, nil
	default:
		return nil, s.skipWhile(func(c rune) bool { return c != '\n' })
	}
}

// readDelimited reads text up to (not including) close, assuming s.cur is
// the opening delimiter, and consumes the closing delimiter.
func (s *scanner) readDelimited(close rune) (string, error) {
	if err := s.advance(); err != nil { // past opening delimiter
		return "", err
	}
	text, err := s.readWhile(func(c rune) bool { return c != close })
	if err != nil {
		return text, err
	}
	if !s.eof {
		if err := s.advance(); err != nil { // past closing delimiter
			return text, err
		}
	}
	return text, nil
}

// readModuleConstruct attempts to read a module/export/import declaration
// starting at the current rune. matched is false when the current token is
// not one of those keywords, meaning the module section is over.
func (s *scanner) readModuleConstruct() (d *Directive, matched bool, err error) {
	kw, err := s.readWhile(isAlpha)
	if err != nil {
		return nil, false, err
	}
	switch kw {
	case "module":
		return s.readModuleDecl(false)
	case "export":
		return s.readExportDecl()
	case "import":
		return s.readImportDecl(false)
	default:
		return nil, false, nil
	}
}

func (s *scanner) readExportDecl() (*Directive, bool, error) {
	if err := s.skipWhile(isSpace); err != nil {
		return nil, false, err
	}
	kw, err := s.readWhile(isAlpha)
	if err != nil {
		return nil, false, err
	}
	switch kw {
	case "module":
		return s.readModuleDecl(true)
	case "import":
		return s.readImportDecl(true)
	default:
		return nil, false, nil
	}
}

// readModuleDecl parses what follows the "module" keyword: either a bare
// global module fragment marker (`module;`, no directive) or a module (or
// partition) name declaration. Only the exported form provides the name;
// a bare `module Name;` is an implementation unit and consumes it instead.
func (s *scanner) readModuleDecl(exported bool) (*Directive, bool, error) {
	if err := s.skipWhile(isSpace); err != nil {
		return nil, false, err
	}
	if s.cur == ';' {
		return nil, true, s.advance()
	}
	name, err := s.readModuleName()
	if err != nil {
		return nil, false, err
	}
	kind := KindModuleImport
	if exported {
		kind = KindModuleDecl
	}
	return &Directive{Kind: kind, Module: name, Exported: exported}, true, nil
}

func (s *scanner) readImportDecl(exported bool) (*Directive, bool, error) {
	if err := s.skipWhile(isSpace); err != nil {
		return nil, false, err
	}
	switch s.cur {
	case '<', '"':
		system := s.cur == '<'
		delim := '"'
		if system {
			delim = '>'
		}
		path, err := s.readDelimited(delim)
		if err != nil {
			return nil, false, err
		}
		if err := s.skipWhile(isSpace); err != nil {
			return nil, false, err
		}
		if s.cur == ';' {
			if err := s.advance(); err != nil {
				return nil, false, err
			}
		}
		return &Directive{Kind: KindFileImport, Path: path, System: system, Exported: exported}, true, nil
	default:
		name, err := s.readModuleName()
		if err != nil {
			return nil, false, err
		}
		return &Directive{Kind: KindModuleImport, Module: name, Exported: exported}, true, nil
	}
}

// readModuleName reads `Name` or a module partition `Name:Part`, consuming
// a trailing ';' if present.
func (s *scanner) readModuleName() (string, error) {
	if err := s.skipWhile(isSpace); err != nil {
		return "", err
	}
	name, err := s.readWhile(isModuleNameChar)
	if err != nil {
		return name, err
	}
	if err := s.skipWhile(isSpace); err != nil {
		return name, err
	}
	if s.cur == ':' {
		name += ":"
		if err := s.advance(); err != nil {
			return name, err
		}
		if err := s.skipWhile(isSpace); err != nil {
			return name, err
		}
		rest, err := s.readWhile(isModuleNameChar)
		if err != nil {
			return name + rest, err
		}
		name += rest
		if err := s.skipWhile(isSpace); err != nil {
			return name, err
		}
	}
	if s.cur == ';' {
		if err := s.advance(); err != nil {
			return name, err
		}
	}
	return name, nil
}
