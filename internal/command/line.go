// Package command composes external command lines and runs them as child processes.
package command

import "strings"

// token is one argument of a command line. Quoted tokens are wrapped in
// double quotes when the line is rendered for display.
type token struct {
	value  string
	quoted bool
}

// Line is a fully composed external command.
// Args are handed to the process verbatim (no shell is involved); String
// renders the same command in a readable, copy-pasteable form.
type Line struct {
	// Program is the executable name or path.
	Program string
	// Dir is the working directory of the process. Empty means the current directory.
	Dir string

	tokens []token
}

// New creates a Line for program with no arguments.
func New(program string) *Line {
	return &Line{Program: program}
}

// InDir sets the working directory of the process.
func (l *Line) InDir(dir string) *Line {
	l.Dir = dir
	return l
}

// Arg appends bare tokens (flags, times, numbers).
func (l *Line) Arg(values ...string) *Line {
	for _, v := range values {
		l.tokens = append(l.tokens, token{value: v})
	}
	return l
}

// Quoted appends a token rendered in double quotes (paths, filter expressions).
func (l *Line) Quoted(value string) *Line {
	l.tokens = append(l.tokens, token{value: value, quoted: true})
	return l
}

// Flag appends a flag followed by a bare value.
func (l *Line) Flag(name, value string) *Line {
	return l.Arg(name, value)
}

// QuotedFlag appends a flag followed by a quoted value.
func (l *Line) QuotedFlag(name, value string) *Line {
	return l.Arg(name).Quoted(value)
}

// Args returns the raw argument vector.
func (l *Line) Args() []string {
	args := make([]string, len(l.tokens))
	for i, t := range l.tokens {
		args[i] = t.value
	}
	return args
}

// String renders the command line. Quoted tokens escape backslashes and
// double quotes so the rendering round-trips through a POSIX shell.
func (l *Line) String() string {
	var b strings.Builder
	b.WriteString(l.Program)
	for _, t := range l.tokens {
		b.WriteByte(' ')
		if t.quoted {
			b.WriteString(quote(t.value))
			continue
		}
		b.WriteString(t.value)
	}
	return b.String()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return `"` + r.Replace(s) + `"`
}
