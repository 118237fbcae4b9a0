package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Commands accepted at any register prompt.
const (
	cmdBack    = ":back"
	cmdRestart = ":restart"
)

var (
	errBack    = errors.New("back")
	errRestart = errors.New("restart")
)

type prompter struct {
	in  *bufio.Scanner
	out io.Writer

	// ttyFd is the terminal secrets are read from without echo, or -1 for piped input.
	ttyFd        int
	readPassword func(fd int) ([]byte, error)
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewScanner(in), out: out, ttyFd: -1, readPassword: term.ReadPassword}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.ttyFd = int(f.Fd())
	}
	return p
}

func (p *prompter) printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// ask reads one trimmed line. io.EOF ends the session.
func (p *prompter) ask(label string) (string, error) {
	p.printf("%s: ", label)
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return command(strings.TrimSpace(line))
}

// askSecret reads a password as typed, without trimming. On a terminal the input is
// not echoed unless show is set.
func (p *prompter) askSecret(label string, show bool) (string, error) {
	p.printf("%s: ", label)
	var line string
	if p.ttyFd >= 0 && !show {
		raw, err := p.readPassword(p.ttyFd)
		p.printf("\n")
		if err != nil {
			return "", err
		}
		line = string(raw)
	} else {
		var err error
		if line, err = p.readLine(); err != nil {
			return "", err
		}
	}
	if _, err := command(strings.TrimSpace(line)); err != nil {
		return "", err
	}
	return line, nil
}

func (p *prompter) readLine() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.in.Text(), nil
}

func command(line string) (string, error) {
	switch line {
	case cmdBack:
		return "", errBack
	case cmdRestart:
		return "", errRestart
	}
	return line, nil
}

// askDefault keeps current when the answer is blank.
func (p *prompter) askDefault(label, current string) (string, error) {
	if current != "" {
		label = fmt.Sprintf("%s [%s]", label, current)
	}
	answer, err := p.ask(label)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return current, nil
	}
	return answer, nil
}
