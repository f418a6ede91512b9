package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// prompter reads answers line by line
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// ask prints label and returns the next trimmed line
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// fill asks for *v when it is empty and repeats until an answer is given
func (p *prompter) fill(v *string, label string) error {
	for *v == "" {
		answer, err := p.ask(label)
		if err != nil {
			return fmt.Errorf("reading %q: %w", strings.TrimSuffix(label, ": "), err)
		}
		*v = answer
	}
	return nil
}
