package main

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"bfxtrade/pkg/order"
)

var yesNo = []string{"yes", "y", "no", "n"}

// prompter reads interactive answers line by line.
type prompter struct {
	scanner *bufio.Scanner
	errOut  io.Writer
}

func newPrompter(in io.Reader, errOut io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), errOut: errOut}
}

func (p *prompter) readLine() (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// choice blocks until the user types one of allowed.
func (p *prompter) choice(allowed []string) (string, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			return "", err
		}
		if slices.Contains(allowed, line) {
			return line, nil
		}
	}
}

// confirm asks for yes/no and reports whether the answer was yes.
func (p *prompter) confirm() (bool, error) {
	answer, err := p.choice(yesNo)
	if err != nil {
		return false, err
	}
	return answer[0] == 'y', nil
}

// positiveDecimal blocks until the user types a number greater than zero.
func (p *prompter) positiveDecimal() (apd.Decimal, error) {
	for {
		line, err := p.readLine()
		if err != nil {
			return apd.Decimal{}, err
		}
		d, err := order.ParsePositive(line)
		if err == nil {
			return d, nil
		}
		fmt.Fprintln(p.errOut, "Please enter a positive number:")
	}
}
