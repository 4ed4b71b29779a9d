// ABOUTME: Terminal prompts for secrets
// ABOUTME: Reads without echo on a TTY and falls back to a plain line for piped input

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

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
	stdin        io.Reader = os.Stdin
)

// stdinLines is shared so consecutive piped prompts read successive lines.
var stdinLines *bufio.Reader

// promptSecret asks for a secret on w.
func promptSecret(w io.Writer, label string) (string, error) {
	fmt.Fprintf(w, "%s: ", label)

	fd := int(os.Stdin.Fd())
	if isTerminal(fd) {
		b, err := readPassword(fd)
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}

	if stdinLines == nil {
		stdinLines = bufio.NewReader(stdin)
	}
	line, err := stdinLines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// promptNewSecret asks twice and requires both entries to match.
func promptNewSecret(w io.Writer, label string) (string, error) {
	first, err := promptSecret(w, label)
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("password cannot be empty")
	}
	second, err := promptSecret(w, "Confirm "+strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
