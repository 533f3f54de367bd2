package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	historyFileName = ".hiticomm_history"
	historySize     = 500
)

// lineEditor reads console lines: readline on a terminal, a plain scanner
// when input is piped
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	prompt  string
}

func newLineEditor(prompt, historyFile string) *lineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), prompt: prompt}
	}

	if historyFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			historyFile = filepath.Join(home, historyFileName)
		}
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
		Prompt:                 prompt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), prompt: prompt}
	}
	return &lineEditor{rl: rl, prompt: prompt}
}

// getLine returns the next line. io.EOF ends the session; Ctrl-C on an
// empty line does too.
func (e *lineEditor) getLine() (string, error) {
	if e.rl == nil {
		if !e.scanner.Scan() {
			if err := e.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return e.scanner.Text(), nil
	}

	line, err := e.rl.Readline()
	if err == readline.ErrInterrupt {
		if line == "" {
			return "", io.EOF
		}
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if line != "" {
		e.rl.SaveToHistory(line)
	}
	return line, nil
}

func (e *lineEditor) interactive() bool {
	return e.rl != nil
}

func (e *lineEditor) close() {
	if e.rl != nil {
		e.rl.Close()
	}
}
