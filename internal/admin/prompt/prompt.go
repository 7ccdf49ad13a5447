// Package prompt читает ответы оператора tgadmin из stdin
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput stdin закрыт до ввода значения
var ErrNoInput = errors.New("no input")

// Prompter читает строки и секреты.
// На терминале секрет вводится без эха, иначе читается первая строка stdin.
type Prompter struct {
	in         *bufio.Reader
	out        io.Writer
	fd         int
	isTerminal bool
}

// New создает Prompter для файла (обычно os.Stdin)
func New(in *os.File, out io.Writer) *Prompter {
	fd := int(in.Fd())
	return &Prompter{
		in:         bufio.NewReader(in),
		out:        out,
		fd:         fd,
		isTerminal: term.IsTerminal(fd),
	}
}

// NewReader создает Prompter поверх произвольного reader, без терминала
func NewReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}
}

// ReadLine печатает prompt и читает строку без завершающих пробелов
func (p *Prompter) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.out, prompt)
	return p.readLine()
}

// ReadSecret читает секрет. Prompt выводится только на терминале.
func (p *Prompter) ReadSecret(prompt string) (string, error) {
	if !p.isTerminal {
		return p.readLine()
	}

	_, _ = fmt.Fprint(p.out, prompt)
	secret, err := term.ReadPassword(p.fd)
	_, _ = fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", ErrNoInput
	}
	return strings.TrimSpace(line), nil
}
