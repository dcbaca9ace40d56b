// Package cli é a interface de terminal do BETREF: cada página vira um subcomando.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radieske/betref-client/internal/client/notify"
)

// cores ANSI por nível de notificação
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
)

type UI struct {
	in    *bufio.Reader
	out   io.Writer
	color bool
	mu    sync.Mutex
}

func NewUI(in *bufio.Reader, out io.Writer, color bool) *UI {
	return &UI{in: in, out: out, color: color}
}

func (ui *UI) Printf(format string, args ...any) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	fmt.Fprintf(ui.out, format, args...)
}

func (ui *UI) Println(args ...any) {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	fmt.Fprintln(ui.out, args...)
}

func (ui *UI) readLine() string {
	s, _ := ui.in.ReadString('\n')
	return strings.TrimRight(s, "\r\n")
}

// ask mostra o rótulo e devolve a linha digitada sem espaços nas pontas
func (ui *UI) ask(label string) string {
	ui.Printf("%s: ", label)
	return strings.TrimSpace(ui.readLine())
}

// Confirm é o prompt [y/N]; só "y" ou "s" confirmam
func (ui *UI) Confirm(_ context.Context, prompt string) bool {
	ui.Printf("%s [y/N] ", prompt)
	switch strings.ToLower(strings.TrimSpace(ui.readLine())) {
	case "y", "yes", "s", "si", "sí":
		return true
	}
	return false
}

// Sink imprime cada notificação colorida pelo nível
func (ui *UI) Sink(n notify.Notification) {
	tag, c := "i", colorCyan
	switch n.Level {
	case notify.Success:
		tag, c = "✓", colorGreen
	case notify.Error:
		tag, c = "✗", colorRed
	}
	if !ui.color {
		ui.Printf("[%s] %s\n", tag, n.Message)
		return
	}
	ui.Printf("%s[%s] %s%s\n", c, tag, n.Message, colorReset)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}

func empty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
