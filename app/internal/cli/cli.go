// Package cli holds console helpers shared by command line tools.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink/config"
)

var (
	Title   = color.New(color.FgCyan, color.Bold).PrintlnFunc()
	Info    = color.New(color.FgWhite).PrintfFunc()
	Note    = color.New(color.FgCyan).PrintfFunc()
	Success = color.New(color.FgGreen).PrintfFunc()
	Warn    = color.New(color.FgYellow).PrintfFunc()
	Fail    = color.New(color.FgRed).PrintfFunc()
	Hint    = color.New(color.FgMagenta).PrintfFunc()
	Inbound = color.New(color.FgBlue).PrintfFunc()
)

// Exitf prints error and terminates the tool
func Exitf(format string, a ...interface{}) {
	Fail("Error: "+format+"\n", a...)
	os.Exit(1)
}

// SetupLog directs logrus to stdout, level is parsed from s (empty means warning)
func SetupLog(s string) {
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
	if s == "" {
		return
	}
	l, err := log.ParseLevel(s)
	if err != nil {
		fmt.Println("Incorrect LogLevel [", s, "], keep LogLevel:", log.GetLevel().String())
		return
	}
	log.SetLevel(l)
}

// Prompter reads answers for interactive mode
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Ask prints label and returns trimmed answer, def is returned for empty answer
func (p *Prompter) Ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	s, _ := p.in.ReadString('\n')
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

// SelectServer returns SMSC name. Explicit name wins, single configured server is picked
// without asking, otherwise user chooses from the numbered list.
func SelectServer(cfg *config.Config, name string, p *Prompter) (string, error) {
	if name != "" {
		return name, nil
	}
	names := cfg.ServerNames()
	switch len(names) {
	case 0:
		return "", errors.New("no SMSC servers configured (SMSC_1, SMSC_2)")
	case 1:
		return names[0], nil
	}
	if p == nil {
		return "", errors.New("SMSC server is not specified")
	}

	fmt.Fprintln(p.out, "Select SMPP server:")
	for i, n := range names {
		fmt.Fprintf(p.out, "  %d) %s (%s)\n", i+1, n, cfg.SMSC.Servers[n])
	}
	a := p.Ask("Server", "1")
	if i, err := strconv.Atoi(a); err == nil && i >= 1 && i <= len(names) {
		return names[i-1], nil
	}
	if _, ok := cfg.SMSC.Servers[a]; ok {
		return a, nil
	}
	return "", errors.Errorf("unknown server selection [%s]", a)
}

// TestMessage builds text, that identifies test origin in MO/DLR checks
func TestMessage(server, account string, useTLS bool, t time.Time) string {
	tls := "NO"
	if useTLS {
		tls = "YES"
	}
	return fmt.Sprintf("Testing SMPP\nServer: %s\nAccount: %s\nSSL/TLS: %s\nTime: %s",
		server, account, tls, t.Format("2006-01-02 15:04:05"))
}

// TestMarker is a prefix of TestMessage
const TestMarker = "Testing SMPP"

func ConnectionType(useTLS bool) string {
	if useTLS {
		return "SSL/TLS"
	}
	return "plain TCP"
}
