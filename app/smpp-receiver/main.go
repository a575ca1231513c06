// smpp-receiver receives MO messages and runs end-to-end MO tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/admin"
	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/coding"
	"github.com/smpptool/smpplink/config"
	smppconst "github.com/smpptool/smpplink/const"
)

const EnvFile = ".env.receiver"

type Params struct {
	server      string
	useTLS      bool
	interactive bool
	mode        string
	count       uint
	wait        uint
	text        string
	logLevel    string
	configFile  string
	listen      string

	set map[string]bool
}

func ProcessCMDLine(args []string) (p Params, err error) {
	fs := flag.NewFlagSet("smpp-receiver", flag.ContinueOnError)
	fs.BoolVar(&p.useTLS, "s", false, "Use SSL/TLS connection")
	fs.BoolVar(&p.interactive, "i", false, "Interactive mode - prompt for username, password and destination")
	fs.StringVar(&p.mode, "m", "test", "Operation mode: receive, send, test or serve")
	fs.UintVar(&p.count, "n", 1, "Number of test messages to send")
	fs.UintVar(&p.wait, "w", 30, "Wait time for receiving messages in seconds (default: RECEIVER_TIMEOUT)")
	fs.StringVar(&p.text, "t", "", "Custom message text (default: auto-generated)")
	fs.StringVar(&p.server, "server", "", "SMSC name (SMSC_1, SMSC_2) or host[:port]")
	fs.StringVar(&p.configFile, "c", "", "YAML configuration file")
	fs.StringVar(&p.logLevel, "log", "", "Log level (trace, debug, info, warning, error)")
	fs.StringVar(&p.listen, "http", "", "Admin HTTP listen address for serve mode (default: HTTP_LISTEN or 127.0.0.1:5800)")
	if err = fs.Parse(args); err != nil {
		return
	}
	p.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { p.set[f.Name] = true })

	switch p.mode {
	case "receive", "send", "test", "serve":
	default:
		err = fmt.Errorf("invalid mode [%s], supported: receive, send, test, serve", p.mode)
	}
	return
}

func main() {
	p, err := ProcessCMDLine(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cli.SetupLog(p.logLevel)

	cfg, err := config.Load(p.configFile, config.CommonEnvFile, EnvFile)
	if err != nil {
		cli.Exitf("%v", err)
	}
	if p.logLevel == "" {
		cfg.ApplyLogLevel()
	}
	wait := cfg.Receiver.Timeout
	if p.set["w"] || wait == 0 {
		wait = time.Duration(p.wait) * time.Second
	}

	cli.Title("SMPP Receiver")
	fmt.Println("Mode:", strings.ToUpper(p.mode))
	useTLS := p.useTLS || cfg.SMSC.TLS
	if useTLS {
		cli.Success("Using SSL/TLS connection\n")
	} else {
		cli.Info("Using plain TCP connection\n")
	}
	fmt.Println()

	prompt := cli.NewPrompter(os.Stdin, os.Stdout)
	server, err := cli.SelectServer(cfg, p.server, prompt)
	if err != nil {
		cli.Exitf("Server selection is required: %v", err)
	}
	cc, err := cfg.Conn(server, useTLS)
	if err != nil {
		cli.Exitf("%v", err)
	}

	if p.interactive {
		cfg.Bind.SystemID = prompt.Ask("Enter username", cfg.Bind.SystemID)
		if cfg.Bind.Password = prompt.Ask("Enter password", ""); cfg.Bind.Password == "" {
			cli.Exitf("Password is required")
		}
		if p.mode == "send" || p.mode == "test" {
			cfg.Dest.Addr = prompt.Ask("Enter destination address", destination(cfg))
		}
	} else {
		if err := cfg.Require("SMPP_USERNAME", "SMPP_PASSWORD"); err != nil {
			cli.Exitf("%v", err)
		}
		cli.Note("Using username: %s\n", cfg.Bind.SystemID)
		cli.Note("Using destination: %s\n", destination(cfg))
	}

	bp, err := cfg.BindParams()
	if err != nil {
		cli.Exitf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	var code int
	if p.mode == "serve" {
		code = serve(ctx, cfg, p, cc, bp)
	} else {
		code = runOnce(ctx, cfg, p, server, cc, bp, wait)
	}
	stop()
	os.Exit(code)
}

// destination of test messages, MO test sends them to the receiving number
func destination(cfg *config.Config) string {
	if cfg.Dest.Addr != "" {
		return cfg.Dest.Addr
	}
	return cfg.Receiver.ReceivingNumber
}

func runOnce(ctx context.Context, cfg *config.Config, p Params, server string, cc smpplink.ConnConfig, bp smpplink.SMPPBind, wait time.Duration) int {
	rc := NewReceiver()
	pool := smpplink.NewSessionPool(rc.Router(), nil, cfg.SessionConfig())

	cli.Info("Connecting to %s (%s) with %s\n", server, cc.Address(), cli.ConnectionType(cc.TLS))
	cli.Info("Binding in %s mode (for MO reception)\n", bp.ConnMode)
	if _, _, err := pool.Open(ctx, cc, bp); err != nil {
		cli.Fail("Error: %v\n", err)
		if cc.TLS {
			cli.Hint("Use plain TCP connection (without -s flag) if SSL/TLS is not supported.\n")
		}
		return 1
	}
	cli.Success("Bound successfully\n")

	defer func() {
		cli.Info("Shutting down...\n")
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		pool.Close(uctx)
		cli.Success("Disconnected\n")
	}()

	switch p.mode {
	case "receive":
		cli.Info("Listening for MO messages for %d seconds...\n", int(wait/time.Second))
		cli.Hint("(Press Ctrl+C to stop early)\n")
		if rc.WaitMO(ctx, wait, false) {
			cli.Success("Received %d MO message(s)\n", rc.Received())
		} else {
			cli.Info("Timeout reached, received %d MO message(s)\n", rc.Received())
		}

	case "send":
		if sendTestMessages(ctx, pool, cfg, p, server, cc.TLS) == 0 {
			return 1
		}

	case "test":
		cli.Warn("Starting end-to-end MO SMS test\n")
		if sendTestMessages(ctx, pool, cfg, p, server, cc.TLS) == 0 {
			return 1
		}
		cli.Info("Waiting for MO messages for %d seconds...\n", int(wait/time.Second))
		cli.Hint("(Press Ctrl+C to stop early)\n")
		if rc.WaitMO(ctx, wait, true) {
			cli.Success("Test completed - received %d MO message(s)\n", rc.Received())
		} else {
			cli.Info("Timeout reached - received %d MO message(s)\n", rc.Received())
			return 1
		}
	}
	return 0
}

// sendTestMessages sends p.count messages one second apart, returns number of accepted ones
func sendTestMessages(ctx context.Context, pool *smpplink.SessionPool, cfg *config.Config, p Params, server string, useTLS bool) (accepted int) {
	dest := destination(cfg)
	if dest == "" {
		cli.Fail("Error: DEST_ADDRESS not set in environment\n")
		return 0
	}
	cli.Note("Sending %d test message(s)...\n", p.count)

	for i := uint(0); i < p.count; i++ {
		text := p.text
		if text == "" {
			text = cli.TestMessage(server, cfg.Bind.SystemID, useTLS, time.Now())
		}
		enc, err := coding.Encode(text)
		if err != nil {
			cli.Fail("Cannot encode message: %v\n", err)
			return
		}
		m := &smpplink.Message{
			Source:             cfg.Source.SMPP(),
			Dest:               smpplink.SMPPAddress{TON: cfg.Dest.TON, NPI: cfg.Dest.NPI, Addr: dest},
			Body:               enc.Data,
			DataCoding:         enc.DataCoding(),
			RegisteredDelivery: smppconst.REG_DELIVERY_ALWAYS,
		}

		cli.Note("Sending message %d/%d\n", i+1, p.count)
		s, err := pool.SubmitMessage(ctx, m)
		if err != nil {
			cli.Fail("Message %d failed: %v\n", i+1, err)
		} else {
			accepted++
			cli.Success("Message sent - SID: %d, Message ID: %s\n", s.SessionID, m.MessageID)
		}

		if i+1 < p.count {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
	return
}

func serve(ctx context.Context, cfg *config.Config, p Params, cc smpplink.ConnConfig, bp smpplink.SMPPBind) int {
	rc := NewReceiver()
	rc.Quiet = true
	st := smpplink.NewStats(nil)
	pool := smpplink.NewSessionPool(rc.Router(), st, cfg.SessionConfig())

	listen := p.listen
	if listen == "" {
		listen = cfg.HTTP.Listen
	}
	if listen == "" {
		listen = "127.0.0.1:5800"
	}

	h := &HttpHandler{p: pool, rc: rc, source: cfg.Source.SMPP()}
	go func() {
		if err := admin.Serve(ctx, listen, newEngine(h)); err != nil {
			log.WithFields(log.Fields{"type": "smpp-receiver", "action": "http"}).Error("HTTP server failed: ", err)
		}
	}()

	cli.Info("Serving %s, admin API at http://%s\n", cc.Address(), listen)
	cli.Hint("(Press Ctrl+C to stop)\n")
	keepConnected(ctx, pool, cc, bp, Backoff{Min: time.Second, Max: 30 * time.Second}, func(s *smpplink.SMPPSession) {
		cli.Success("Bound (SID %d, SMSC %s)\n", s.SessionID, s.SMSCSystemID())
	})

	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool.Close(uctx)
	cli.Success("Stopped, received %d MO message(s), %d report(s)\n", rc.Received(), rc.Reports())
	return 0
}
