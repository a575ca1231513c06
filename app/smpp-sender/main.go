// smpp-sender connects to SMSC, sends SMS and waits for delivery reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/coding"
	"github.com/smpptool/smpplink/config"
)

func main() {
	p, err := ProcessCMDLine(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cli.SetupLog(p.logLevel)

	cfg, sc, err := loadConfig(p)
	if err != nil {
		cli.Exitf("%v", err)
	}
	if p.logLevel == "" {
		cfg.ApplyLogLevel()
	}

	cli.Title("SMPP Sender")
	fmt.Println("Attempts to send an SMS over SMPP")
	useTLS := p.useTLS || cfg.SMSC.TLS
	if useTLS {
		cli.Info("Using SSL/TLS connection\n")
	} else {
		cli.Info("Using plain TCP connection\n")
	}
	fmt.Println()

	prompt := cli.NewPrompter(os.Stdin, os.Stdout)
	server, err := cli.SelectServer(cfg, p.server, prompt)
	if err != nil {
		cli.Exitf("%v", err)
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
		cfg.Dest.Addr = prompt.Ask("Enter destination address", cfg.Dest.Addr)
	} else {
		if err := cfg.Require("SMPP_USERNAME", "SMPP_PASSWORD", "DEST_ADDRESS"); err != nil {
			cli.Exitf("%v", err)
		}
		cli.Note("Using username: %s\n", cfg.Bind.SystemID)
		cli.Note("Using destination: %s\n", cfg.Dest.Addr)
	}

	bp, err := cfg.BindParams()
	if err != nil {
		cli.Exitf("%v", err)
	}
	if bp.ConnMode == smpplink.CSMPPRX {
		cli.Exitf("bind mode RX cannot submit messages, use TX or TRX")
	}

	text := sc.Generator.Message.Text
	if text == "" {
		text = cli.TestMessage(server, cfg.Bind.SystemID, cc.TLS, time.Now())
	}
	gen, enc, err := prepareMessage(cfg, sc, text)
	if err != nil {
		cli.Exitf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, sc, server, cc, bp, gen, enc)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, sc Config, server string, cc smpplink.ConnConfig, bp smpplink.SMPPBind, gen *Generator, enc coding.Encoded) int {
	g := sc.Generator
	reports := make(chan smpplink.DeliveryReport, g.SendCount)

	r := smpplink.NewRouter()
	r.OnDeliveryReport = func(dr smpplink.DeliveryReport) {
		printReport(dr)
		select {
		case reports <- dr:
		default:
		}
	}
	r.OnMessage = func(m smpplink.Message) {
		text, _ := coding.Decode(m.Body, m.DataCoding, coding.Fallback(coding.UTF8))
		cli.Inbound("Message received from %s: %s\n", m.Source.Addr, text)
	}

	st := smpplink.NewStats(nil)
	scfg := cfg.SessionConfig()
	scfg.SessionID = 1
	scfg.Stats = st
	if int(g.SendWindow) > scfg.Window {
		scfg.Window = int(g.SendWindow)
	}

	cli.Info("Connecting to %s (%s) with %s\n", server, cc.Address(), cli.ConnectionType(cc.TLS))
	cli.Info("Binding in %s mode\n", bp.ConnMode)
	s, err := smpplink.DialAndBind(ctx, cc, bp, scfg, r)
	if err != nil {
		cli.Fail("Bind failed: %v\n", err)
		if cc.TLS {
			cli.Hint("Use plain TCP connection (without -s flag) if SSL/TLS is not supported.\n")
		}
		return 1
	}
	cli.Success("Bound successfully (SMSC system_id: %s)\n", s.SMSCSystemID())
	cli.Note("Encoding: %s, data_coding=0x%02X, %d octets, %d part(s)\n", enc.Scheme.Name, enc.DataCoding(), len(enc.Data), enc.Parts())

	accepted := sendAll(ctx, s, gen, g)

	wantReports := gen.Template.RegisteredDelivery != 0 && g.Wait > 0 && accepted > 0
	if wantReports {
		cli.Info("Waiting up to %d seconds for delivery reports...\n", g.Wait)
		cli.Hint("(Press Ctrl+C to stop early)\n")
		waitReports(ctx, s, reports, accepted, time.Duration(g.Wait)*time.Second)
	}

	cli.Info("Shutting down...\n")
	uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Unbind(uctx); err != nil {
		log.WithFields(log.Fields{"type": "smpp-sender", "action": "unbind"}).Debug(err)
	}
	cli.Success("Disconnected\n")

	snap := st.Snapshot()
	cli.Note("Submitted: %v, failed: %v, timeouts: %v, reports: %v, latency avg %v\n",
		snap["submit.count"], snap["submit.failed"], snap["resp.timeout"], snap["deliver.dlr"], snap["submit.latency.mean"])
	if accepted == 0 {
		cli.Fail("No messages accepted\n")
		return 1
	}
	cli.Success("Done\n")
	return 0
}
