package main

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/admin"
	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/coding"
)

// Receiver handles inbound traffic of all sessions in pool
type Receiver struct {
	Events *admin.EventLog

	// Quiet disables console output, used by serve mode
	Quiet bool

	received   int32
	correlated int32
	reports    int32

	// true for MO, that carries test message
	moCh chan bool
}

func NewReceiver() *Receiver {
	return &Receiver{
		Events: admin.NewEventLog(admin.MaxEvents),
		moCh:   make(chan bool, 16),
	}
}

func (rc *Receiver) Router() *smpplink.Router {
	r := smpplink.NewRouter()
	r.OnMessage = rc.onMessage
	r.OnDeliveryReport = rc.onReport
	return r
}

func (rc *Receiver) Received() int   { return int(atomic.LoadInt32(&rc.received)) }
func (rc *Receiver) Correlated() int { return int(atomic.LoadInt32(&rc.correlated)) }
func (rc *Receiver) Reports() int    { return int(atomic.LoadInt32(&rc.reports)) }

// IsTestMessage reports if MO text is a test message sent by this tool
func IsTestMessage(text string) bool {
	return strings.Contains(text, cli.TestMarker)
}

func (rc *Receiver) onMessage(m smpplink.Message) {
	atomic.AddInt32(&rc.received, 1)
	v := smpplink.NewMessageView(m)
	if v.TextError != "" {
		// Unknown data_coding, show at least readable bytes
		v.Text, _ = coding.Decode(m.Body, m.DataCoding, coding.Force(coding.UTF8))
	}
	rc.Events.Add(admin.Event{Kind: smpplink.InboundMO.String(), Data: v})

	test := IsTestMessage(v.Text)
	if test {
		atomic.AddInt32(&rc.correlated, 1)
	}
	log.WithFields(log.Fields{"type": "smpp-receiver", "action": "MO", "from": m.Source.Addr, "to": m.Dest.Addr, "dc": m.DataCoding}).Info("MO message received")

	if !rc.Quiet {
		cli.Inbound("MO Message received:\n")
		cli.Note("  From: %s\n", m.Source.Addr)
		cli.Note("  To: %s\n", m.Dest.Addr)
		cli.Info("  Text: %s\n", v.Text)
		if test {
			cli.Success("Message correlation found!\n")
			cli.Success("  Test message successfully received as MO SMS\n")
		}
	}

	select {
	case rc.moCh <- test:
	default:
	}
}

func (rc *Receiver) onReport(dr smpplink.DeliveryReport) {
	atomic.AddInt32(&rc.reports, 1)
	rc.Events.Add(admin.Event{Kind: smpplink.InboundDLR.String(), Data: smpplink.NewReportView(dr)})
	log.WithFields(log.Fields{"type": "smpp-receiver", "action": "DLR", "MsgID": dr.MessageID, "stat": dr.Status}).Info("Delivery report received")

	if rc.Quiet {
		return
	}
	switch {
	case dr.Status == "DELIVRD":
		cli.Success("Delivery report: message %s delivered successfully\n", dr.MessageID)
	case dr.Status != "":
		cli.Warn("Delivery report: message %s, status = %s\n", dr.MessageID, dr.Status)
	default:
		cli.Note("Delivery report received - Message ID: %s\n", dr.MessageID)
	}
}

// WaitMO blocks until MO message arrives (test message only, if onlyTest is set).
// Returns false on timeout or cancelled ctx.
func (rc *Receiver) WaitMO(ctx context.Context, timeout time.Duration, onlyTest bool) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	for {
		select {
		case test := <-rc.moCh:
			if test || !onlyTest {
				return true
			}
		case <-t.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
