package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/cli"
)

// Submitter is a part of SMPPSession used by sender
type Submitter interface {
	SubmitMessage(ctx context.Context, m *smpplink.Message) error
	PendingCount() int
	Done() <-chan struct{}
}

func newLimiter(perSecond uint) *rate.Limiter {
	if perSecond == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	// Allow bursts of 1/10 of rate, like block sending each 100ms
	burst := int(perSecond / 10)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// sendAll submits messages with configured rate and window, returns number of accepted ones
func sendAll(ctx context.Context, s Submitter, gen *Generator, g GeneratorConfig) uint {
	lim := newLimiter(g.SendRate)
	window := g.SendWindow
	if window < 1 {
		window = 1
	}
	sem := make(chan struct{}, window)
	results := make(chan submitResult, window)

	var sent, accepted uint32
	var wg sync.WaitGroup

	// Collector prints results and stats once per second
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		tick := time.NewTicker(time.Second)
		defer tick.Stop()

		var lastSent uint32
		var rtdTotal time.Duration
		var rtdCount int64
		for {
			select {
			case r, ok := <-results:
				if !ok {
					return
				}
				if r.Err != nil {
					cli.Fail("Message %d/%d failed: %v\n", r.N, g.SendCount, describeSubmitError(r.Err))
					continue
				}
				atomic.AddUint32(&accepted, 1)
				rtdTotal += r.RTD
				rtdCount++
				if g.SendCount <= 10 {
					cli.Success("Message %d/%d accepted, Message ID: %s\n", r.N, g.SendCount, r.Message.MessageID)
				}
			case <-tick.C:
				if g.SendCount <= 10 {
					continue
				}
				cur := atomic.LoadUint32(&sent)
				var avg int64
				if rtdCount > 0 {
					avg = rtdTotal.Microseconds() / rtdCount
				}
				fmt.Println("[", 1, "] During last 1s:", cur-lastSent, "[MAX:", cur, "][PENDING:", s.PendingCount(), "][RTD avg micros:", avg, ",", rtdCount, "]")
				lastSent = cur
				rtdTotal, rtdCount = 0, 0
			}
		}
	}()

	start := time.Now()
	var n uint
loop:
	for n = 1; n <= g.SendCount; n++ {
		select {
		case <-s.Done():
			break loop
		default:
		}
		if err := lim.Wait(ctx); err != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break loop
		case <-s.Done():
			break loop
		}

		m := gen.Next(time.Now())
		if g.SendCount <= 10 {
			cli.Note("Sending message %d/%d to %s\n", n, g.SendCount, m.Dest.Addr)
		}
		atomic.AddUint32(&sent, 1)
		wg.Add(1)
		go func(n uint, m *smpplink.Message) {
			defer wg.Done()
			t := time.Now()
			err := s.SubmitMessage(ctx, m)
			<-sem
			results <- submitResult{N: n, Message: m, Err: err, RTD: time.Since(t)}
		}(n, m)
	}
	wg.Wait()
	close(results)
	<-collected

	total := atomic.LoadUint32(&sent)
	if g.SendCount > 10 {
		var realRate int64
		if d := time.Since(start).Milliseconds(); d > 0 {
			realRate = int64(total) * 1000 / d
		}
		fmt.Println("#Finished sending", total, "messages with expected rate:", g.SendRate, ", real rate:", realRate)
	}
	log.WithFields(log.Fields{"type": "smpp-sender", "action": "send", "sent": total, "accepted": accepted}).Info("Submission finished")
	return uint(atomic.LoadUint32(&accepted))
}

func describeSubmitError(err error) string {
	if st, ok := smpplink.CommandStatus(err); ok {
		return fmt.Sprintf("%s (0x%08X)", smpplink.StatusName(st), st)
	}
	if errors.Is(err, smpplink.ErrResponseTimeout) {
		return "no SUBMIT_SM_RESP in time"
	}
	return err.Error()
}

// waitReports returns when final report for each accepted message arrived, on timeout or on session close
func waitReports(ctx context.Context, s Submitter, reports <-chan smpplink.DeliveryReport, expected uint, timeout time.Duration) (final uint) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	for final < expected {
		select {
		case dr := <-reports:
			if dr.IsFinal() {
				final++
			}
		case <-t.C:
			cli.Info("Timeout reached, %d of %d delivery reports received\n", final, expected)
			return
		case <-ctx.Done():
			cli.Info("\nStopped by user\n")
			return
		case <-s.Done():
			cli.Warn("Connection closed while waiting for delivery reports\n")
			return
		}
	}
	return
}

func printReport(dr smpplink.DeliveryReport) {
	switch {
	case dr.Status == "DELIVRD":
		cli.Success("Delivery report: message %s delivered successfully\n", dr.MessageID)
	case dr.Status != "":
		cli.Warn("Delivery report: message %s, status = %s, err = %s\n", dr.MessageID, dr.Status, dr.Err)
	default:
		cli.Note("Delivery report received - Message ID: %s, message_state: %s\n", dr.MessageID, smpplink.MessageStateName(dr.MessageState))
	}
	if dr.Message == nil {
		log.WithFields(log.Fields{"type": "smpp-sender", "action": "DLR", "MsgID": dr.MessageID}).Debug("Report is not correlated with submitted message")
	}
}
