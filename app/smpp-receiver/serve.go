package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
)

type Backoff struct {
	Min time.Duration
	Max time.Duration
}

func (b Backoff) next(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// keepConnected opens session in pool and reopens it when connection is lost, until ctx is done.
// onBound is called for every successfully bound session.
func keepConnected(ctx context.Context, p *smpplink.SessionPool, cc smpplink.ConnConfig, bp smpplink.SMPPBind, b Backoff, onBound func(*smpplink.SMPPSession)) {
	var delay time.Duration
	for {
		id, s, err := p.Open(ctx, cc, bp)
		if err == nil {
			delay = 0
			log.WithFields(log.Fields{"type": "smpp-receiver", "SID": id, "action": "connect", "remote": cc.Address()}).Info("Session is bound")
			if onBound != nil {
				onBound(s)
			}

			select {
			case <-s.Done():
				log.WithFields(log.Fields{"type": "smpp-receiver", "SID": id, "action": "connect"}).Warning("Session is closed: ", s.Err())
				p.Remove()
			case <-ctx.Done():
				return
			}
		} else {
			if ctx.Err() != nil {
				return
			}
			l := log.WithFields(log.Fields{"type": "smpp-receiver", "action": "connect", "remote": cc.Address()})
			if errors.Is(err, smpplink.ErrBindRejected) {
				l.Error("Bind rejected: ", err)
			} else {
				l.Warning("Cannot connect: ", err)
			}
		}

		delay = b.next(delay)
		log.WithFields(log.Fields{"type": "smpp-receiver", "action": "connect"}).Debug("Reconnect in ", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}
