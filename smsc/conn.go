package smsc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	smppconst "github.com/smpptool/smpplink/const"
)

// Conn is a single ESME connection on SMSC side
type Conn struct {
	ID uint32

	srv  *Server
	conn net.Conn
	wmu  sync.Mutex

	mu       sync.Mutex
	state    smpplink.ConnSMPPState
	mode     smpplink.ConnSMPPMode
	systemID string
	lastSeq  uint32
	waiters  map[uint32]chan uint32

	closed    chan struct{}
	closeOnce sync.Once
}

func (c *Conn) State() smpplink.ConnSMPPState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) Mode() smpplink.ConnSMPPMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Conn) SystemID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemID
}

func (c *Conn) Done() <-chan struct{} { return c.closed }

func (c *Conn) Remote() string { return c.conn.RemoteAddr().String() }

func (c *Conn) canReceive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return false
	default:
	}
	return c.state == smpplink.CSMPPBound && (c.mode == smpplink.CSMPPRX || c.mode == smpplink.CSMPPTRX)
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = smpplink.CSMPPUnbound
		c.mu.Unlock()
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Conn) write(p smpplink.SMPPPacket) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.conn.Write(p.Bytes()); err != nil {
		c.Close()
		return errors.Wrap(smpplink.ErrTransportClosed, err.Error())
	}
	c.srv.Stats.TxPDU.Inc(1)
	log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "Outbox"}).Trace("Sent ", p.Hdr)
	return nil
}

func (c *Conn) allocateSeqNo() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeq++
	if c.lastSeq == 0 {
		c.lastSeq = 1
	}
	return c.lastSeq
}

// Deliver sends DELIVER_SM and waits for DELIVER_SM_RESP, returns its command_status
func (c *Conn) Deliver(ctx context.Context, ss smpplink.SMPPSubmit) (uint32, error) {
	p, err := smpplink.EncodeDeliverSm(ss)
	if err != nil {
		return 0, err
	}
	p.Hdr.Seq = c.allocateSeqNo()

	ch := make(chan uint32, 1)
	c.mu.Lock()
	c.waiters[p.Hdr.Seq] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, p.Hdr.Seq)
		c.mu.Unlock()
	}()

	if err := c.write(p); err != nil {
		return 0, err
	}
	select {
	case st := <-ch:
		return st, nil
	case <-c.closed:
		return 0, smpplink.ErrSessionClosed
	case <-ctx.Done():
		return 0, errors.Wrapf(smpplink.ErrResponseTimeout, "DELIVER_SM seq %d: %v", p.Hdr.Seq, ctx.Err())
	}
}

// Unbind asks ESME to close the session, connection is closed on UNBIND_RESP
func (c *Conn) Unbind() error {
	c.mu.Lock()
	c.state = smpplink.CSMPPUnbinding
	c.mu.Unlock()
	return c.write(smpplink.EncodeUnbind(c.allocateSeqNo()))
}

func (c *Conn) run() {
	defer c.Close()
	for {
		p, err := smpplink.ReadPacket(c.conn)
		if err != nil {
			log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "Run"}).Debug("Connection is closed: ", err)
			return
		}
		c.srv.Stats.RxPDU.Inc(1)
		log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "PacketLoop", "action": fmt.Sprintf("%x (%s)", p.Hdr.ID, smpplink.CmdName(p.Hdr.ID)), "Seq": p.Hdr.Seq}).Trace(fmt.Sprintf("%x", p.Body))

		if err := c.handle(p); err != nil {
			if errors.Is(err, smpplink.ErrMalformedPDU) {
				c.srv.Stats.Malformed.Inc(1)
				log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "PacketLoop", "action": smpplink.CmdName(p.Hdr.ID)}).Warning("Malformed packet: ", err)
				if !p.Hdr.IsReply() {
					c.write(smpplink.EncodeGenericNack(p.Hdr.Seq, smppconst.ESME_RINVCMDLEN))
				}
				continue
			}
			if errors.Is(err, smpplink.ErrTransportClosed) || errors.Is(err, smpplink.ErrSessionClosed) {
				return
			}
			log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "PacketLoop"}).Debug(err)
		}
	}
}

func (c *Conn) handle(p smpplink.SMPPPacket) error {
	switch p.Hdr.ID {
	case smppconst.CMD_BIND_RECEIVER, smppconst.CMD_BIND_TRANSMITTER, smppconst.CMD_BIND_TRANSCEIVER:
		return c.handleBind(p)

	case smppconst.CMD_ENQUIRE_LINK:
		return c.write(smpplink.EncodeEnquireLinkResp(p.Hdr.Seq))

	case smppconst.CMD_UNBIND:
		err := c.write(smpplink.EncodeUnbindResp(p.Hdr.Seq, smppconst.ESME_ROK))
		c.Close()
		if err != nil {
			return err
		}
		return smpplink.ErrSessionClosed

	case smppconst.CMD_UNBIND_RESP:
		c.Close()
		return smpplink.ErrSessionClosed

	case smppconst.CMD_SUBMIT_SM:
		return c.handleSubmit(p)

	case smppconst.CMD_DELIVER_SM_RESP, smppconst.CMD_GENERIC_NACK:
		c.srv.mu.Lock()
		c.srv.acks = append(c.srv.acks, Ack{ConnID: c.ID, Seq: p.Hdr.Seq, Status: p.Hdr.Status, T: time.Now()})
		c.srv.mu.Unlock()

		c.mu.Lock()
		ch, ok := c.waiters[p.Hdr.Seq]
		c.mu.Unlock()
		if ok {
			ch <- p.Hdr.Status
		}
		return nil

	case smppconst.CMD_ENQUIRE_LINK_RESP:
		return nil
	}

	if p.Hdr.IsReply() {
		c.srv.Stats.Anomaly.Inc(1)
		return nil
	}
	return c.write(smpplink.EncodeGenericNack(p.Hdr.Seq, smppconst.ESME_RINVCMDID))
}

func (c *Conn) handleBind(p smpplink.SMPPPacket) error {
	b, err := smpplink.DecodeBind(p)
	if err != nil {
		return errors.Wrap(smpplink.ErrMalformedPDU, err.Error())
	}

	var status uint32 = smppconst.ESME_ROK
	c.mu.Lock()
	if c.state != smpplink.CSMPPUnbound {
		status = smppconst.ESME_RALYBND
	}
	c.mu.Unlock()
	if status == smppconst.ESME_ROK {
		status = c.srv.checkAccount(b)
	}

	r, err := smpplink.EncodeBindResp(p.Hdr.ID, p.Hdr.Seq, status, c.srv.SystemID, nil)
	if err != nil {
		return err
	}
	if status == smppconst.ESME_ROK {
		c.mu.Lock()
		c.state = smpplink.CSMPPBound
		c.mode = b.ConnMode
		c.systemID = b.SystemID
		c.mu.Unlock()
	}
	log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "Bind", "SystemID": b.SystemID, "mode": b.ConnMode, "status": smpplink.StatusName(status)}).Info("BIND")
	return c.write(r)
}

func (c *Conn) handleSubmit(p smpplink.SMPPPacket) error {
	c.mu.Lock()
	ok := c.state == smpplink.CSMPPBound && (c.mode == smpplink.CSMPPTX || c.mode == smpplink.CSMPPTRX)
	c.mu.Unlock()
	if !ok {
		return c.write(smpplink.EncodeSubmitSmResp(p.Hdr.Seq, smppconst.ESME_RINVBNDSTS, ""))
	}

	ss, err := smpplink.DecodeSubmitDeliverSm(p)
	if err != nil {
		return err
	}

	d := Decision{}
	if c.srv.OnSubmit != nil {
		d = c.srv.OnSubmit(c, ss)
	}
	if d.Silent {
		log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "Submit", "seq": p.Hdr.Seq}).Debug("Dropped without response")
		return nil
	}
	if d.Status != smppconst.ESME_ROK {
		return c.respondLater(d.Delay, smpplink.EncodeSubmitSmResp(p.Hdr.Seq, d.Status, ""))
	}
	if d.MessageID == "" {
		d.MessageID = c.srv.nextMessageID()
	}

	now := time.Now()
	c.srv.mu.Lock()
	c.srv.submits = append(c.srv.submits, Submitted{ConnID: c.ID, SystemID: c.systemID, MessageID: d.MessageID, Submit: ss, T: now})
	c.srv.mu.Unlock()
	c.srv.Stats.Submit.Mark(1)

	if err := c.respondLater(d.Delay, smpplink.EncodeSubmitSmResp(p.Hdr.Seq, smppconst.ESME_ROK, d.MessageID)); err != nil {
		return err
	}

	stat := d.ReportStatus
	if stat == "" {
		stat = c.srv.DLRStatus
	}
	switch ss.RegisteredDelivery & 0x03 {
	case smppconst.REG_DELIVERY_ALWAYS:
	case smppconst.REG_DELIVERY_FAILURE:
		if stat == "DELIVRD" {
			return nil
		}
	default:
		return nil
	}
	if stat != "" {
		go c.srv.sendReport(c, d.MessageID, ss, stat, now)
	}
	return nil
}

func (c *Conn) respondLater(delay time.Duration, r smpplink.SMPPPacket) error {
	if delay <= 0 {
		return c.write(r)
	}
	go func() {
		select {
		case <-time.After(delay):
			c.write(r)
		case <-c.closed:
		}
	}()
	return nil
}
