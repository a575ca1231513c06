package smpplink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	smppconst "github.com/smpptool/smpplink/const"
)

type SessionConfig struct {
	SessionID uint32

	ResponseTimeout time.Duration
	BindTimeout     time.Duration

	// Idle time before ENQUIRE_LINK is sent, negative value disables keep-alive
	EnquireLinkInterval time.Duration

	// Max number of outstanding requests
	Window int

	// Number of malformed PDUs in a row that breaks the session
	MaxMalformed int

	Stats *Stats
}

func (c *SessionConfig) setDefaults() {
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = smppconst.TX_MAX_TIMEOUT_MS * time.Millisecond
	}
	if c.BindTimeout == 0 {
		c.BindTimeout = smppconst.BIND_TIMEOUT_MS * time.Millisecond
	}
	if c.EnquireLinkInterval == 0 {
		c.EnquireLinkInterval = smppconst.ENQUIRE_LINK_INTERVAL_MS * time.Millisecond
	}
	if c.Window < 1 {
		c.Window = smppconst.TX_WINDOW
	}
	if c.MaxMalformed < 1 {
		c.MaxMalformed = 3
	}
	if c.Stats == nil {
		c.Stats = NewStats(nil)
	}
}

type outboxItem struct {
	p    SMPPPacket
	done chan error
}

// SMPPSession is a single ESME connection to SMSC
type SMPPSession struct {
	SessionID uint32

	conn   net.Conn
	cfg    SessionConfig
	router *Router
	stats  *Stats

	// Guards everything below
	mu      sync.Mutex
	state   ConnSMPPState
	mode    ConnSMPPMode
	bind    SMPPBind
	smscID  string
	lastSeq uint32
	pending *pendingTable
	err     error

	// Unix nanoseconds of the last read/write, for ENQUIRE_LINK idle timer
	lastActivity atomic.Int64

	outbox    chan outboxItem
	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession takes ownership of conn and starts reader/writer. Session is UNBOUND until Bind.
func NewSession(conn net.Conn, cfg SessionConfig, r *Router) *SMPPSession {
	cfg.setDefaults()
	if r == nil {
		r = NewRouter()
	}
	s := &SMPPSession{
		SessionID: cfg.SessionID,
		conn:      conn,
		cfg:       cfg,
		router:    r,
		stats:     cfg.Stats,
		state:     CSMPPUnbound,
		pending:   newPendingTable(cfg.Window),
		outbox:    make(chan outboxItem),
		closed:    make(chan struct{}),
	}
	s.touch()

	go s.processOutbox()
	go s.run()
	return s
}

func (s *SMPPSession) State() ConnSMPPState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SMPPSession) Mode() ConnSMPPMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SystemID returns system_id used for BIND
func (s *SMPPSession) SystemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bind.SystemID
}

// SMSCSystemID returns system_id reported by SMSC in BIND_RESP
func (s *SMPPSession) SMSCSystemID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smscID
}

func (s *SMPPSession) LastSeq() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// PendingCount returns number of requests waiting for _RESP
func (s *SMPPSession) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.len()
}

// Done is closed when session is terminated
func (s *SMPPSession) Done() <-chan struct{} { return s.closed }

// Err returns the reason of session termination, nil while session is alive
func (s *SMPPSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *SMPPSession) Close() error {
	s.closeWith(ErrSessionClosed, "Close")
	return nil
}

func (s *SMPPSession) closeWith(cause error, origin string) {
	var first bool
	s.closeOnce.Do(func() {
		first = true

		s.mu.Lock()
		s.err = cause
		s.state = CSMPPUnbound
		if errors.Is(cause, ErrSessionClosed) {
			s.pending.drain(cause)
		} else {
			s.pending.drain(errors.Wrap(ErrSessionClosed, cause.Error()))
		}
		s.mu.Unlock()

		close(s.closed)
		s.conn.Close()
	})
	if first {
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Close"}).Info("Close is called from [ ", origin, " ]: ", cause)
		s.router.closed(cause)
	}
}

func (s *SMPPSession) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

func (s *SMPPSession) idle() time.Duration {
	return time.Since(time.Unix(0, s.lastActivity.Load()))
}

// Allocate SEQUENCE number, skip numbers of outstanding requests. Called under s.mu.
func (s *SMPPSession) allocateSeqNo() uint32 {
	for {
		s.lastSeq++
		if s.lastSeq == 0 {
			s.lastSeq = 1
		}
		if !s.pending.has(s.lastSeq) {
			return s.lastSeq
		}
	}
}

// checkMode validates that bind mode allows origination of the command. Called under s.mu.
func (s *SMPPSession) checkMode(id uint32) error {
	ok := true
	switch id {
	case smppconst.CMD_SUBMIT_SM:
		ok = s.mode == CSMPPTX || s.mode == CSMPPTRX
	case smppconst.CMD_DELIVER_SM_RESP:
		ok = s.mode == CSMPPRX || s.mode == CSMPPTRX
	case smppconst.CMD_DELIVER_SM, smppconst.CMD_SUBMIT_SM_RESP:
		// SMSC side only
		ok = false
	}
	if !ok {
		return &ModeViolationError{Mode: s.mode, CommandID: id}
	}
	return nil
}

// Take messages from outbox and send messages to the wire
func (s *SMPPSession) processOutbox() {
	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Outbox"}).Debug("Starting OUTBOX Processor")
	for {
		select {
		case it := <-s.outbox:
			n, err := s.conn.Write(it.p.Bytes())
			if err != nil {
				// BREAK CONNECTION
				log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Outbox", "action": "write", "count": n}).Info("Outbox: error writing to socket: ", err)
				err = errors.Wrap(ErrTransportClosed, err.Error())
				it.done <- err
				s.closeWith(err, "processOutbox")
				return
			}
			s.stats.TxPDU.Inc(1)
			s.touch()
			log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Outbox", "action": "write", "count": n}).Trace("Outbox: sent ", it.p.Hdr)
			it.done <- nil

		case <-s.closed:
			log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Outbox", "action": "close"}).Debug("Closing Outbox processor")
			return
		}
	}
}

// write blocks until packet is written to the socket
func (s *SMPPSession) write(p SMPPPacket) error {
	it := outboxItem{p: p, done: make(chan error, 1)}
	select {
	case s.outbox <- it:
	case <-s.closed:
		return ErrSessionClosed
	}
	select {
	case err := <-it.done:
		return err
	case <-s.closed:
		return ErrSessionClosed
	}
}

func (s *SMPPSession) dropPending(seq uint32) {
	s.mu.Lock()
	s.pending.take(seq)
	s.mu.Unlock()
}

// request sends p with newly allocated sequence number and waits for _RESP
func (s *SMPPSession) request(ctx context.Context, p SMPPPacket, timeout time.Duration) (SMPPPacket, error) {
	return s.requestWith(ctx, p, timeout, nil)
}

func (s *SMPPSession) requestWith(ctx context.Context, p SMPPPacket, timeout time.Duration, onResp func(SMPPPacket)) (SMPPPacket, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return SMPPPacket{}, ErrSessionClosed
	}
	if err := s.checkMode(p.Hdr.ID); err != nil {
		s.mu.Unlock()
		return SMPPPacket{}, err
	}
	p.Hdr.Seq = s.allocateSeqNo()
	pr, err := s.pending.add(p.Hdr.Seq, p.Hdr.ID, onResp)
	s.mu.Unlock()
	if err != nil {
		return SMPPPacket{}, err
	}
	p.CreateTime = pr.T

	if err := s.write(p); err != nil {
		s.dropPending(p.Hdr.Seq)
		return SMPPPacket{}, err
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case r := <-pr.resp:
		if r.err != nil {
			return SMPPPacket{}, r.err
		}
		if r.p.Hdr.ID == smppconst.CMD_GENERIC_NACK {
			return r.p, &StatusError{CommandID: r.p.Hdr.ID, Status: r.p.Hdr.Status}
		}
		return r.p, nil

	case <-t.C:
		s.dropPending(p.Hdr.Seq)
		s.stats.Timeout.Inc(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "TimeoutTracker", "action": "TX", "seq": p.Hdr.Seq}).Warning("TX Timeout")
		return SMPPPacket{}, errors.Wrapf(ErrResponseTimeout, "%s seq %d, no response in %s", CmdName(p.Hdr.ID), p.Hdr.Seq, timeout)

	case <-ctx.Done():
		s.dropPending(p.Hdr.Seq)
		return SMPPPacket{}, ctx.Err()
	}
}

// Respond sends _RESP/GENERIC_NACK packet, sequence number is taken from p
func (s *SMPPSession) Respond(p SMPPPacket) error {
	s.mu.Lock()
	err := s.checkMode(p.Hdr.ID)
	closed := s.err != nil
	s.mu.Unlock()

	if err != nil {
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Respond", "seq": p.Hdr.Seq}).Warning(err)
		return err
	}
	if closed {
		return ErrSessionClosed
	}
	return s.write(p)
}

func (s *SMPPSession) setState(st ConnSMPPState, m ConnSMPPMode) {
	s.mu.Lock()
	if s.err == nil {
		s.state = st
		s.mode = m
	}
	s.mu.Unlock()
}

// Bind sends BIND request and waits for BIND_RESP
func (s *SMPPSession) Bind(ctx context.Context, b SMPPBind) (SMPPBindResp, error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return SMPPBindResp{}, ErrSessionClosed
	}
	if s.state != CSMPPUnbound {
		st := s.state
		s.mu.Unlock()
		return SMPPBindResp{}, errors.Wrapf(ErrInvalidState, "BIND in %s state", st)
	}
	s.state = CSMPPBinding
	s.mode = b.ConnMode
	s.bind = b
	s.mu.Unlock()

	if b.IVersion == 0 {
		b.IVersion = smppconst.SMPP_INTERFACE_VERSION
	}
	p, err := EncodeBind(b.ConnMode, b)
	if err != nil {
		s.setState(CSMPPUnbound, CSMPPUndefined)
		return SMPPBindResp{}, err
	}

	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Bind", "SystemID": b.SystemID, "mode": b.ConnMode}).Info("Sending BIND")
	r, err := s.request(ctx, p, s.cfg.BindTimeout)
	if err != nil {
		s.setState(CSMPPUnbound, CSMPPUndefined)
		var se *StatusError
		if errors.As(err, &se) {
			return SMPPBindResp{}, &BindRejectedError{Status: se.Status}
		}
		return SMPPBindResp{}, err
	}
	if r.Hdr.Status != smppconst.ESME_ROK {
		s.setState(CSMPPUnbound, CSMPPUndefined)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Bind", "SystemID": b.SystemID, "status": StatusName(r.Hdr.Status)}).Info("Rejected")
		return SMPPBindResp{}, &BindRejectedError{Status: r.Hdr.Status}
	}
	resp, err := DecodeBindResp(r)
	if err != nil {
		s.setState(CSMPPUnbound, CSMPPUndefined)
		return SMPPBindResp{}, err
	}

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return SMPPBindResp{}, ErrSessionClosed
	}
	s.state = CSMPPBound
	s.smscID = resp.SystemID
	s.mu.Unlock()

	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Bind", "SystemID": b.SystemID, "SMSC": resp.SystemID}).Info("Bound")

	if s.cfg.EnquireLinkInterval > 0 {
		go s.enquireSender()
	}
	return resp, nil
}

// Submit sends SUBMIT_SM. Negative SUBMIT_SM_RESP is returned as *StatusError.
func (s *SMPPSession) Submit(ctx context.Context, ss SMPPSubmit) (SMPPSubmitResp, error) {
	return s.submit(ctx, ss, nil)
}

func (s *SMPPSession) submit(ctx context.Context, ss SMPPSubmit, onResp func(SMPPPacket)) (r SMPPSubmitResp, err error) {
	start := time.Now()

	if st := s.State(); st != CSMPPBound {
		return r, errors.Wrapf(ErrInvalidState, "SUBMIT_SM in %s state", st)
	}
	p, err := EncodeSubmitSm(ss)
	if err != nil {
		return r, err
	}

	resp, err := s.requestWith(ctx, p, s.cfg.ResponseTimeout, onResp)
	defer func() { s.stats.recordSubmit(start, err) }()
	if err != nil {
		return r, err
	}
	if resp.Hdr.Status != smppconst.ESME_ROK {
		return r, &StatusError{CommandID: resp.Hdr.ID, Status: resp.Hdr.Status}
	}
	return DecodeSubmitSmResp(resp)
}

// SubmitMessage sends m and fills MessageID. Bodies over 254 bytes go into message_payload.
func (s *SMPPSession) SubmitMessage(ctx context.Context, m *Message) error {
	ss := SMPPSubmit{
		ServiceType:        m.ServiceType,
		Source:             m.Source,
		Dest:               m.Dest,
		ESMClass:           m.ESMClass,
		ValidityPeriod:     m.ValidityPeriod,
		RegisteredDelivery: m.RegisteredDelivery,
		DataCoding:         m.DataCoding,
		TLV:                append(TLVList(nil), m.TLV...),
	}
	if len(m.Body) > 254 {
		ss.TLV.Set(smppconst.TLV_MESSAGE_PAYLOAD, m.Body)
	} else {
		ss.ShortMessage = m.Body
	}

	// Report may follow SUBMIT_SM_RESP immediately, so the message is tracked
	// by reader goroutine before the next packet is read
	var onResp func(SMPPPacket)
	if m.RegisteredDelivery != smppconst.REG_DELIVERY_NONE {
		onResp = func(p SMPPPacket) {
			if p.Hdr.ID != smppconst.CMD_SUBMIT_SM_RESP || p.Hdr.Status != smppconst.ESME_ROK {
				return
			}
			if r, err := DecodeSubmitSmResp(p); err == nil && r.MessageID != "" {
				s.router.Track(&Message{
					Source:             m.Source,
					Dest:               m.Dest,
					Body:               m.Body,
					DataCoding:         m.DataCoding,
					ESMClass:           m.ESMClass,
					RegisteredDelivery: m.RegisteredDelivery,
					ServiceType:        m.ServiceType,
					ValidityPeriod:     m.ValidityPeriod,
					TLV:                m.TLV,
					MessageID:          r.MessageID,
					SubmitTime:         time.Now(),
				})
			}
		}
	}

	r, err := s.submit(ctx, ss, onResp)
	if err != nil {
		return err
	}
	m.MessageID = r.MessageID
	m.SubmitTime = time.Now()
	return nil
}

// EnquireLink checks the link explicitly
func (s *SMPPSession) EnquireLink(ctx context.Context) error {
	_, err := s.request(ctx, EncodeEnquireLink(0), s.cfg.ResponseTimeout)
	return err
}

// Unbind sends UNBIND, waits for UNBIND_RESP (or timeout) and closes the session.
// Requests that are still in flight are released with ErrSessionClosed.
func (s *SMPPSession) Unbind(ctx context.Context) error {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != CSMPPBound {
		st := s.state
		s.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "UNBIND in %s state", st)
	}
	s.state = CSMPPUnbinding
	s.mu.Unlock()

	// SMSC usually drops the socket right after UNBIND_RESP, so the session
	// is closed by reader before it gets to the next read
	cause := errors.Wrap(ErrSessionClosed, "unbind")
	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Unbind"}).Info("Sending UNBIND")
	_, err := s.requestWith(ctx, EncodeUnbind(0), s.cfg.ResponseTimeout, func(SMPPPacket) {
		s.closeWith(cause, "Unbind")
	})
	if err != nil {
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Unbind"}).Warning("No UNBIND_RESP: ", err)
	}
	s.closeWith(cause, "Unbind")
	return err
}

func (s *SMPPSession) enquireSender() {
	iv := s.cfg.EnquireLinkInterval
	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "EnquireSender", "tick": iv}).Debug("Starting ENQUIRE SENDER")

	t := time.NewTimer(iv)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if idle := s.idle(); idle < iv {
				t.Reset(iv - idle)
				continue
			}
			err := s.EnquireLink(context.Background())
			switch {
			case err == nil:
			case errors.Is(err, ErrResponseTimeout):
				log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "EnquireSender"}).Warning("No ENQUIRE_LINK_RESP, closing connection")
				s.closeWith(errors.Wrap(ErrTransportClosed, "enquire_link timeout"), "enquireSender")
				return
			case errors.Is(err, ErrSessionClosed):
				return
			default:
				// Window is full or session is unbinding, try again on next tick
				log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "EnquireSender"}).Debug("ENQUIRE_LINK is not sent: ", err)
				t.Reset(iv)
				continue
			}
			log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "EnquireSender"}).Debug("Confirmed")
			t.Reset(iv)

		case <-s.closed:
			return
		}
	}
}

// Reader loop
func (s *SMPPSession) run() {
	var malformed int
	for {
		p, err := ReadPacket(s.conn)
		if err != nil {
			if errors.Is(err, ErrMalformedPDU) {
				// Broken header, stream can't be resynchronized
				s.stats.Malformed.Inc(1)
				log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Run", "action": "DecodeHDR"}).Warning("Error decoding packet: ", err)
				s.closeWith(err, "Run")
				return
			}
			log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "Run", "action": "ReadFull"}).Debug("Error reading packet: ", err)
			if s.State() == CSMPPUnbinding {
				// Peer closed connection while UNBIND is in progress
				s.closeWith(errors.Wrap(ErrSessionClosed, "unbind"), "Run")
			} else {
				s.closeWith(errors.Wrap(ErrTransportClosed, err.Error()), "Run")
			}
			return
		}
		s.stats.RxPDU.Inc(1)
		s.touch()
		log.WithFields(log.Fields{"type": "smpp", "service": "PacketLoop", "SID": s.SessionID, "action": fmt.Sprintf("%x (%s)", p.Hdr.ID, CmdName(p.Hdr.ID)), "Seq": p.Hdr.Seq, "Len": p.Hdr.Len}).Trace(fmt.Sprintf("%x", p.Body))

		err = s.handlePacket(p)
		if err == nil {
			malformed = 0
			continue
		}
		if !errors.Is(err, ErrMalformedPDU) {
			log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": CmdName(p.Hdr.ID), "Seq": p.Hdr.Seq}).Debug(err)
			continue
		}

		malformed++
		s.stats.Malformed.Inc(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": CmdName(p.Hdr.ID), "Seq": p.Hdr.Seq, "count": malformed}).Warning("Malformed packet: ", err)
		if !p.Hdr.IsReply() {
			s.Respond(EncodeGenericNack(p.Hdr.Seq, smppconst.ESME_RINVCMDLEN))
		}
		if malformed >= s.cfg.MaxMalformed {
			s.closeWith(err, "Run")
			return
		}
	}
}

func (s *SMPPSession) handlePacket(p SMPPPacket) error {
	switch p.Hdr.ID {
	// =============================================================
	// ENQUIRE_LINK
	case smppconst.CMD_ENQUIRE_LINK:
		if err := DecodeEmpty(p); err != nil {
			return err
		}
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": "ENQUIRE_LINK", "seq": p.Hdr.Seq}).Debug("Received")
		return s.Respond(EncodeEnquireLinkResp(p.Hdr.Seq))

	// =============================================================
	// UNBIND
	case smppconst.CMD_UNBIND:
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": "UNBIND", "seq": p.Hdr.Seq}).Info("Received")
		s.mu.Lock()
		if s.err == nil {
			s.state = CSMPPUnbinding
		}
		s.mu.Unlock()
		err := s.Respond(EncodeUnbindResp(p.Hdr.Seq, smppconst.ESME_ROK))
		s.closeWith(errors.Wrap(ErrSessionClosed, "unbind requested by SMSC"), "Run")
		return err

	// =============================================================
	// DELIVER_SM
	case smppconst.CMD_DELIVER_SM:
		return s.handleDeliver(p)
	}

	if p.Hdr.IsReply() {
		return s.handleResponse(p)
	}

	// SUBMIT_SM, OUTBIND, DATA_SM, ... are not supported by ESME
	log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": CmdName(p.Hdr.ID), "seq": p.Hdr.Seq}).Info("Unsupported command, sending GENERIC_NACK")
	return s.Respond(EncodeGenericNack(p.Hdr.Seq, smppconst.ESME_RINVCMDID))
}

func (s *SMPPSession) handleResponse(p SMPPPacket) error {
	s.mu.Lock()
	pr, ok := s.pending.take(p.Hdr.Seq)
	s.mu.Unlock()

	if !ok {
		// Late response after timeout or SMSC bug
		s.stats.Anomaly.Inc(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "WinTrackTX", "action": CmdName(p.Hdr.ID), "state": "lost", "seq": p.Hdr.Seq}).Warning("Drop untracked _RESP packet")
		return nil
	}

	if p.Hdr.ID != smppconst.CMD_GENERIC_NACK && p.Hdr.ID != pr.CommandID|smppconst.CMD_RESP_MASK {
		s.stats.Anomaly.Inc(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "WinTrackTX", "action": CmdName(p.Hdr.ID), "seq": p.Hdr.Seq}).Warning("Response does not match ", CmdName(pr.CommandID))
		pr.resp <- pendingResult{err: errors.Wrapf(ErrMalformedPDU, "%s received for %s", CmdName(p.Hdr.ID), CmdName(pr.CommandID))}
		return nil
	}
	if pr.onResp != nil {
		pr.onResp(p)
	}
	pr.resp <- pendingResult{p: p}
	return nil
}

func (s *SMPPSession) handleDeliver(p SMPPPacket) error {
	s.mu.Lock()
	state, mode := s.state, s.mode
	s.mu.Unlock()

	if state != CSMPPBound || mode == CSMPPTX {
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": "DELIVER_SM", "seq": p.Hdr.Seq, "state": state, "mode": mode}).Warning("DELIVER_SM is not expected")
		return s.Respond(EncodeGenericNack(p.Hdr.Seq, smppconst.ESME_RINVBNDSTS))
	}

	ss, err := DecodeSubmitDeliverSm(p)
	if err != nil {
		return err
	}
	in := s.router.Classify(&ss)

	// DELIVER_SM_RESP goes to the wire before handler is called
	if err := s.Respond(EncodeDeliverSmResp(p.Hdr.Seq, smppconst.ESME_ROK)); err != nil {
		return err
	}

	if in.Kind == InboundDLR {
		s.stats.DLR.Mark(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": "DELIVER_SM", "seq": p.Hdr.Seq, "MsgID": in.Report.MessageID, "stat": in.Report.Status}).Debug("Delivery report")
	} else {
		s.stats.MO.Mark(1)
		log.WithFields(log.Fields{"type": "smpp", "SID": s.SessionID, "service": "PacketLoop", "action": "DELIVER_SM", "seq": p.Hdr.Seq, "from": in.Message.Source.Addr}).Debug("MO message")
	}
	s.router.Dispatch(in)
	return nil
}
