// Package smsc is a small SMSC simulator: accepts binds, answers SUBMIT_SM, generates delivery reports
// and injects MO messages. It is used by tests and by smpp-dumb-server.
package smsc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	smppconst "github.com/smpptool/smpplink/const"
)

var ErrNoReceiver = errors.New("no bound receiver session")

// Decision tells the server how to answer a single SUBMIT_SM
type Decision struct {
	Status    uint32
	MessageID string // Generated when empty

	// Do not respond at all
	Silent bool
	Delay  time.Duration

	// Receipt stat value, "" means Server.DLRStatus
	ReportStatus string
}

type SubmitFunc func(c *Conn, ss smpplink.SMPPSubmit) Decision

// Submitted is a SUBMIT_SM accepted by the server
type Submitted struct {
	ConnID    uint32
	SystemID  string
	MessageID string
	Submit    smpplink.SMPPSubmit
	T         time.Time
}

// Ack is a DELIVER_SM_RESP received from ESME
type Ack struct {
	ConnID uint32
	Seq    uint32
	Status uint32
	T      time.Time
}

type Server struct {
	// Reported in BIND_RESP
	SystemID string

	// system_id => password, empty map accepts everybody
	Accounts map[string]string

	OnSubmit SubmitFunc

	// Receipt stat for accepted messages with registered_delivery, "" disables reports
	DLRStatus string
	DLRDelay  time.Duration

	Stats *smpplink.Stats

	ln     net.Listener
	mu     sync.Mutex
	conns  map[uint32]*Conn
	lastID uint32
	msgSeq uint64

	submits []Submitted
	acks    []Ack

	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

func New() *Server {
	return &Server{
		SystemID:  "SMSC",
		Accounts:  map[string]string{},
		DLRStatus: "DELIVRD",
		Stats:     smpplink.NewStats(nil),
		conns:     map[uint32]*Conn{},
		closed:    make(chan struct{}),
	}
}

// Start listens on addr ("127.0.0.1:0" for tests) and serves connections in background
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Wrapf(err, "listen %s", addr)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Serve(ln)
	}()
	return ln.Addr().String(), nil
}

// Serve accepts connections until listener is closed
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	log.WithFields(log.Fields{"type": "smsc", "service": "Listen"}).Info("Starting listening on: ", ln.Addr().String())
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			log.WithFields(log.Fields{"type": "smsc", "service": "Listen"}).Error("Error accepting socket connection: ", err)
			return err
		}
		log.WithFields(log.Fields{"type": "smsc", "remoteIP": conn.RemoteAddr().String()}).Info("Received incoming connection")
		s.ServeConn(conn)
	}
}

// ServeConn handles already established connection
func (s *Server) ServeConn(conn net.Conn) *Conn {
	s.mu.Lock()
	s.lastID++
	c := &Conn{
		ID:      s.lastID,
		srv:     s,
		conn:    conn,
		waiters: map[uint32]chan uint32{},
		closed:  make(chan struct{}),
	}
	s.conns[c.ID] = c
	s.mu.Unlock()
	s.Stats.Sessions.Update(int64(s.activeCount()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		c.run()
		s.mu.Lock()
		delete(s.conns, c.ID)
		s.mu.Unlock()
		s.Stats.Sessions.Update(int64(s.activeCount()))
	}()
	return c
}

func (s *Server) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close stops listener and drops all connections
func (s *Server) Close() error {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		if s.ln != nil {
			s.ln.Close()
		}
		list := make([]*Conn, 0, len(s.conns))
		for _, c := range s.conns {
			list = append(list, c)
		}
		s.mu.Unlock()
		for _, c := range list {
			c.Close()
		}
	})
	s.wg.Wait()
	return nil
}

func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		l = append(l, c)
	}
	return l
}

func (s *Server) Submits() []Submitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submitted(nil), s.submits...)
}

func (s *Server) Acks() []Ack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Ack(nil), s.acks...)
}

func (s *Server) nextMessageID() string {
	return fmt.Sprintf("%08x", atomic.AddUint64(&s.msgSeq, 1))
}

func (s *Server) checkAccount(b smpplink.SMPPBind) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Accounts) == 0 {
		return smppconst.ESME_ROK
	}
	pw, ok := s.Accounts[b.SystemID]
	if !ok {
		return smppconst.ESME_RINVSYSID
	}
	if pw != b.Password {
		return smppconst.ESME_RINVPASWD
	}
	return smppconst.ESME_ROK
}

// receiver finds bound RX/TRX connection of systemID, prefer is checked first
func (s *Server) receiver(systemID string, prefer *Conn) *Conn {
	if prefer != nil && prefer.canReceive() {
		return prefer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Conn
	for _, c := range s.conns {
		if c.canReceive() && (systemID == "" || c.SystemID() == systemID) {
			if found == nil || c.ID < found.ID {
				found = c
			}
		}
	}
	return found
}

// DeliverMO sends DELIVER_SM to a receiver of systemID ("" means any) and waits for DELIVER_SM_RESP
func (s *Server) DeliverMO(ctx context.Context, systemID string, ss smpplink.SMPPSubmit) (uint32, error) {
	c := s.receiver(systemID, nil)
	if c == nil {
		return 0, errors.Wrapf(ErrNoReceiver, "system_id %q", systemID)
	}
	return c.Deliver(ctx, ss)
}

// BuildReport prepares receipt DELIVER_SM for message submitted as ss
func BuildReport(messageID string, ss smpplink.SMPPSubmit, status string, submitted time.Time) smpplink.SMPPSubmit {
	r := smpplink.DeliveryReport{
		MessageID:  messageID,
		Status:     status,
		SubmitDate: submitted,
		DoneDate:   time.Now(),
		Text:       string(ss.Payload()),
	}
	if status != "DELIVRD" && status != "ENROUTE" && status != "ACCEPTD" {
		r.Err = "001"
	}

	d := smpplink.SMPPSubmit{
		Source:       ss.Dest,
		Dest:         ss.Source,
		ESMClass:     smppconst.ESM_MSGTYPE_DELIVERY_RECEIPT,
		ShortMessage: []byte(smpplink.FormatReceipt(r)),
	}
	d.TLV.SetString(smppconst.TLV_RECEIPTED_MESSAGE_ID, messageID)
	d.TLV.Set(smppconst.TLV_MESSAGE_STATE, []byte{smpplink.MessageStateByName(status)})
	if r.Err != "" {
		// GSM network type, error 1
		d.TLV.Set(smppconst.TLV_NETWORK_ERROR_CODE, []byte{0x03, 0x00, 0x01})
	}
	return d
}

func (s *Server) sendReport(from *Conn, messageID string, ss smpplink.SMPPSubmit, status string, submitted time.Time) {
	if s.DLRDelay > 0 {
		select {
		case <-time.After(s.DLRDelay):
		case <-s.closed:
			return
		}
	}
	c := s.receiver(from.SystemID(), from)
	if c == nil {
		log.WithFields(log.Fields{"type": "smsc", "CID": from.ID, "service": "DLR", "MsgID": messageID}).Warning("No receiver for delivery report")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.Deliver(ctx, BuildReport(messageID, ss, status, submitted)); err != nil {
		log.WithFields(log.Fields{"type": "smsc", "CID": c.ID, "service": "DLR", "MsgID": messageID}).Warning("Delivery report is not confirmed: ", err)
		return
	}
	s.Stats.DLR.Mark(1)
}
