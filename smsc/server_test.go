package smsc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpptool/smpplink"
	smppconst "github.com/smpptool/smpplink/const"
)

// rawClient talks to the server over in-memory pipe without ESME session logic
func rawClient(t *testing.T, s *Server) net.Conn {
	a, b := net.Pipe()
	s.ServeConn(a)
	t.Cleanup(func() { b.Close() })
	return b
}

func exchange(t *testing.T, c net.Conn, p smpplink.SMPPPacket) smpplink.SMPPPacket {
	t.Helper()
	c.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := c.Write(p.Bytes())
	require.NoError(t, err)
	r, err := smpplink.ReadPacket(c)
	require.NoError(t, err)
	return r
}

func bind(t *testing.T, c net.Conn, mode smpplink.ConnSMPPMode, user, pass string) smpplink.SMPPPacket {
	p, err := smpplink.EncodeBind(mode, smpplink.SMPPBind{SystemID: user, Password: pass, IVersion: 0x34})
	require.NoError(t, err)
	p.Hdr.Seq = 1
	return exchange(t, c, p)
}

func TestBind(t *testing.T) {
	s := New()
	s.Accounts["user"] = "pass"
	defer s.Close()

	tests := []struct {
		name   string
		user   string
		pass   string
		status uint32
	}{
		{"accepted", "user", "pass", smppconst.ESME_ROK},
		{"wrong password", "user", "nope", smppconst.ESME_RINVPASWD},
		{"unknown system_id", "other", "pass", smppconst.ESME_RINVSYSID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := rawClient(t, s)
			r := bind(t, c, smpplink.CSMPPTRX, tt.user, tt.pass)
			assert.Equal(t, uint32(smppconst.CMD_BIND_TRANSCEIVER_RESP), r.Hdr.ID)
			assert.Equal(t, tt.status, r.Hdr.Status)
		})
	}
}

func TestBindTwice(t *testing.T) {
	s := New()
	defer s.Close()

	c := rawClient(t, s)
	require.Equal(t, uint32(smppconst.ESME_ROK), bind(t, c, smpplink.CSMPPTX, "a", "b").Hdr.Status)
	assert.Equal(t, uint32(smppconst.ESME_RALYBND), bind(t, c, smpplink.CSMPPTX, "a", "b").Hdr.Status)
}

func TestSubmit(t *testing.T) {
	s := New()
	s.DLRStatus = ""
	defer s.Close()

	c := rawClient(t, s)
	ss := smpplink.SMPPSubmit{Dest: smpplink.SMPPAddress{Addr: "46701234567"}, ShortMessage: []byte("Hello")}
	p, err := smpplink.EncodeSubmitSm(ss)
	require.NoError(t, err)
	p.Hdr.Seq = 2

	// Not bound yet
	r := exchange(t, c, p)
	assert.Equal(t, uint32(smppconst.ESME_RINVBNDSTS), r.Hdr.Status)

	bind(t, c, smpplink.CSMPPTX, "user", "pass")
	r = exchange(t, c, p)
	require.Equal(t, uint32(smppconst.ESME_ROK), r.Hdr.Status)
	resp, err := smpplink.DecodeSubmitSmResp(r)
	require.NoError(t, err)
	assert.Equal(t, "00000001", resp.MessageID)

	sub := s.Submits()
	require.Len(t, sub, 1)
	assert.Equal(t, "user", sub[0].SystemID)
	assert.Equal(t, "46701234567", sub[0].Submit.Dest.Addr)
}

func TestSubmitDecision(t *testing.T) {
	s := New()
	s.OnSubmit = func(c *Conn, ss smpplink.SMPPSubmit) Decision {
		return Decision{Status: smppconst.ESME_RTHROTTLED}
	}
	defer s.Close()

	c := rawClient(t, s)
	bind(t, c, smpplink.CSMPPTRX, "user", "pass")

	p, _ := smpplink.EncodeSubmitSm(smpplink.SMPPSubmit{ShortMessage: []byte("x")})
	p.Hdr.Seq = 5
	r := exchange(t, c, p)
	assert.Equal(t, uint32(smppconst.ESME_RTHROTTLED), r.Hdr.Status)
	assert.Empty(t, s.Submits())
}

func TestMalformedAndUnknown(t *testing.T) {
	s := New()
	defer s.Close()

	c := rawClient(t, s)
	bind(t, c, smpplink.CSMPPTRX, "user", "pass")

	r := exchange(t, c, smpplink.SMPPPacket{Hdr: smpplink.SMPPHeader{ID: smppconst.CMD_SUBMIT_SM, Seq: 3}, Body: []byte{0}})
	assert.Equal(t, uint32(smppconst.CMD_GENERIC_NACK), r.Hdr.ID)
	assert.Equal(t, uint32(smppconst.ESME_RINVCMDLEN), r.Hdr.Status)

	r = exchange(t, c, smpplink.SMPPPacket{Hdr: smpplink.SMPPHeader{ID: smppconst.CMD_QUERY_SM, Seq: 4}})
	assert.Equal(t, uint32(smppconst.ESME_RINVCMDID), r.Hdr.Status)

	r = exchange(t, c, smpplink.EncodeEnquireLink(6))
	assert.Equal(t, uint32(smppconst.CMD_ENQUIRE_LINK_RESP), r.Hdr.ID)
	assert.Equal(t, uint32(6), r.Hdr.Seq)
}

func TestReportOnlyOnFailure(t *testing.T) {
	s := New()
	defer s.Close()

	c := rawClient(t, s)
	bind(t, c, smpplink.CSMPPTRX, "user", "pass")

	ss := smpplink.SMPPSubmit{ShortMessage: []byte("x"), RegisteredDelivery: smppconst.REG_DELIVERY_FAILURE}
	p, _ := smpplink.EncodeSubmitSm(ss)
	p.Hdr.Seq = 2
	exchange(t, c, p)

	// DELIVRD is not reported for failure-only requests
	c.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, err := smpplink.ReadPacket(c)
	var ne net.Error
	assert.True(t, errors.As(err, &ne) && ne.Timeout())
}

func TestDeliverMO(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.DeliverMO(context.Background(), "user", smpplink.SMPPSubmit{ShortMessage: []byte("hi")})
	assert.True(t, errors.Is(err, ErrNoReceiver))

	c := rawClient(t, s)
	bind(t, c, smpplink.CSMPPRX, "user", "pass")

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		st, err := s.DeliverMO(ctx, "user", smpplink.SMPPSubmit{ShortMessage: []byte("hi")})
		if err == nil && st != smppconst.ESME_ROK {
			err = errors.Errorf("status %d", st)
		}
		done <- err
	}()

	c.SetDeadline(time.Now().Add(2 * time.Second))
	p, err := smpplink.ReadPacket(c)
	require.NoError(t, err)
	require.Equal(t, uint32(smppconst.CMD_DELIVER_SM), p.Hdr.ID)
	ss, err := smpplink.DecodeSubmitDeliverSm(p)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), ss.ShortMessage)

	_, err = c.Write(smpplink.EncodeDeliverSmResp(p.Hdr.Seq, smppconst.ESME_ROK).Bytes())
	require.NoError(t, err)
	require.NoError(t, <-done)

	acks := s.Acks()
	require.Len(t, acks, 1)
	assert.Equal(t, p.Hdr.Seq, acks[0].Seq)
}

func TestBuildReport(t *testing.T) {
	submitted := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	ss := smpplink.SMPPSubmit{
		Source:       smpplink.SMPPAddress{TON: 5, Addr: "Test"},
		Dest:         smpplink.SMPPAddress{TON: 1, NPI: 1, Addr: "46701234567"},
		ShortMessage: []byte("Hello"),
	}

	d := BuildReport("abc123", ss, "UNDELIV", submitted)
	assert.Equal(t, uint8(smppconst.ESM_MSGTYPE_DELIVERY_RECEIPT), d.ESMClass)
	assert.Equal(t, "46701234567", d.Source.Addr)
	assert.Equal(t, "Test", d.Dest.Addr)

	dr := smpplink.BuildDeliveryReport(&d)
	assert.Equal(t, "abc123", dr.MessageID)
	assert.Equal(t, "UNDELIV", dr.Status)
	assert.Equal(t, "001", dr.Err)
	assert.Equal(t, "Hello", dr.Text)
	assert.Equal(t, submitted, dr.SubmitDate)
	assert.Equal(t, uint8(smppconst.MSG_STATE_UNDELIVERABLE), dr.MessageState)
	assert.Equal(t, []byte{0x03, 0x00, 0x01}, dr.NetworkErrorCode)
	assert.True(t, dr.IsFinal())
}

func TestServerStartClose(t *testing.T) {
	s := New()
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	bind(t, conn, smpplink.CSMPPTRX, "user", "pass")
	assert.Len(t, s.Conns(), 1)

	require.NoError(t, s.Close())
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = smpplink.ReadPacket(conn)
	assert.Error(t, err)
}
