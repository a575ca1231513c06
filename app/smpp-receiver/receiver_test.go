package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/coding"
	"github.com/smpptool/smpplink/smsc"
)

func startSMSC(t *testing.T) (*smsc.Server, smpplink.ConnConfig) {
	srv := smsc.New()
	srv.Accounts["user"] = "pass"
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	host, port, _ := net.SplitHostPort(addr)
	p, _ := strconv.Atoi(port)
	return srv, smpplink.ConnConfig{Host: host, Port: p, DialTimeout: time.Second}
}

var testBind = smpplink.SMPPBind{ConnMode: smpplink.CSMPPTRX, SystemID: "user", Password: "pass"}

func TestProcessCMDLine(t *testing.T) {
	p, err := ProcessCMDLine([]string{"-m", "receive", "-w", "5"})
	require.NoError(t, err)
	assert.Equal(t, "receive", p.mode)
	assert.True(t, p.set["w"])
	assert.False(t, p.set["n"])

	_, err = ProcessCMDLine([]string{"-m", "listen"})
	assert.Error(t, err)
}

func TestReceiverMO(t *testing.T) {
	rc := NewReceiver()
	rc.Quiet = true
	r := rc.Router()

	enc, _ := coding.Encode("hello")
	r.OnMessage(smpplink.Message{Source: smpplink.SMPPAddress{Addr: "1"}, Body: enc.Data, DataCoding: enc.DataCoding()})
	assert.False(t, rc.WaitMO(context.Background(), 50*time.Millisecond, true))
	assert.Equal(t, 1, rc.Received())
	assert.Equal(t, 0, rc.Correlated())

	enc, _ = coding.Encode(cli.TestMessage("SMSC_1", "user", false, time.Now()))
	r.OnMessage(smpplink.Message{Body: enc.Data, DataCoding: enc.DataCoding()})
	assert.True(t, rc.WaitMO(context.Background(), time.Second, true))
	assert.Equal(t, 1, rc.Correlated())

	// Unknown data_coding still gives readable text
	r.OnMessage(smpplink.Message{Body: []byte("raw"), DataCoding: 0x55})
	assert.True(t, rc.WaitMO(context.Background(), time.Second, false))

	r.OnDeliveryReport(smpplink.DeliveryReport{MessageID: "1", Status: "DELIVRD"})
	assert.Equal(t, 1, rc.Reports())

	ev := rc.Events.List()
	require.Len(t, ev, 4)
	assert.Equal(t, "MO", ev[0].Kind)
	assert.Equal(t, "raw", ev[2].Data.(smpplink.MessageView).Text)
	assert.Equal(t, "DLR", ev[3].Kind)
}

func TestIsTestMessage(t *testing.T) {
	assert.True(t, IsTestMessage("Fwd: Testing SMPP\nServer: x"))
	assert.False(t, IsTestMessage("testing smpp"))
}

func TestBackoff(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 5 * time.Second}
	d := b.next(0)
	assert.Equal(t, time.Second, d)
	d = b.next(d)
	assert.Equal(t, 2*time.Second, d)
	d = b.next(b.next(d))
	assert.Equal(t, 5*time.Second, d)
}

func TestKeepConnected(t *testing.T) {
	srv, cc := startSMSC(t)
	pool := smpplink.NewSessionPool(nil, nil, smpplink.SessionConfig{EnquireLinkInterval: -1})

	ctx, cancel := context.WithCancel(context.Background())
	bound := make(chan *smpplink.SMPPSession, 4)
	done := make(chan struct{})
	go func() {
		keepConnected(ctx, pool, cc, testBind, Backoff{Min: 20 * time.Millisecond, Max: 100 * time.Millisecond}, func(s *smpplink.SMPPSession) { bound <- s })
		close(done)
	}()

	var first *smpplink.SMPPSession
	select {
	case first = <-bound:
	case <-time.After(2 * time.Second):
		t.Fatal("session is not bound")
	}

	// SMSC drops the connection, session is reopened
	for _, c := range srv.Conns() {
		c.Close()
	}
	select {
	case s := <-bound:
		assert.NotEqual(t, first, s)
		assert.NotEqual(t, first.SessionID, s.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("session is not reopened")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepConnected does not stop")
	}
	pool.Close(context.Background())
}

func TestHTTPHandler(t *testing.T) {
	srv, cc := startSMSC(t)
	srv.OnSubmit = func(c *smsc.Conn, ss smpplink.SMPPSubmit) smsc.Decision {
		return smsc.Decision{MessageID: "abc123"}
	}

	rc := NewReceiver()
	rc.Quiet = true
	pool := smpplink.NewSessionPool(rc.Router(), nil, smpplink.SessionConfig{EnquireLinkInterval: -1})
	h := &HttpHandler{p: pool, rc: rc, source: smpplink.SMPPAddress{TON: 5, Addr: "Test"}, submitTimeout: time.Second}
	e := newEngine(h)

	do := func(method, url, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(method, url, bytes.NewBufferString(body))
		e.ServeHTTP(w, req)
		return w
	}

	w := do("GET", "/session/list", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	w = do("POST", "/message/submit", `{"dest":{"Addr":"46701234567"},"text":"Hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	_, _, err := pool.Open(context.Background(), cc, testBind)
	require.NoError(t, err)
	defer pool.Close(context.Background())

	w = do("GET", "/session/list", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sl []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sl))
	require.Len(t, sl, 1)
	assert.Equal(t, "Bound", sl[0]["State"])
	assert.Equal(t, "SMSC", sl[0]["SMSCID"])

	w = do("POST", "/message/submit", `{"dest":{"Addr":"46701234567"},"text":"Hello"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		SID     uint32               `json:"sid"`
		Message smpplink.MessageView `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "abc123", res.Message.MessageID)
	assert.Equal(t, "Test", res.Message.Source.Addr)
	assert.Equal(t, "Hello", res.Message.Text)

	sub := srv.Submits()
	require.Len(t, sub, 1)
	assert.Equal(t, "46701234567", sub[0].Submit.Dest.Addr)

	w = do("POST", "/message/submit", `{"text":"no dest"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do("GET", "/events", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
