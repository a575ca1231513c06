package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/coding"
)

func TestLoadConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(fn, []byte(`
port: 2776
systemID: SIM
accounts:
  user: pass
dlrStatus: none
`), 0644))
	t.Setenv("SMSC_DLR_DELAY", "2s")

	cfg, err := loadConfig(fn, true)
	require.NoError(t, err)
	assert.Equal(t, 2776, cfg.Port)
	assert.Equal(t, "SIM", cfg.SystemID)
	assert.Equal(t, map[string]string{"user": "pass"}, cfg.Accounts)
	assert.Equal(t, "", cfg.DLRStatus)
	assert.Equal(t, 2*time.Second, cfg.DLRDelay)

	srv := newServer(cfg)
	assert.Equal(t, "SIM", srv.SystemID)
	assert.Equal(t, "", srv.DLRStatus)

	missing := filepath.Join(t.TempDir(), "none.yml")
	cfg, err = loadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, 2775, cfg.Port)
	assert.Equal(t, "DELIVRD", cfg.DLRStatus)

	_, err = loadConfig(missing, true)
	assert.Error(t, err)
}

func TestAdminMO(t *testing.T) {
	srv := newServer(Config{SystemID: "SMSC", Accounts: map[string]string{"user": "pass"}, DLRStatus: "DELIVRD"})
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	mo := make(chan smpplink.Message, 1)
	r := smpplink.NewRouter()
	r.OnMessage = func(m smpplink.Message) { mo <- m }

	host, port, _ := net.SplitHostPort(addr)
	p, _ := strconv.Atoi(port)
	s, err := smpplink.DialAndBind(context.Background(),
		smpplink.ConnConfig{Host: host, Port: p, DialTimeout: time.Second},
		smpplink.SMPPBind{ConnMode: smpplink.CSMPPTRX, SystemID: "user", Password: "pass"},
		smpplink.SessionConfig{EnquireLinkInterval: -1}, r)
	require.NoError(t, err)
	defer s.Close()

	e := newEngine(srv)
	do := func(method, url, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(method, url, bytes.NewBufferString(body))
		e.ServeHTTP(w, req)
		return w
	}

	w := do("GET", "/session/list", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []ConnInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "user", list[0].SystemID)
	assert.Equal(t, "TRX", list[0].Mode)
	assert.Equal(t, "Bound", list[0].State)

	w = do("POST", "/mo/user", `{"source":{"Addr":"46701234567"},"dest":{"Addr":"12345"},"text":"Привет"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"command_status":0`)

	select {
	case m := <-mo:
		assert.Equal(t, "46701234567", m.Source.Addr)
		text, err := coding.Decode(m.Body, m.DataCoding)
		require.NoError(t, err)
		assert.Equal(t, "Привет", text)
	case <-time.After(2 * time.Second):
		t.Fatal("MO is not delivered")
	}

	w = do("POST", "/mo/nobody", `{"dest":{"Addr":"12345"},"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do("POST", "/mo", `{"text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
