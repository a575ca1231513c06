package smpplink

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	smppconst "github.com/smpptool/smpplink/const"
)

// ConnConfig describes SMSC endpoint
type ConnConfig struct {
	Host string
	Port int

	TLS bool
	// Accept self-signed SMSC certificates
	InsecureSkipVerify bool

	DialTimeout time.Duration
}

// Address returns host:port, default port depends on TLS flag
func (c ConnConfig) Address() string {
	port := c.Port
	if port == 0 {
		port = smppconst.SMPP_PLAIN_PORT
		if c.TLS {
			port = smppconst.SMPP_TLS_PORT
		}
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// Dial opens TCP or TLS connection to SMSC
func Dial(ctx context.Context, c ConnConfig) (net.Conn, error) {
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	nd := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}

	var conn net.Conn
	var err error
	if c.TLS {
		td := &tls.Dialer{
			NetDialer: nd,
			Config: &tls.Config{
				ServerName:         c.Host,
				InsecureSkipVerify: c.InsecureSkipVerify,
			},
		}
		conn, err = td.DialContext(ctx, "tcp", c.Address())
	} else {
		conn, err = nd.DialContext(ctx, "tcp", c.Address())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", c.Address())
	}
	log.WithFields(log.Fields{"type": "smpp", "service": "Dial", "addr": c.Address(), "tls": c.TLS}).Info("Connected")
	return conn, nil
}

// DialAndBind connects, starts the session and binds it. Connection is closed if bind fails.
func DialAndBind(ctx context.Context, c ConnConfig, b SMPPBind, cfg SessionConfig, r *Router) (*SMPPSession, error) {
	conn, err := Dial(ctx, c)
	if err != nil {
		return nil, err
	}
	s := NewSession(conn, cfg, r)
	if _, err := s.Bind(ctx, b); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
