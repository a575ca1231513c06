// Package config loads tool configuration: defaults, YAML file, .env files and process environment (in this order).
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/smpptool/smpplink"
	smppconst "github.com/smpptool/smpplink/const"
)

// Common env file, loaded before tool specific one
const CommonEnvFile = ".env.common"

type Address struct {
	TON  uint8  `yaml:"ton"`
	NPI  uint8  `yaml:"npi"`
	Addr string `yaml:"addr"`
}

func (a Address) SMPP() smpplink.SMPPAddress {
	return smpplink.SMPPAddress{TON: a.TON, NPI: a.NPI, Addr: a.Addr}
}

type Config struct {
	Log struct {
		Level string `yaml:"level,omitempty"`
	}

	SMSC struct {
		// Server name (SMSC_1, SMSC_2, ...) => host
		Servers            map[string]string `yaml:"servers"`
		PlainPort          int               `yaml:"plainPort"`
		TLSPort            int               `yaml:"tlsPort"`
		TLS                bool              `yaml:"tls"`
		InsecureSkipVerify bool              `yaml:"insecureSkipVerify"`
	}

	Bind struct {
		SystemID   string `yaml:"systemID,omitempty"`
		Password   string `yaml:"password,omitempty"`
		SystemType string `yaml:"systemType,omitempty"`
		Mode       string `yaml:"mode,omitempty"`
	}

	Source Address `yaml:"source"`
	Dest   Address `yaml:"dest"`

	Receiver struct {
		Timeout           time.Duration `yaml:"timeout"`
		OriginatingNumber string        `yaml:"originatingNumber"`
		ReceivingNumber   string        `yaml:"receivingNumber"`
	}

	Session struct {
		ResponseTimeout time.Duration `yaml:"responseTimeout"`
		BindTimeout     time.Duration `yaml:"bindTimeout"`
		EnquireLink     time.Duration `yaml:"enquireLink"`
		Window          int           `yaml:"window"`
	}

	HTTP struct {
		Listen string `yaml:"listen,omitempty"`
	}
}

// Environment variables, names are shared with .env files
type envOverlay struct {
	SMSC1         string `envconfig:"SMSC_1"`
	SMSC2         string `envconfig:"SMSC_2"`
	PlainPort     int    `envconfig:"SMPP_PLAIN_PORT"`
	TLSPort       int    `envconfig:"SMPP_SSL_PORT"`
	TLSSkipVerify bool   `envconfig:"SMPP_TLS_SKIP_VERIFY"`

	Username   string `envconfig:"SMPP_USERNAME"`
	Password   string `envconfig:"SMPP_PASSWORD"`
	SystemType string `envconfig:"SMPP_SYSTEM_TYPE"`
	BindMode   string `envconfig:"SMPP_BIND_MODE"`

	SourceTON  uint8  `envconfig:"SOURCE_TON"`
	SourceNPI  uint8  `envconfig:"SOURCE_NPI"`
	SourceAddr string `envconfig:"SOURCE_ADDRESS"`
	DestTON    uint8  `envconfig:"DEST_TON"`
	DestNPI    uint8  `envconfig:"DEST_NPI"`
	DestAddr   string `envconfig:"DEST_ADDRESS"`

	ReceiverTimeout   int    `envconfig:"RECEIVER_TIMEOUT"`
	OriginatingNumber string `envconfig:"ORIGINATING_PHONE_NUMBER"`
	ReceivingNumber   string `envconfig:"RECEIVING_PHONE_NUMBER"`

	LogLevel   string `envconfig:"LOG_LEVEL"`
	HTTPListen string `envconfig:"HTTP_LISTEN"`
}

func Default() *Config {
	c := &Config{}
	c.Log.Level = "info"
	c.SMSC.Servers = map[string]string{}
	c.SMSC.PlainPort = smppconst.SMPP_PLAIN_PORT
	c.SMSC.TLSPort = smppconst.SMPP_TLS_PORT
	c.Bind.Mode = "TRX"
	c.Source = Address{TON: smppconst.TON_ALPHANUMERIC, NPI: smppconst.NPI_UNKNOWN}
	c.Dest = Address{TON: smppconst.TON_INTERNATIONAL, NPI: smppconst.NPI_ISDN}
	c.Receiver.Timeout = 30 * time.Second
	c.Session.ResponseTimeout = smppconst.TX_MAX_TIMEOUT_MS * time.Millisecond
	c.Session.BindTimeout = smppconst.BIND_TIMEOUT_MS * time.Millisecond
	c.Session.EnquireLink = smppconst.ENQUIRE_LINK_INTERVAL_MS * time.Millisecond
	c.Session.Window = smppconst.TX_WINDOW
	return c
}

// Load builds configuration. Empty configFileName skips YAML, missing env files are skipped.
func Load(configFileName string, envFiles ...string) (*Config, error) {
	c := Default()

	if configFileName != "" {
		source, err := ioutil.ReadFile(configFileName)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot read config file [%s]", configFileName)
		}
		if err = yaml.Unmarshal(source, c); err != nil {
			return nil, errors.Wrapf(err, "error parsing config file [%s]", configFileName)
		}
		log.WithFields(log.Fields{"type": "config"}).Info("Loaded configuration file: ", configFileName)
	}

	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadEnvFiles exports variables from .env files, later files override earlier ones.
// Variables already set in process environment are never overridden.
func loadEnvFiles(files ...string) error {
	merged := map[string]string{}
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			if os.IsNotExist(errors.Cause(err)) {
				log.WithFields(log.Fields{"type": "config", "file": f}).Debug("Env file not found, skipped")
				continue
			}
			return errors.Wrapf(err, "error parsing env file [%s]", f)
		}
		for k, v := range m {
			merged[k] = v
		}
		log.WithFields(log.Fields{"type": "config", "file": f, "count": len(m)}).Debug("Loaded env file")
	}
	for k, v := range merged {
		if _, ok := os.LookupEnv(k); !ok {
			if err := os.Setenv(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	e := envOverlay{
		SMSC1:             c.SMSC.Servers["SMSC_1"],
		SMSC2:             c.SMSC.Servers["SMSC_2"],
		PlainPort:         c.SMSC.PlainPort,
		TLSPort:           c.SMSC.TLSPort,
		TLSSkipVerify:     c.SMSC.InsecureSkipVerify,
		Username:          c.Bind.SystemID,
		Password:          c.Bind.Password,
		SystemType:        c.Bind.SystemType,
		BindMode:          c.Bind.Mode,
		SourceTON:         c.Source.TON,
		SourceNPI:         c.Source.NPI,
		SourceAddr:        c.Source.Addr,
		DestTON:           c.Dest.TON,
		DestNPI:           c.Dest.NPI,
		DestAddr:          c.Dest.Addr,
		ReceiverTimeout:   int(c.Receiver.Timeout / time.Second),
		OriginatingNumber: c.Receiver.OriginatingNumber,
		ReceivingNumber:   c.Receiver.ReceivingNumber,
		LogLevel:          c.Log.Level,
		HTTPListen:        c.HTTP.Listen,
	}

	// Only variables that are present in environment are changed
	if err := envconfig.Process("", &e); err != nil {
		return errors.Wrap(err, "error parsing ENVIRONMENT configuration")
	}

	if c.SMSC.Servers == nil {
		c.SMSC.Servers = map[string]string{}
	}
	if e.SMSC1 != "" {
		c.SMSC.Servers["SMSC_1"] = e.SMSC1
	}
	if e.SMSC2 != "" {
		c.SMSC.Servers["SMSC_2"] = e.SMSC2
	}
	c.SMSC.PlainPort = e.PlainPort
	c.SMSC.TLSPort = e.TLSPort
	c.SMSC.InsecureSkipVerify = e.TLSSkipVerify
	c.Bind.SystemID = e.Username
	c.Bind.Password = e.Password
	c.Bind.SystemType = e.SystemType
	c.Bind.Mode = e.BindMode
	c.Source = Address{TON: e.SourceTON, NPI: e.SourceNPI, Addr: e.SourceAddr}
	c.Dest = Address{TON: e.DestTON, NPI: e.DestNPI, Addr: e.DestAddr}
	c.Receiver.Timeout = time.Duration(e.ReceiverTimeout) * time.Second
	c.Receiver.OriginatingNumber = e.OriginatingNumber
	c.Receiver.ReceivingNumber = e.ReceivingNumber
	c.Log.Level = e.LogLevel
	c.HTTP.Listen = e.HTTPListen
	return nil
}

// ApplyLogLevel switches logrus level, if configured
func (c *Config) ApplyLogLevel() {
	if len(c.Log.Level) == 0 {
		return
	}
	if l, err := log.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(l)
		log.WithFields(log.Fields{"type": "config"}).Debug("Switch LogLevel to: ", l.String())
	} else {
		log.WithFields(log.Fields{"type": "config"}).Warning("Incorrect LogLevel [", c.Log.Level, "]")
	}
}

// ServerNames returns configured SMSC names in sorted order
func (c *Config) ServerNames() []string {
	l := make([]string, 0, len(c.SMSC.Servers))
	for k, v := range c.SMSC.Servers {
		if v != "" {
			l = append(l, k)
		}
	}
	sort.Strings(l)
	return l
}

// Conn returns endpoint of SMSC by name. Name can also be a host or host:port.
func (c *Config) Conn(server string, useTLS bool) (smpplink.ConnConfig, error) {
	cc := smpplink.ConnConfig{
		TLS:                useTLS || c.SMSC.TLS,
		InsecureSkipVerify: c.SMSC.InsecureSkipVerify,
	}
	cc.Port = c.SMSC.PlainPort
	if cc.TLS {
		cc.Port = c.SMSC.TLSPort
	}

	host, ok := c.SMSC.Servers[server]
	if !ok || host == "" {
		if server == "" {
			return cc, fmt.Errorf("SMSC server is not specified")
		}
		host = server
	}

	// host:port
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i+1:], "]") {
		var port int
		if _, err := fmt.Sscanf(host[i+1:], "%d", &port); err == nil && port > 0 {
			cc.Port = port
			host = strings.Trim(host[:i], "[]")
		}
	}
	cc.Host = host
	return cc, nil
}

// BindParams builds BIND request from configuration
func (c *Config) BindParams() (smpplink.SMPPBind, error) {
	mode, err := smpplink.ParseConnMode(strings.ToUpper(c.Bind.Mode))
	if err != nil {
		return smpplink.SMPPBind{}, err
	}
	return smpplink.SMPPBind{
		ConnMode:   mode,
		SystemID:   c.Bind.SystemID,
		Password:   c.Bind.Password,
		SystemType: c.Bind.SystemType,
		IVersion:   smppconst.SMPP_INTERFACE_VERSION,
	}, nil
}

func (c *Config) SessionConfig() smpplink.SessionConfig {
	return smpplink.SessionConfig{
		ResponseTimeout:     c.Session.ResponseTimeout,
		BindTimeout:         c.Session.BindTimeout,
		EnquireLinkInterval: c.Session.EnquireLink,
		Window:              c.Session.Window,
	}
}

// Require checks that listed environment names are configured
func (c *Config) Require(names ...string) error {
	values := map[string]string{
		"SMSC":                     strings.Join(c.ServerNames(), ","),
		"SMPP_USERNAME":            c.Bind.SystemID,
		"SMPP_PASSWORD":            c.Bind.Password,
		"SOURCE_ADDRESS":           c.Source.Addr,
		"DEST_ADDRESS":             c.Dest.Addr,
		"ORIGINATING_PHONE_NUMBER": c.Receiver.OriginatingNumber,
		"RECEIVING_PHONE_NUMBER":   c.Receiver.ReceivingNumber,
	}
	var missing []string
	for _, n := range names {
		if values[n] == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("not set in environment: %s", strings.Join(missing, ", "))
	}
	return nil
}
