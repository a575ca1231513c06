package main

import (
	"flag"
	"io/ioutil"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/coding"
	"github.com/smpptool/smpplink/config"
	smppconst "github.com/smpptool/smpplink/const"
)

// Tool specific env file, loaded after config.CommonEnvFile
const EnvFile = ".env"

func ProcessCMDLine(args []string) (p Params, err error) {
	fs := flag.NewFlagSet("smpp-sender", flag.ContinueOnError)
	fs.BoolVar(&p.useTLS, "s", false, "Use SSL/TLS connection")
	fs.BoolVar(&p.interactive, "i", false, "Interactive mode - prompt for username, password and destination")
	fs.StringVar(&p.server, "server", "", "SMSC name (SMSC_1, SMSC_2) or host[:port]")
	fs.StringVar(&p.configFile, "c", "", "YAML configuration file")
	fs.StringVar(&p.logLevel, "log", "", "Log level (trace, debug, info, warning, error)")
	fs.StringVar(&p.text, "t", "", "Message text (default: generated test message)")
	fs.StringVar(&p.encoding, "e", "", "Encoding: auto, gsm, ascii, utf8, latin1, ucs2")
	fs.StringVar(&p.dest, "d", "", "Destination address (default: DEST_ADDRESS)")
	fs.UintVar(&p.count, "n", 1, "Number of messages to send")
	fs.UintVar(&p.rate, "r", 1, "Send rate, messages per second (0 - unlimited)")
	fs.UintVar(&p.window, "window", 0, "Max number of outstanding SUBMIT_SM (default: session window)")
	fs.UintVar(&p.wait, "w", 30, "Seconds to wait for delivery reports")
	if err = fs.Parse(args); err != nil {
		return
	}

	p.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { p.set[f.Name] = true })
	return
}

// loadConfig reads common and sender configuration. Precedence: flags, environment, files, defaults.
func loadConfig(p Params) (cfg *config.Config, sc Config, err error) {
	if cfg, err = config.Load(p.configFile, config.CommonEnvFile, EnvFile); err != nil {
		return
	}

	sc.Generator.SendCount = 1
	sc.Generator.SendRate = 1
	sc.Generator.Wait = 30
	if p.configFile != "" {
		var source []byte
		if source, err = ioutil.ReadFile(p.configFile); err != nil {
			err = errors.Wrapf(err, "cannot read config file [%s]", p.configFile)
			return
		}
		if err = yaml.Unmarshal(source, &sc); err != nil {
			err = errors.Wrapf(err, "error parsing config file [%s]", p.configFile)
			return
		}
	}

	if err = envconfig.Process("", &sc.Generator); err != nil {
		err = errors.Wrap(err, "error parsing ENVIRONMENT configuration")
		return
	}

	g := &sc.Generator
	if p.set["n"] {
		g.SendCount = p.count
	}
	if p.set["r"] {
		g.SendRate = p.rate
	}
	if p.set["window"] {
		g.SendWindow = p.window
	}
	if p.set["w"] {
		g.Wait = p.wait
	}
	if p.text != "" {
		g.Message.Text = p.text
	}
	if p.encoding != "" {
		g.Message.Encoding = p.encoding
	}
	if p.dest != "" {
		cfg.Dest.Addr = p.dest
	}
	if g.SendWindow == 0 {
		g.SendWindow = uint(cfg.Session.Window)
	}
	if g.SendCount == 0 {
		err = errors.New("nothing to send, message count is 0")
	}
	return
}

// prepareMessage builds message template from configuration
func prepareMessage(cfg *config.Config, sc Config, text string) (*Generator, coding.Encoded, error) {
	gm := sc.Generator.Message

	enc, err := coding.EncodeAs(text, gm.Encoding)
	if err != nil {
		return nil, enc, errors.Wrapf(err, "cannot encode message text with [%s]", gm.Encoding)
	}

	static, dynamic, err := parseTLV(gm.TLV)
	if err != nil {
		return nil, enc, err
	}

	rd := uint8(smppconst.REG_DELIVERY_ALWAYS)
	if gm.RegisteredDelivery != nil {
		rd = *gm.RegisteredDelivery
	}

	m := smpplink.Message{
		Source:             cfg.Source.SMPP(),
		Dest:               cfg.Dest.SMPP(),
		Body:               enc.Data,
		DataCoding:         enc.DataCoding(),
		RegisteredDelivery: rd,
		ServiceType:        gm.ServiceType,
		ValidityPeriod:     gm.ValidityPeriod,
		TLV:                static,
	}
	return NewGenerator(m, gm.DestTemplate, dynamic), enc, nil
}
