// smpp-dumb-server is an SMSC simulator: accepts binds, acknowledges SUBMIT_SM and sends delivery receipts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/admin"
	"github.com/smpptool/smpplink/app/internal/cli"
	"github.com/smpptool/smpplink/smsc"
)

type Config struct {
	Port     int               `yaml:"port,omitempty" envconfig:"SMSC_PORT"`
	SystemID string            `yaml:"systemID,omitempty" envconfig:"SMSC_SYSTEM_ID"`
	Accounts map[string]string `yaml:"accounts" envconfig:"SMSC_ACCOUNTS"`

	// Receipt stat, "none" disables receipts
	DLRStatus string        `yaml:"dlrStatus,omitempty" envconfig:"SMSC_DLR_STATUS"`
	DLRDelay  time.Duration `yaml:"dlrDelay,omitempty" envconfig:"SMSC_DLR_DELAY"`

	LogLevel   string `yaml:"logLevel,omitempty" envconfig:"LOG_LEVEL"`
	HTTPListen string `yaml:"httpListen,omitempty" envconfig:"HTTP_LISTEN"`
}

func loadConfig(fileName string, explicit bool) (cfg Config, err error) {
	source, err := ioutil.ReadFile(fileName)
	if err == nil {
		if err = yaml.Unmarshal(source, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse %s", fileName)
		}
		log.WithFields(log.Fields{"type": "smpp-server"}).Info("Loaded configuration file: ", fileName)
	} else if explicit {
		return cfg, errors.Wrapf(err, "read %s", fileName)
	}
	if err = envconfig.Process("", &cfg); err != nil {
		return cfg, errors.Wrap(err, "environment")
	}

	// Fill default values for config
	if cfg.Port < 1 {
		cfg.Port = 2775
	}
	if cfg.SystemID == "" {
		cfg.SystemID = "SMSC"
	}
	switch cfg.DLRStatus {
	case "":
		cfg.DLRStatus = "DELIVRD"
	case "none":
		cfg.DLRStatus = ""
	}
	return cfg, nil
}

func newServer(cfg Config) *smsc.Server {
	srv := smsc.New()
	srv.SystemID = cfg.SystemID
	for k, v := range cfg.Accounts {
		srv.Accounts[k] = v
	}
	srv.DLRStatus = cfg.DLRStatus
	srv.DLRDelay = cfg.DLRDelay
	return srv
}

// rateReporter prints number of accepted SUBMIT_SM every second
func rateReporter(ctx context.Context, st *smpplink.Stats) {
	var sv int64
	c := time.NewTicker(time.Second)
	defer c.Stop()
	for {
		select {
		case <-c.C:
			sn := st.Submit.Count()
			if sn > sv {
				fmt.Println("[ SMSC ] During last 1s: ", sn-sv)
				sv = sn
			}
		case <-ctx.Done():
			return
		}
	}
}

func main() {
	var configFile, logLevel string
	flag.StringVar(&configFile, "c", "config.yml", "YAML configuration file")
	flag.StringVar(&logLevel, "log", "", "Log level (trace, debug, info, warning, error)")
	flag.Parse()
	explicit := false
	flag.Visit(func(f *flag.Flag) { explicit = explicit || f.Name == "c" })

	cli.SetupLog("info")
	cfg, err := loadConfig(configFile, explicit)
	if err != nil {
		cli.Exitf("%v", err)
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	if logLevel != "" {
		cli.SetupLog(logLevel)
	}

	log.WithFields(log.Fields{"type": "smpp-server"}).Info("Start")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := newServer(cfg)
	addr, err := srv.Start(net.JoinHostPort("0.0.0.0", strconv.Itoa(cfg.Port)))
	if err != nil {
		log.WithFields(log.Fields{"type": "smpp-server"}).Error("Error listening TCP socket: ", err)
		return
	}
	log.WithFields(log.Fields{"type": "smpp-server", "service": "ListenTCP"}).Warning("Starting listening on: ", addr)

	if cfg.HTTPListen != "" {
		go func() {
			if err := admin.Serve(ctx, cfg.HTTPListen, newEngine(srv)); err != nil {
				log.WithFields(log.Fields{"type": "smpp-server", "service": "http"}).Error("HTTP server failed: ", err)
			}
		}()
		log.WithFields(log.Fields{"type": "smpp-server", "service": "http"}).Warning("Admin API on: ", cfg.HTTPListen)
	}

	go rateReporter(ctx, srv.Stats)
	<-ctx.Done()
	srv.Close()
	log.WithFields(log.Fields{"type": "smpp-server"}).Warning("Stopped")
}
