package main

import (
	"time"

	"github.com/smpptool/smpplink"
)

// Sender specific part of configuration file, SMSC/bind/address sections are read by config package
type Config struct {
	Generator GeneratorConfig
}

type GeneratorConfig struct {
	Message struct {
		Text               string   `yaml:"text"`
		Encoding           string   `yaml:"encoding"`
		DestTemplate       bool     `yaml:"destTemplate"`
		RegisteredDelivery *uint8   `yaml:"registeredDelivery"`
		ValidityPeriod     string   `yaml:"validityPeriod"`
		ServiceType        string   `yaml:"serviceType"`
		TLV                []string `yaml:"tlv"`
	} `ignored:"true"`
	SendCount  uint `yaml:"count" envconfig:"SEND_COUNT"`
	SendRate   uint `yaml:"rate" envconfig:"SEND_RATE"`
	SendWindow uint `yaml:"window" envconfig:"SEND_WINDOW"`

	// Seconds to wait for delivery reports after the last submit
	Wait uint `yaml:"wait" envconfig:"DLR_WAIT"`
}

type Params struct {
	server      string
	useTLS      bool
	interactive bool
	logLevel    string
	configFile  string

	text     string
	encoding string
	dest     string

	count  uint
	rate   uint
	window uint
	wait   uint

	// Flags set explicitly in command line
	set map[string]bool
}

// Result of a single SUBMIT_SM
type submitResult struct {
	N       uint
	Message *smpplink.Message
	Err     error
	RTD     time.Duration
}
