package main

import (
	"encoding/hex"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/smpptool/smpplink"
)

// TLV value, that is rendered for every message
type TLVDynamic struct {
	ID       smpplink.TLVCode
	Template string
}

// parseTLV parses TLV definitions in form `key;type;"value"`.
// Key is decimal or 0x-prefixed hex, type is one of string, hex or dynamic.
func parseTLV(list []string) (static smpplink.TLVList, dynamic []TLVDynamic, err error) {
	for _, tlv := range list {
		tEntity := strings.Split(tlv, ";")
		if len(tEntity) != 3 {
			return nil, nil, errors.Errorf("error parsing TLV [%s] - should be 3 params", tlv)
		}

		tVal := strings.TrimSpace(tEntity[2])
		if len(tVal) < 2 || tVal[0] != '"' || tVal[len(tVal)-1] != '"' {
			return nil, nil, errors.Errorf("error parsing TLV [%s] - take value into quotes", tlv)
		}
		tVal = tVal[1 : len(tVal)-1]

		key := strings.TrimSpace(tEntity[0])
		var tK uint64
		if len(key) > 2 && key[0:2] == "0x" {
			if tK, err = strconv.ParseUint(key[2:], 16, 16); err != nil {
				return nil, nil, errors.Errorf("error parsing TLV [%s] - HEX key [%s]: %v", tlv, key, err)
			}
		} else {
			if tK, err = strconv.ParseUint(key, 10, 16); err != nil {
				return nil, nil, errors.Errorf("error parsing TLV [%s] - DEC key [%s]: %v", tlv, key, err)
			}
		}

		switch strings.TrimSpace(tEntity[1]) {
		case "string":
			static.Set(smpplink.TLVCode(tK), []byte(tVal))
		case "hex":
			tV, err := hex.DecodeString(tVal)
			if err != nil {
				return nil, nil, errors.Errorf("error parsing TLV [%s] - HEX value [%s]: %v", tlv, tVal, err)
			}
			static.Set(smpplink.TLVCode(tK), tV)
		case "dynamic":
			dynamic = append(dynamic, TLVDynamic{ID: smpplink.TLVCode(tK), Template: tVal})
		default:
			return nil, nil, errors.Errorf("error parsing TLV [%s] - unsupported value type [%s]", tlv, tEntity[1])
		}
	}
	return static, dynamic, nil
}

// Generator produces messages from template
type Generator struct {
	Template smpplink.Message

	// Every '#' in destination address is replaced with random digit
	DestTemplate bool
	Dynamic      []TLVDynamic

	rnd *rand.Rand
}

func NewGenerator(m smpplink.Message, destTemplate bool, dynamic []TLVDynamic) *Generator {
	return &Generator{
		Template:     m,
		DestTemplate: destTemplate && strings.Contains(m.Dest.Addr, "#"),
		Dynamic:      dynamic,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns new message instance, not shared with other calls
func (g *Generator) Next(now time.Time) *smpplink.Message {
	m := g.Template
	m.TLV = append(smpplink.TLVList(nil), g.Template.TLV...)

	if g.DestTemplate {
		var b strings.Builder
		for _, c := range m.Dest.Addr {
			if c == '#' {
				b.WriteByte(byte('0' + g.rnd.Intn(10)))
			} else {
				b.WriteRune(c)
			}
		}
		m.Dest.Addr = b.String()
	}

	for _, d := range g.Dynamic {
		v := strings.ReplaceAll(d.Template, "{timestamp}", strconv.FormatInt(now.Unix(), 10))
		m.TLV.Set(d.ID, []byte(v))
	}
	return &m
}
