package main

import (
	"encoding/hex"
	"flag"
	"strings"

	"github.com/pkg/errors"

	"github.com/smpptool/smpplink/coding"
)

// Text encodings, that could be selected with -e
var textSchemes = []*coding.Scheme{coding.GSM, coding.ASCII, coding.UTF8, coding.Latin1, coding.UCS2}

// Most compact first
var autoOrder = []*coding.Scheme{coding.GSM, coding.ASCII, coding.Latin1, coding.UTF8, coding.UCS2}

type Params struct {
	encoding string
	list     bool
	verbose  bool
	packed   bool
	text     string
}

func ProcessCMDLine(args []string) (p Params, err error) {
	fs := flag.NewFlagSet("sms-encoder", flag.ContinueOnError)
	fs.StringVar(&p.encoding, "e", "", "Encoding: gsm, ascii, utf8, latin1, ucs2 (default: auto-select)")
	fs.BoolVar(&p.list, "l", false, "List supported encodings and exit")
	fs.BoolVar(&p.verbose, "v", false, "Show detailed encoding information")
	fs.BoolVar(&p.packed, "packed", false, "Show GSM 7-bit packed septets")
	if err = fs.Parse(args); err != nil {
		return
	}
	p.text = strings.Join(fs.Args(), " ")

	if p.encoding != "" {
		if _, err = textScheme(p.encoding); err != nil {
			return
		}
	}
	if !p.list && p.text == "" {
		err = errors.New("text message is required")
	}
	return
}

func textScheme(name string) (*coding.Scheme, error) {
	for _, s := range textSchemes {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return nil, errors.Wrapf(coding.ErrUnsupportedEncoding, "%q, supported: gsm, ascii, utf8, latin1, ucs2", name)
}

// Attempt is a single try to encode text
type Attempt struct {
	Scheme *coding.Scheme
	Err    error
}

// encodeText encodes with scheme name, or with the first scheme from autoOrder that can represent text.
// All tries are returned for verbose output.
func encodeText(text, name string) (enc coding.Encoded, tries []Attempt, err error) {
	order := autoOrder
	if name != "" {
		s, err := textScheme(name)
		if err != nil {
			return enc, nil, err
		}
		order = []*coding.Scheme{s}
	}

	for _, s := range order {
		b, e := s.Encode(text)
		tries = append(tries, Attempt{Scheme: s, Err: e})
		if e == nil {
			return coding.Encoded{Scheme: s, Data: b}, tries, nil
		}
	}
	if name != "" {
		return enc, tries, errors.Wrapf(tries[0].Err, "failed to encode with %s", strings.ToUpper(name))
	}
	return enc, tries, errors.New("no encoding can represent the text")
}

func hexString(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// ByteInfo maps encoded octet to the character it came from
type ByteInfo struct {
	Offset int
	Value  byte
	Char   string
}

// breakdown encodes text character by character, so escapes and UCS2 pairs point to their source
func breakdown(enc coding.Encoded, text string) []ByteInfo {
	var out []ByteInfo
	for _, r := range text {
		b, err := enc.Scheme.Encode(string(r))
		if err != nil {
			b = []byte{'?'}
		}
		for _, v := range b {
			out = append(out, ByteInfo{Offset: len(out), Value: v, Char: string(r)})
		}
	}
	return out
}

// packed returns septets packed into octets, nil for non GSM encodings
func packed(enc coding.Encoded) []byte {
	if enc.Scheme != coding.GSM {
		return nil
	}
	return coding.Pack7(enc.Data)
}
