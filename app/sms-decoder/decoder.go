package main

import (
	"encoding/hex"
	"flag"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/smpptool/smpplink/coding"
)

var textSchemes = []*coding.Scheme{coding.GSM, coding.ASCII, coding.UTF8, coding.Latin1, coding.UCS2}

// Order of likelihood for captured traffic
var detectOrder = []*coding.Scheme{coding.GSM, coding.UTF8, coding.ASCII, coding.Latin1, coding.UCS2}

type Params struct {
	encoding   string
	dataCoding string
	all        bool
	list       bool
	hex        string
}

func ProcessCMDLine(args []string) (p Params, err error) {
	fs := flag.NewFlagSet("sms-decoder", flag.ContinueOnError)
	fs.StringVar(&p.encoding, "e", "", "Force encoding: gsm, ascii, utf8, latin1, ucs2 (default: auto-detect)")
	fs.StringVar(&p.dataCoding, "d", "", "SMPP data_coding value (0x00=GSM, 0x01=ASCII, 0x02=UTF-8, 0x03=Latin-1, 0x08=UCS2)")
	fs.BoolVar(&p.all, "a", false, "Try all encodings and show results for each")
	fs.BoolVar(&p.list, "l", false, "List supported encodings and exit")
	if err = fs.Parse(args); err != nil {
		return
	}
	p.hex = strings.Join(fs.Args(), "")

	if !p.list && p.hex == "" {
		err = errors.New("hexadecimal string is required")
	}
	return
}

// hexToBytes drops separators (spaces, colons, dashes) and decodes the rest
func hexToBytes(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if len(clean)%2 != 0 {
		return nil, errors.New("hexadecimal string must have even length")
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, errors.Wrap(err, "invalid hexadecimal string")
	}
	return b, nil
}

func parseDataCoding(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid data_coding %q", s)
	}
	return uint8(v), nil
}

func textScheme(name string) (*coding.Scheme, error) {
	for _, s := range textSchemes {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return nil, errors.Wrapf(coding.ErrUnsupportedEncoding, "%q, supported: gsm, ascii, utf8, latin1, ucs2", name)
}

// Result of decoding with one scheme
type Result struct {
	Scheme *coding.Scheme
	Text   string
	Err    error
}

func (r Result) OK() bool { return r.Err == nil && r.Text != "" }

func decodeWith(b []byte, schemes []*coding.Scheme) []Result {
	out := make([]Result, 0, len(schemes))
	for _, s := range schemes {
		text, err := coding.Decode(b, s.DataCoding, coding.Force(s))
		out = append(out, Result{Scheme: s, Text: text, Err: err})
	}
	return out
}

// detect returns the first scheme, that gives non empty text
func detect(b []byte) (Result, bool) {
	for _, r := range decodeWith(b, detectOrder) {
		if r.OK() {
			return r, true
		}
	}
	return Result{}, false
}

// decodeDataCoding decodes as SMSC would do for data_coding value
func decodeDataCoding(b []byte, dc uint8) (Result, error) {
	s, err := coding.ByDataCoding(dc)
	if err != nil {
		return Result{}, err
	}
	text, err := coding.Decode(b, dc)
	return Result{Scheme: s, Text: text, Err: err}, err
}
