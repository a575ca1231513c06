// Package coding converts SMS text to short_message octets and back, according to SMPP data_coding.
package coding

import (
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// SMPP data_coding values
const (
	DataCodingDefault = 0x00 // SMSC default alphabet, GSM 03.38
	DataCodingIA5     = 0x01
	DataCodingOctet   = 0x02 // 8-bit binary, text tools treat it as UTF-8
	DataCodingLatin1  = 0x03
	DataCodingBinary  = 0x04
	DataCodingUCS2    = 0x08
)

var (
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	ErrNotRepresentable    = errors.New("text is not representable in encoding")
)

// Scheme is a single text encoding, that could be announced in data_coding
type Scheme struct {
	Name        string
	DataCoding  uint8
	Description string

	// Length limits in characters (septets for GSM, octets for 8-bit, 16-bit units for UCS2)
	Single int
	Concat int

	unit  int
	codec encoding.Encoding
	valid func(b []byte) bool
}

var (
	GSM    = &Scheme{Name: "gsm", DataCoding: DataCodingDefault, Description: "GSM 7-bit default alphabet", Single: 160, Concat: 153, unit: 1, codec: GSM7}
	ASCII  = &Scheme{Name: "ascii", DataCoding: DataCodingIA5, Description: "ASCII", Single: 160, Concat: 153, unit: 1, valid: isASCII}
	UTF8   = &Scheme{Name: "utf8", DataCoding: DataCodingOctet, Description: "8-bit binary (UTF-8)", Single: 140, Concat: 134, unit: 1, valid: utf8.Valid}
	Latin1 = &Scheme{Name: "latin1", DataCoding: DataCodingLatin1, Description: "Latin-1 (ISO-8859-1)", Single: 140, Concat: 134, unit: 1, codec: charmap.ISO8859_1}
	Binary = &Scheme{Name: "binary", DataCoding: DataCodingBinary, Description: "8-bit binary", Single: 140, Concat: 134, unit: 1}
	UCS2   = &Scheme{Name: "ucs2", DataCoding: DataCodingUCS2, Description: "UCS2 (UTF-16BE)", Single: 70, Concat: 67, unit: 2, codec: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}
)

// Schemes lists text encodings in order of preference
var Schemes = []*Scheme{GSM, ASCII, UTF8, Latin1, UCS2, Binary}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// ByName finds scheme by its name (case insensitive)
func ByName(name string) (*Scheme, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Schemes {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupportedEncoding, "name %q", name)
}

// ByDataCoding finds scheme for data_coding value, including GSM 03.38 coding group 1111
func ByDataCoding(dc uint8) (*Scheme, error) {
	if dc&0xF0 == 0xF0 {
		// Data coding/message class: bit 2 selects 8-bit data
		if dc&0x04 != 0 {
			return Binary, nil
		}
		return GSM, nil
	}
	for _, s := range Schemes {
		if s.DataCoding == dc {
			return s, nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupportedEncoding, "data_coding 0x%02X", dc)
}

func (s *Scheme) String() string { return s.Name }

// Encode converts text into message octets
func (s *Scheme) Encode(text string) ([]byte, error) {
	if s.codec != nil {
		b, err := s.codec.NewEncoder().Bytes([]byte(text))
		if err != nil {
			return nil, errors.Wrapf(ErrNotRepresentable, "%s: %v", s.Name, err)
		}
		return b, nil
	}
	b := []byte(text)
	if s.valid != nil && !s.valid(b) {
		return nil, errors.Wrapf(ErrNotRepresentable, "%s", s.Name)
	}
	return b, nil
}

// Decode converts message octets into text
func (s *Scheme) Decode(b []byte) (string, error) {
	if s.codec != nil {
		if s.unit == 2 && len(b)%2 != 0 {
			return "", errors.Wrapf(ErrNotRepresentable, "%s: odd number of octets (%d)", s.Name, len(b))
		}
		out, err := s.codec.NewDecoder().Bytes(b)
		if err != nil {
			return "", errors.Wrapf(ErrNotRepresentable, "%s: %v", s.Name, err)
		}
		return string(out), nil
	}
	if s.valid != nil && !s.valid(b) {
		return "", errors.Wrapf(ErrNotRepresentable, "%s", s.Name)
	}
	return string(b), nil
}

// Units returns message length in characters, as counted by SMSC
func (s *Scheme) Units(b []byte) int {
	return len(b) / s.unit
}

// Parts returns number of SMS needed for the encoded message
func (s *Scheme) Parts(b []byte) int {
	n := s.Units(b)
	if n <= s.Single {
		return 1
	}
	return (n + s.Concat - 1) / s.Concat
}

// Encoded is message body together with matching data_coding
type Encoded struct {
	Scheme *Scheme
	Data   []byte
}

func (e Encoded) DataCoding() uint8 { return e.Scheme.DataCoding }

func (e Encoded) Parts() int { return e.Scheme.Parts(e.Data) }

// Encode picks the narrowest representation that round-trips: GSM 7-bit, or UCS2 otherwise
func Encode(text string) (Encoded, error) {
	if !utf8.ValidString(text) {
		return Encoded{}, errors.Wrap(ErrNotRepresentable, "text is not valid UTF-8")
	}
	if IsGSM7(text) {
		b, err := GSM.Encode(text)
		if err == nil {
			return Encoded{Scheme: GSM, Data: b}, nil
		}
	}
	b, err := UCS2.Encode(text)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Scheme: UCS2, Data: b}, nil
}

// EncodeAs encodes text with explicitly requested scheme, "" or "auto" means Encode
func EncodeAs(text string, name string) (Encoded, error) {
	if name == "" || strings.EqualFold(name, "auto") {
		return Encode(text)
	}
	s, err := ByName(name)
	if err != nil {
		return Encoded{}, err
	}
	b, err := s.Encode(text)
	if err != nil {
		return Encoded{}, err
	}
	return Encoded{Scheme: s, Data: b}, nil
}

// EncodeBinary wraps opaque data, data_coding is 8-bit binary
func EncodeBinary(data []byte) Encoded {
	return Encoded{Scheme: Binary, Data: data}
}

type decodeOptions struct {
	force    *Scheme
	fallback *Scheme
}

type DecodeOption func(*decodeOptions)

// Force ignores data_coding and decodes with s
func Force(s *Scheme) DecodeOption {
	return func(o *decodeOptions) { o.force = s }
}

// Fallback is used for unknown data_coding values instead of ErrUnsupportedEncoding
func Fallback(s *Scheme) DecodeOption {
	return func(o *decodeOptions) { o.fallback = s }
}

// Decode converts message body into text according to data_coding
func Decode(b []byte, dc uint8, opts ...DecodeOption) (string, error) {
	var o decodeOptions
	for _, f := range opts {
		f(&o)
	}

	s := o.force
	if s == nil {
		var err error
		if s, err = ByDataCoding(dc); err != nil {
			if o.fallback == nil {
				return "", err
			}
			s = o.fallback
		}
	}
	return s.Decode(b)
}
