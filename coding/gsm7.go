package coding

import (
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const gsmEscape = 0x1B

// GSM 03.38 default alphabet, index is septet value. 0x1B is escape to extension table.
const gsmDefaultAlphabet = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

var gsmExtension = map[byte]rune{
	0x0A: '\f',
	0x14: '^',
	0x28: '{',
	0x29: '}',
	0x2F: '\\',
	0x3C: '[',
	0x3D: '~',
	0x3E: ']',
	0x40: '|',
	0x65: '€',
}

var (
	gsmDecodeTable [128]rune
	gsmEncodeTable = map[rune]byte{}
	gsmEncodeExt   = map[rune]byte{}
)

func init() {
	i := 0
	for _, r := range gsmDefaultAlphabet {
		gsmDecodeTable[i] = r
		if i != gsmEscape {
			gsmEncodeTable[r] = byte(i)
		}
		i++
	}
	for k, v := range gsmExtension {
		gsmEncodeExt[v] = k
	}
}

var (
	ErrNotGSM7       = errors.New("character is not in GSM 7-bit alphabet")
	ErrInvalidSeptet = errors.New("invalid GSM 7-bit septet")
)

// GSM7 is GSM 03.38 default alphabet with extension table, unpacked (one septet per octet)
var GSM7 encoding.Encoding = gsm7Encoding{}

type gsm7Encoding struct{}

func (gsm7Encoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &gsm7Decoder{}}
}

func (gsm7Encoding) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &gsm7Encoder{}}
}

func (gsm7Encoding) String() string { return "GSM 03.38" }

type gsm7Encoder struct{ transform.NopResetter }

func (gsm7Encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := rune(src[nSrc]), 1
		if r >= utf8.RuneSelf {
			r, size = utf8.DecodeRune(src[nSrc:])
			if r == utf8.RuneError && size == 1 {
				if !atEOF && !utf8.FullRune(src[nSrc:]) {
					return nDst, nSrc, transform.ErrShortSrc
				}
				return nDst, nSrc, errors.Wrap(ErrNotGSM7, "invalid UTF-8")
			}
		}

		if b, ok := gsmEncodeTable[r]; ok {
			if nDst+1 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = b
			nDst++
		} else if b, ok := gsmEncodeExt[r]; ok {
			if nDst+2 > len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = gsmEscape
			dst[nDst+1] = b
			nDst += 2
		} else {
			return nDst, nSrc, errors.Wrapf(ErrNotGSM7, "%q", r)
		}
		nSrc += size
	}
	return nDst, nSrc, nil
}

type gsm7Decoder struct{ transform.NopResetter }

func (gsm7Decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		b := src[nSrc]
		if b > 0x7F {
			return nDst, nSrc, errors.Wrapf(ErrInvalidSeptet, "0x%02X", b)
		}
		size := 1
		r := gsmDecodeTable[b]
		if b == gsmEscape {
			if nSrc+1 >= len(src) {
				if !atEOF {
					return nDst, nSrc, transform.ErrShortSrc
				}
				// Dangling escape
				nSrc++
				continue
			}
			next := src[nSrc+1] & 0x7F
			if x, ok := gsmExtension[next]; ok {
				r = x
			} else {
				// Unknown extension, show base character
				r = gsmDecodeTable[next]
			}
			size = 2
		}

		if nDst+utf8.RuneLen(r) > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		nDst += utf8.EncodeRune(dst[nDst:], r)
		nSrc += size
	}
	return nDst, nSrc, nil
}

// IsGSM7 reports if every character of text is in default alphabet or extension table
func IsGSM7(text string) bool {
	for _, r := range text {
		if _, ok := gsmEncodeTable[r]; ok {
			continue
		}
		if _, ok := gsmEncodeExt[r]; ok {
			continue
		}
		return false
	}
	return true
}

// Pack7 packs septets into octets, LSB first (GSM 03.38 6.1.2.1.1)
func Pack7(septets []byte) []byte {
	out := make([]byte, 0, (len(septets)*7+7)/8)
	var acc uint32
	var bits uint
	for _, s := range septets {
		acc |= uint32(s&0x7F) << bits
		bits += 7
		for bits >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			bits -= 8
		}
	}
	if bits > 0 {
		out = append(out, byte(acc))
	}
	return out
}

// Unpack7 is the inverse of Pack7. n is the number of septets, n <= 0 means "all".
func Unpack7(octets []byte, n int) []byte {
	out := make([]byte, 0, len(octets)*8/7)
	var acc uint32
	var bits uint
	for _, o := range octets {
		acc |= uint32(o) << bits
		bits += 8
		for bits >= 7 {
			out = append(out, byte(acc&0x7F))
			acc >>= 7
			bits -= 7
		}
	}
	if n > 0 {
		if n < len(out) {
			out = out[:n]
		}
		return out
	}
	// 7 octets carry 8 septets, the last one is padding when it is zero
	if len(octets)%7 == 0 && len(out) > 0 && out[len(out)-1] == 0 {
		out = out[:len(out)-1]
	}
	return out
}
