package smpplink

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type TLVCode uint16

// TLV is a single optional parameter. Unknown tags are kept as is.
type TLV struct {
	Tag   TLVCode
	Value []byte
}

// TLVList keeps optional parameters in wire order
type TLVList []TLV

func (l TLVList) Get(tag TLVCode) ([]byte, bool) {
	for _, t := range l {
		if t.Tag == tag {
			return t.Value, true
		}
	}
	return nil, false
}

func (l TLVList) Has(tag TLVCode) bool {
	_, ok := l.Get(tag)
	return ok
}

// GetString returns value of C-Octet String TLV without trailing 0x00
func (l TLVList) GetString(tag TLVCode) (string, bool) {
	v, ok := l.Get(tag)
	if !ok {
		return "", false
	}
	for i, b := range v {
		if b == 0 {
			return string(v[:i]), true
		}
	}
	return string(v), true
}

// Set replaces value of the first TLV with the same tag or appends a new one
func (l *TLVList) Set(tag TLVCode, value []byte) {
	for i := range *l {
		if (*l)[i].Tag == tag {
			(*l)[i].Value = value
			return
		}
	}
	*l = append(*l, TLV{Tag: tag, Value: value})
}

func (l *TLVList) SetString(tag TLVCode, value string) {
	b := make([]byte, len(value)+1)
	copy(b, value)
	l.Set(tag, b)
}

func (l *TLVList) Delete(tag TLVCode) {
	out := (*l)[:0]
	for _, t := range *l {
		if t.Tag != tag {
			out = append(out, t)
		}
	}
	*l = out
}

func (l TLVList) encodedLen() (n int) {
	for _, t := range l {
		n += 4 + len(t.Value)
	}
	return
}

func (l TLVList) appendTo(buf []byte) ([]byte, error) {
	for _, t := range l {
		if len(t.Value) > 0xFFFF {
			return buf, fmt.Errorf("TLV [0x%04X] value is too long: %d", uint16(t.Tag), len(t.Value))
		}
		var h [4]byte
		binary.BigEndian.PutUint16(h[0:], uint16(t.Tag))
		binary.BigEndian.PutUint16(h[2:], uint16(len(t.Value)))
		buf = append(buf, h[:]...)
		buf = append(buf, t.Value...)
	}
	return buf, nil
}

// DecodeTLV parses the optional parameter block. It must consume b completely.
func DecodeTLV(b []byte) (l TLVList, err error) {
	offset := 0
	for offset < len(b) {
		if offset+4 > len(b) {
			return nil, errors.Wrapf(ErrMalformedPDU, "truncated TLV header at offset %d", offset)
		}
		tag := TLVCode(binary.BigEndian.Uint16(b[offset:]))
		tl := int(binary.BigEndian.Uint16(b[offset+2:]))
		offset += 4
		if offset+tl > len(b) {
			return nil, errors.Wrapf(ErrMalformedPDU, "TLV [0x%04X] declares %d bytes, only %d left", uint16(tag), tl, len(b)-offset)
		}
		v := make([]byte, tl)
		copy(v, b[offset:offset+tl])
		l = append(l, TLV{Tag: tag, Value: v})
		offset += tl
	}
	return l, nil
}
