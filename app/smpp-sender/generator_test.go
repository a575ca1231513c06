package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smpptool/smpplink"
)

func TestParseTLV(t *testing.T) {
	static, dynamic, err := parseTLV([]string{
		`0x1400;string;"abc"`,
		`5122; hex ;"0a0B"`,
		`0x1401;dynamic;"ts-{timestamp}"`,
	})
	require.NoError(t, err)
	assert.Equal(t, smpplink.TLVList{
		{Tag: 0x1400, Value: []byte("abc")},
		{Tag: 5122, Value: []byte{0x0a, 0x0b}},
	}, static)
	assert.Equal(t, []TLVDynamic{{ID: 0x1401, Template: "ts-{timestamp}"}}, dynamic)
}

func TestParseTLVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{"params", `0x1400;string`, "should be 3 params"},
		{"quotes", `0x1400;string;abc`, "take value into quotes"},
		{"hex key", `0xZZ;string;"a"`, "HEX key"},
		{"dec key", `70000;string;"a"`, "DEC key"},
		{"hex value", `0x1400;hex;"zz"`, "HEX value"},
		{"type", `0x1400;int;"1"`, "unsupported value type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseTLV([]string{tt.in})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestGenerator(t *testing.T) {
	tmpl := smpplink.Message{
		Dest: smpplink.SMPPAddress{Addr: "4670###"},
		Body: []byte("x"),
		TLV:  smpplink.TLVList{{Tag: 0x1400, Value: []byte("abc")}},
	}
	g := NewGenerator(tmpl, true, []TLVDynamic{{ID: 0x1401, Template: "{timestamp}"}})
	now := time.Unix(1700000000, 0)

	a := g.Next(now)
	assert.Regexp(t, `^4670[0-9]{3}$`, a.Dest.Addr)
	v, ok := a.TLV.Get(0x1401)
	require.True(t, ok)
	assert.Equal(t, "1700000000", string(v))

	// template itself is untouched
	assert.Equal(t, "4670###", g.Template.Dest.Addr)
	assert.Len(t, g.Template.TLV, 1)

	plain := NewGenerator(smpplink.Message{Dest: smpplink.SMPPAddress{Addr: "1#"}}, false, nil)
	assert.Equal(t, "1#", plain.Next(now).Dest.Addr)
}
