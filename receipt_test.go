package smpplink

import (
	"testing"
	"time"

	"github.com/franela/goblin"
	smppconst "github.com/smpptool/smpplink/const"
)

func TestReceipt(t *testing.T) {
	g := goblin.Goblin(t)

	g.Describe("Receipt text", func() {
		g.It("Parse full receipt", func() {
			r, ok := ParseReceipt("id:1234567890 sub:001 dlvrd:001 submit date:2405011030 done date:240501103115 stat:delivrd err:000 text:Hello world")
			g.Assert(ok).IsTrue()
			g.Assert(r.MessageID).Equal("1234567890")
			g.Assert(r.Sub).Equal("001")
			g.Assert(r.Dlvrd).Equal("001")
			g.Assert(r.Status).Equal("DELIVRD")
			g.Assert(r.Err).Equal("000")
			g.Assert(r.Text).Equal("Hello world")
			g.Assert(r.SubmitDate.Equal(time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC))).IsTrue()
			g.Assert(r.DoneDate.Equal(time.Date(2024, 5, 1, 10, 31, 15, 0, time.UTC))).IsTrue()
			g.Assert(r.IsFinal()).IsTrue()
		})

		g.It("Plain text is not a receipt", func() {
			_, ok := ParseReceipt("Hello, id: is not here")
			g.Assert(ok).IsFalse()
			g.Assert(LooksLikeReceipt("stat:DELIVRD id:1")).IsFalse()
		})

		g.It("Broken dates are left empty", func() {
			r, ok := ParseReceipt("id:7 submit date:24050 stat:ENROUTE")
			g.Assert(ok).IsTrue()
			g.Assert(r.SubmitDate.IsZero()).IsTrue()
			g.Assert(r.IsFinal()).IsFalse()
		})

		g.It("Format receipt", func() {
			r := DeliveryReport{
				MessageID:  "abc",
				Status:     "DELIVRD",
				SubmitDate: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
				DoneDate:   time.Date(2024, 5, 1, 10, 31, 0, 0, time.UTC),
				Text:       "Hello, this is a long text",
			}
			g.Assert(FormatReceipt(r)).Equal("id:abc sub:001 dlvrd:001 submit date:2405011030 done date:2405011031 stat:DELIVRD err:000 text:Hello, this is a lon")

			r.Status = "UNDELIV"
			r.Err = "011"
			p, ok := ParseReceipt(FormatReceipt(r))
			g.Assert(ok).IsTrue()
			g.Assert(p.Dlvrd).Equal("000")
			g.Assert(p.Err).Equal("011")
			g.Assert(p.Status).Equal("UNDELIV")
		})

		g.It("message_state names", func() {
			g.Assert(MessageStateName(smppconst.MSG_STATE_REJECTED)).Equal("REJECTD")
			g.Assert(MessageStateName(99)).Equal("UNKNOWN")
			g.Assert(MessageStateByName("delivrd")).Equal(uint8(smppconst.MSG_STATE_DELIVERED))
			g.Assert(MessageStateByName("nope")).Equal(uint8(0))
		})
	})

	g.Describe("Delivery report from DELIVER_SM", func() {
		g.It("TLV only report", func() {
			ss := &SMPPSubmit{
				Source:   SMPPAddress{Addr: "79037011111"},
				ESMClass: smppconst.ESM_MSGTYPE_DELIVERY_RECEIPT,
				TLV: TLVList{
					{Tag: smppconst.TLV_RECEIPTED_MESSAGE_ID, Value: []byte("ABC\x00")},
					{Tag: smppconst.TLV_MESSAGE_STATE, Value: []byte{smppconst.MSG_STATE_UNDELIVERABLE}},
					{Tag: smppconst.TLV_NETWORK_ERROR_CODE, Value: []byte{0x03, 0x00, 0x0B}},
				},
			}
			r := BuildDeliveryReport(ss)
			g.Assert(r.MessageID).Equal("ABC")
			g.Assert(r.Status).Equal("UNDELIV")
			g.Assert(r.MessageState).Equal(uint8(smppconst.MSG_STATE_UNDELIVERABLE))
			g.Assert(r.NetworkErrorCode).Equal([]byte{0x03, 0x00, 0x0B})
			g.Assert(r.Source.Addr).Equal("79037011111")
			g.Assert(r.IsFinal()).IsTrue()
		})

		g.It("TLV id overrides text, text stat is kept", func() {
			ss := &SMPPSubmit{
				ShortMessage: []byte("id:123 stat:ENROUTE err:000"),
				TLV: TLVList{
					{Tag: smppconst.TLV_RECEIPTED_MESSAGE_ID, Value: []byte("7B\x00")},
					{Tag: smppconst.TLV_MESSAGE_STATE, Value: []byte{smppconst.MSG_STATE_DELIVERED}},
				},
			}
			r := BuildDeliveryReport(ss)
			g.Assert(r.MessageID).Equal("7B")
			g.Assert(r.Status).Equal("ENROUTE")
			g.Assert(r.MessageState).Equal(uint8(smppconst.MSG_STATE_DELIVERED))
		})

		g.It("Empty report has UNKNOWN status", func() {
			r := BuildDeliveryReport(&SMPPSubmit{ESMClass: smppconst.ESM_MSGTYPE_DELIVERY_RECEIPT})
			g.Assert(r.Status).Equal("UNKNOWN")
			g.Assert(r.IsFinal()).IsFalse()
		})
	})
}
