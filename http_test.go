package smpplink

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/franela/goblin"
	smppconst "github.com/smpptool/smpplink/const"
)

func TestHTTPFunctions(t *testing.T) {
	g := goblin.Goblin(t)

	g.Describe("HTTP Encode tests", func() {
		g.It("Encode simple message", func() {
			expected := `{"source":{"TON":5,"NPI":0,"Addr":"TestMSG"},"dest":{"TON":1,"NPI":1,"Addr":"79037011111"},"data_coding":0,"encoding":"gsm","text":"MSG Content","hex":"4d534720436f6e74656e74"}`

			m := Message{
				Source:     SMPPAddress{TON: 5, NPI: 0, Addr: "TestMSG"},
				Dest:       SMPPAddress{TON: 1, NPI: 1, Addr: "79037011111"},
				Body:       []byte("MSG Content"),
				DataCoding: 0,
			}

			res, err := json.Marshal(NewMessageView(m))
			g.Assert(err).Equal(nil)
			g.Assert(string(res)).Equal(expected)
		})

		g.It("Encode message with TLV's and UCS2 text", func() {
			m := Message{
				Body:       []byte{0x04, 0x1f, 0x04, 0x40, 0x04, 0x38},
				DataCoding: 0x08,
				TLV:        TLVList{{Tag: 0x25, Value: []byte("\x00\x01\x02\x03")}},
			}
			v := NewMessageView(m)
			g.Assert(v.Text).Equal("При")
			g.Assert(v.Encoding).Equal("ucs2")
			g.Assert(v.TLV).Equal([]TLVView{{Tag: "0x0025", Value: "00010203"}})
		})

		g.It("Unknown data_coding keeps hex only", func() {
			v := NewMessageView(Message{Body: []byte{0xde, 0xad}, DataCoding: 0x55})
			g.Assert(v.Text).Equal("")
			g.Assert(v.TextError == "").IsFalse()
			g.Assert(v.Hex).Equal("dead")
		})

		g.It("Encode delivery report", func() {
			done := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
			r := DeliveryReport{
				MessageID:    "abc123",
				Status:       "DELIVRD",
				Err:          "000",
				DoneDate:     done,
				MessageState: smppconst.MSG_STATE_DELIVERED,
				Message:      &Message{MessageID: "abc123", Body: []byte("Hello")},
			}
			v := NewReportView(r)
			g.Assert(v.Final).IsTrue()
			g.Assert(v.SubmitDate == nil).IsTrue()
			g.Assert(*v.DoneDate).Equal(done)
			g.Assert(v.Message.Text).Equal("Hello")
		})
	})

	g.Describe("HTTP Decode tests", func() {
		g.It("Submit request with defaults", func() {
			r, err := ParseSubmitRequest([]byte(`{"dest":{"TON":1,"NPI":1,"Addr":"46701234567"},"text":"Hello"}`))
			g.Assert(err).Equal(nil)

			m, err := r.Message()
			g.Assert(err).Equal(nil)
			g.Assert(m.Dest.Addr).Equal("46701234567")
			g.Assert(m.DataCoding).Equal(uint8(0))
			g.Assert(m.Body).Equal([]byte("Hello"))
			g.Assert(m.RegisteredDelivery).Equal(uint8(smppconst.REG_DELIVERY_ALWAYS))
		})

		g.It("Submit request with explicit encoding", func() {
			r, err := ParseSubmitRequest([]byte(`{"dest":{"Addr":"1"},"text":"Hi","encoding":"ucs2","registered_delivery":0}`))
			g.Assert(err).Equal(nil)

			m, err := r.Message()
			g.Assert(err).Equal(nil)
			g.Assert(m.DataCoding).Equal(uint8(0x08))
			g.Assert(m.Body).Equal([]byte{0x00, 0x48, 0x00, 0x69})
			g.Assert(m.RegisteredDelivery).Equal(uint8(0))
		})

		g.It("Broken requests", func() {
			_, err := ParseSubmitRequest([]byte(`{"dest":`))
			g.Assert(err == nil).IsFalse()

			_, err = ParseSubmitRequest([]byte(`{"text":"no destination"}`))
			g.Assert(err == nil).IsFalse()

			r, _ := ParseSubmitRequest([]byte(`{"dest":{"Addr":"1"},"text":"Hi","encoding":"koi8"}`))
			_, err = r.Message()
			g.Assert(err == nil).IsFalse()
		})
	})
}
