package smpplink

import (
	"bytes"
	"io"
	"testing"

	"github.com/franela/goblin"
	"github.com/pkg/errors"
	smppconst "github.com/smpptool/smpplink/const"
)

func TestEncodeEnquireLink(t *testing.T) {
	g := goblin.Goblin(t)

	g.Describe("General function tests", func() {
		g.It("ReadCString - correct", func() {
			expected := "This is string"
			input := []byte(expected)
			input = append(input, []byte{0, 0x12, 0x25, 0x16}...)
			res, l, err := ReadCString(input, 20, "TestVar")
			g.Assert(res).Equal(expected)
			g.Assert(err).Equal(nil)
			g.Assert(l).Equal(len(expected) + 1)
		})

		g.It("ReadCString - truncate", func() {
			expected := "This is string"
			truncated := "This is"
			input := []byte(expected)
			input = append(input, []byte{0, 0x12, 0x25, 0x16}...)
			res, l, err := ReadCString(input, len(truncated), "TestVar")
			g.Assert(res).Equal(truncated)
			g.Assert(l).Equal(len(truncated))
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("ReadCString - empty", func() {
			input := []byte{}
			res, l, err := ReadCString(input, 20, "TestVar")
			g.Assert(res).Equal("")
			g.Assert(l).Equal(0)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("DecodeHDR - short packet", func() {
			input := []byte{0x00, 0x00, 0x00, 0x00}
			p := &SMPPPacket{}
			err := p.DecodeHDR(input)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("DecodeHDR - HDR Len is too large", func() {
			input := []byte{0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
			p := &SMPPPacket{}
			err := p.DecodeHDR(input)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
			g.Assert(err.Error()).Equal("packet body is too large (1048576, allowed only 65536 bytes): malformed PDU")
		})

		g.It("DecodeHDR - HDR Len is too short", func() {
			input := []byte{0x00, 0x00, 0x00, 0x0F, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
			p := &SMPPPacket{}
			err := p.DecodeHDR(input)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
			g.Assert(err.Error()).Equal("packet body is too short (15): malformed PDU")
		})

		g.It("DecodeHDR - Decode test", func() {
			input := []byte{
				0x00, 0x00, 0x00, 0x1A, // Length
				0x80, 0x00, 0x00, 0x02, // Command ID
				0xfe, 0xdc, 0xba, 0x98, // Status
				0x12, 0x34, 0x56, 0x78, // Sequence
				0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x38, 0x37, 0x36, 0x00, // SystemID
			}

			p := &SMPPPacket{}
			err := p.DecodeHDR(input)
			g.Assert(err == nil).IsTrue()
			g.Assert(p.Hdr.Len).Equal(uint32(0x1a))
			g.Assert(p.Hdr.Seq).Equal(uint32(0x12345678))
			g.Assert(p.Hdr.Status).Equal(uint32(0xfedcba98))
			g.Assert(p.Hdr.ID).Equal(uint32(0x80000002))
		})

		g.It("DecodePacket - length mismatch", func() {
			input := []byte{
				0x00, 0x00, 0x00, 0x14,
				0x00, 0x00, 0x00, 0x15,
				0x00, 0x00, 0x00, 0x00,
				0x00, 0x00, 0x00, 0x01,
				0x00, 0x00,
			}
			_, err := DecodePacket(input)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("ReadPacket - stream with two frames", func() {
			var buf bytes.Buffer
			buf.Write(EncodeEnquireLink(7).Bytes())
			buf.Write(EncodeSubmitSmResp(8, 0, "ab").Bytes())

			p, err := ReadPacket(&buf)
			g.Assert(err == nil).IsTrue()
			g.Assert(p.Hdr.ID).Equal(uint32(smppconst.CMD_ENQUIRE_LINK))
			g.Assert(p.Hdr.Seq).Equal(uint32(7))

			p, err = ReadPacket(&buf)
			g.Assert(err == nil).IsTrue()
			g.Assert(p.Hdr.Len).Equal(uint32(19))
			g.Assert(p.Body).Equal([]byte("ab\x00"))

			_, err = ReadPacket(&buf)
			g.Assert(err).Equal(io.EOF)
		})

		g.It("ReadPacket - truncated body", func() {
			b := EncodeSubmitSmResp(8, 0, "abcdef").Bytes()
			_, err := ReadPacket(bytes.NewReader(b[:len(b)-2]))
			g.Assert(err).Equal(io.ErrUnexpectedEOF)
		})
	})

	g.Describe("Test of packet generation functions", func() {
		g.It("[ENQUIRE_LINK] Encode RAW packet", func() {
			expected := []byte{
				0x00, 0x00, 0x00, 0x10,
				0x00, 0x00, 0x00, 0x15,
				0x00, 0x00, 0x00, 0x00,
				0x12, 0x34, 0x56, 0x78,
			}
			g.Assert(EncodeEnquireLink(0x12345678).Bytes()).Equal(expected)
		})

		g.It("[ENQUIRE_LINK_RESP] Encode RAW packet", func() {
			expected := []byte{
				0x00, 0x00, 0x00, 0x10,
				0x80, 0x00, 0x00, 0x15,
				0x00, 0x00, 0x00, 0x00,
				0x12, 0x34, 0x56, 0x78,
			}
			g.Assert(EncodeEnquireLinkResp(0x12345678).Bytes()).Equal(expected)
		})

		g.It("[BIND_RESP] Encode RAW packet", func() {
			systemID := "ABCDEF876"
			expected := []byte{
				0x00, 0x00, 0x00, 0x1A, // Length
				0x80, 0x00, 0x00, 0x02, // Command ID
				0xfe, 0xdc, 0xba, 0x98, // Status
				0x12, 0x34, 0x56, 0x78, // Sequence
				0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x38, 0x37, 0x36, 0x00, // SystemID
			}
			res, err := EncodeBindResp(smppconst.CMD_BIND_TRANSMITTER, 0x12345678, 0xFEDCBA98, systemID, nil)
			g.Assert(err == nil).IsTrue()
			g.Assert(res.Bytes()).Equal(expected)
		})

		g.It("[BIND_RESP] Decode RAW packet", func() {
			systemID := "ABCDEF876"
			input := []byte{
				0x00, 0x00, 0x00, 0x1F, // Length
				0x80, 0x00, 0x00, 0x02, // Command ID
				0xfe, 0xdc, 0xba, 0x98, // Status
				0x12, 0x34, 0x56, 0x78, // Sequence
				0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x38, 0x37, 0x36, 0x00, // SystemID
				0x02, 0x10, 0x00, 0x01, 0x34, // sc_interface_version
			}
			p, rErr := DecodePacket(input)
			g.Assert(rErr == nil).IsTrue()
			g.Assert(p.Hdr.Status).Equal(uint32(0xfedcba98))

			r, rErr := DecodeBindResp(p)
			g.Assert(rErr == nil).IsTrue()
			g.Assert(r.SystemID).Equal(systemID)
			v, ok := r.TLV.Get(smppconst.TLV_SC_INTERFACE_VERSION)
			g.Assert(ok).IsTrue()
			g.Assert(v).Equal([]byte{0x34})
		})

		g.It("[BIND_RESP] Rejected bind without body", func() {
			p := SMPPPacket{Hdr: SMPPHeader{ID: smppconst.CMD_BIND_TRANSCEIVER_RESP, Status: smppconst.ESME_RINVPASWD}}
			r, err := DecodeBindResp(p)
			g.Assert(err == nil).IsTrue()
			g.Assert(r.SystemID).Equal("")
		})

		g.It("[SUBMIT_SM_RESP] Encode packet", func() {
			expected := SMPPPacket{
				Hdr: SMPPHeader{
					ID:     0x80000004,
					Status: 0x12345678,
					Seq:    0xabcdef01,
				},
				Body: []byte("MsgIDInfo\x00"),
			}
			rP := EncodeSubmitSmResp(0xabcdef01, 0x12345678, "MsgIDInfo")
			g.Assert(expected).Equal(rP)

			r, err := DecodeSubmitSmResp(rP)
			g.Assert(err == nil).IsTrue()
			g.Assert(r.MessageID).Equal("MsgIDInfo")
		})

		g.It("[SUBMIT_SM_RESP] Wire bytes decode to the same response", func() {
			for _, id := range []string{"", "0", "5f3a9c10-77", "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"} {
				rP := EncodeSubmitSmResp(7, smppconst.ESME_ROK, id)
				p, err := DecodePacket(rP.Bytes())
				g.Assert(err == nil).IsTrue()
				g.Assert(p.Hdr.ID).Equal(uint32(smppconst.CMD_SUBMIT_SM_RESP))
				g.Assert(p.Hdr.Seq).Equal(uint32(7))

				r, err := DecodeSubmitSmResp(p)
				g.Assert(err == nil).IsTrue()
				g.Assert(r).Equal(SMPPSubmitResp{MessageID: id})
			}
		})

		g.It("[SUBMIT_SM_RESP] Trailing garbage", func() {
			p := EncodeSubmitSmResp(1, 0, "abc")
			p.Body = append(p.Body, 0x01)
			_, err := DecodeSubmitSmResp(p)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("[DELIVER_SM_RESP] Encode packet", func() {
			expected := SMPPPacket{
				Hdr: SMPPHeader{
					ID:     0x80000005,
					Status: 0x12345678,
					Seq:    0xabcdef01,
				},
				Body: []byte("\x00"),
			}
			rP := EncodeDeliverSmResp(0xabcdef01, 0x12345678)
			g.Assert(expected).Equal(rP)
			g.Assert(DecodeDeliverSmResp(rP) == nil).IsTrue()
		})

		g.It("[GENERIC_NACK] Encode packet", func() {
			expected := SMPPPacket{
				Hdr: SMPPHeader{
					Len:    16,
					ID:     0x80000000,
					Status: 0x12345678,
					Seq:    0xabcdef01,
				},
			}
			rP := EncodeGenericNack(0xabcdef01, 0x12345678)
			g.Assert(expected).Equal(rP)
			g.Assert(DecodeEmpty(rP) == nil).IsTrue()
		})

		g.It("[UNBIND] Body is not allowed", func() {
			p := EncodeUnbind(3)
			p.Body = []byte{0}
			g.Assert(errors.Is(DecodeEmpty(p), ErrMalformedPDU)).IsTrue()
		})
	})

	g.Describe("BIND: DecodeBind() function test", func() {
		g.It("Command ID validation", func() {
			p := SMPPPacket{
				Hdr: SMPPHeader{
					ID: 758456697,
				},
			}
			_, err := DecodeBind(p)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
			g.Assert(err.Error()).Equal("unsupported bind command ID [758456697]: malformed PDU")

			_, err = DecodeSubmitDeliverSm(SMPPPacket{Hdr: SMPPHeader{ID: smppconst.CMD_ENQUIRE_LINK}})
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("Packet decode", func() {
			p := SMPPPacket{
				Hdr: SMPPHeader{
					ID: 0x00000001,
				},
				Body: []byte("SystemID0987654\x00password\x00system_type\x00\x34\x01\x02ARDFC\x00"),
			}
			b, rErr := DecodeBind(p)
			g.Assert(rErr).Equal(nil)
			g.Assert(b.ConnMode).Equal(CSMPPRX)
			g.Assert(b.SystemID).Equal("SystemID0987654")
			g.Assert(b.Password).Equal("password")
			g.Assert(b.SystemType).Equal("system_type")
			g.Assert(b.IVersion).Equal(uint(0x34))
			g.Assert(b.AddrTON).Equal(uint(1))
			g.Assert(b.AddrNPI).Equal(uint(2))
			g.Assert(b.AddrRange).Equal("ARDFC")
		})

		g.It("Truncated packet", func() {
			p := SMPPPacket{
				Hdr:  SMPPHeader{ID: 0x00000002},
				Body: []byte("SystemID\x00password\x00\x00\x34"),
			}
			_, err := DecodeBind(p)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})
	})

	g.Describe("BIND: EncodeBind() function test", func() {
		g.It("Command ID validation", func() {
			_, rErr := EncodeBind(99, SMPPBind{})
			g.Assert(rErr.Error()).Equal("invalid connection mode")
		})

		g.It("Field length validation", func() {
			_, rErr := EncodeBind(CSMPPTX, SMPPBind{SystemID: "user", Password: "TooLongPassword"})
			g.Assert(rErr.Error()).Equal("invalid length of [password]: 15, maxLen = 8")
		})

		g.It("Packet encode", func() {
			input := SMPPBind{
				ConnMode:   0,
				SystemID:   "SystemID",
				Password:   "Password",
				SystemType: "SystemType",
				IVersion:   0x34,
				AddrTON:    0x42,
				AddrNPI:    0x16,
				AddrRange:  "ThisIsAddressRange",
			}
			expected := []byte("SystemID\x00Password\x00SystemType\x00\x34\x42\x16ThisIsAddressRange\x00")
			rP, rErr := EncodeBind(CSMPPTX, input)
			g.Assert(rErr).Equal(nil)
			g.Assert(rP.Hdr.ID).Equal(uint32(2))
			g.Assert(rP.Body).Equal(expected)

			b, rErr := DecodeBind(rP)
			g.Assert(rErr).Equal(nil)
			g.Assert(b.AddrRange).Equal("ThisIsAddressRange")
		})

		g.It("Encoded packet decodes to the same BIND", func() {
			for _, m := range []ConnSMPPMode{CSMPPTX, CSMPPRX, CSMPPTRX} {
				input := SMPPBind{
					ConnMode:   m,
					SystemID:   "smppclient1",
					Password:   "pwd",
					SystemType: "VMA",
					IVersion:   smppconst.SMPP_INTERFACE_VERSION,
					AddrTON:    1,
					AddrNPI:    1,
					AddrRange:  "^7903",
				}
				rP, rErr := EncodeBind(m, input)
				g.Assert(rErr).Equal(nil)
				rP.Hdr.Seq = 42

				p, rErr := DecodePacket(rP.Bytes())
				g.Assert(rErr).Equal(nil)
				g.Assert(p.Hdr.ID).Equal(rP.Hdr.ID)
				g.Assert(p.Hdr.Seq).Equal(uint32(42))

				b, rErr := DecodeBind(p)
				g.Assert(rErr).Equal(nil)
				g.Assert(b).Equal(input)
			}
		})
	})

	g.Describe("SUBMIT_SM/DELIVER_SM: EncodeSubmitDeliverSm() function test", func() {
		g.It("Input data validation", func() {
			input := SMPPSubmit{
				ServiceType: "ThisIsLongServiceType",
			}
			_, eRrr := EncodeSubmitSm(input)
			g.Assert(eRrr.Error()).Equal("invalid length of [service_type]: 21, maxLen = 5")

			input = SMPPSubmit{
				Source: SMPPAddress{
					Addr: "AddressIsTooLong789012",
				},
			}
			_, eRrr = EncodeSubmitSm(input)
			g.Assert(eRrr.Error()).Equal("invalid length of [source_addr]: 22, maxLen = 20")

			input = SMPPSubmit{
				Source: SMPPAddress{
					Addr: "Addr",
				},
			}
			_, eRrr = EncodeSubmitDeliverSm(smppconst.CMD_BIND_TRANSCEIVER, input)
			g.Assert(eRrr.Error()).Equal("invalid CommandID: 9")

			input = SMPPSubmit{ShortMessage: bytes.Repeat([]byte("x"), 255)}
			_, eRrr = EncodeSubmitSm(input)
			g.Assert(eRrr.Error()).Equal("invalid length of [short_message]: 255, maxLen = 254")

			input = SMPPSubmit{ShortMessage: []byte("x")}
			input.TLV.Set(smppconst.TLV_MESSAGE_PAYLOAD, []byte("y"))
			_, eRrr = EncodeSubmitSm(input)
			g.Assert(eRrr == nil).IsFalse()
		})

		g.It("Packet encode", func() {
			input := SMPPSubmit{
				ServiceType: "VDX",
				Source: SMPPAddress{
					5,
					2,
					"InfoAddrSt",
				},
				Dest: SMPPAddress{
					1,
					0,
					"79031234567",
				},
				ESMClass:              0x23,
				ProtocolID:            0x7d,
				PriorityFlag:          0xde,
				ScheduledDeliveryTime: "1234567890123456",
				ValidityPeriod:        "6543210987654321",
				RegisteredDelivery:    0x55,
				ReplaceIfPresent:      0x66,
				DataCoding:            0x77,
				SmDefaultMsgID:        0x88,
				ShortMessage:          []byte("Test Message For SubmitSM coding"),
			}
			expected := []byte("VDX\x00\x05\x02InfoAddrSt\x00\x01\x0079031234567\x00\x23\x7d\xde1234567890123456\x006543210987654321\x00\x55\x66\x77\x88\x20Test Message For SubmitSM coding")
			rP, eRrr := EncodeSubmitDeliverSm(smppconst.CMD_SUBMIT_SM, input)
			g.Assert(eRrr).Equal(nil)
			g.Assert(rP.Hdr.ID).Equal(uint32(0x04))
			g.Assert(rP.Body).Equal(expected)
		})

		g.It("Packet decode keeps unknown TLV's in order", func() {
			input := SMPPSubmit{
				Source:       SMPPAddress{TON: 1, NPI: 1, Addr: "46701234567"},
				Dest:         SMPPAddress{TON: 5, NPI: 0, Addr: "Info"},
				ESMClass:     0x04,
				DataCoding:   0x08,
				ShortMessage: []byte{0x00, 0x48, 0x00, 0x69},
				TLV: TLVList{
					{Tag: 0x1401, Value: []byte{0xAA, 0xBB}},
					{Tag: smppconst.TLV_RECEIPTED_MESSAGE_ID, Value: []byte("abc123\x00")},
					{Tag: 0x1400, Value: []byte{}},
				},
			}
			rP, err := EncodeDeliverSm(input)
			g.Assert(err).Equal(nil)

			p, err := DecodePacket(rP.Bytes())
			g.Assert(err).Equal(nil)

			ss, err := DecodeSubmitDeliverSm(p)
			g.Assert(err).Equal(nil)
			g.Assert(ss.Source).Equal(input.Source)
			g.Assert(ss.Dest).Equal(input.Dest)
			g.Assert(ss.ESMClass).Equal(uint8(0x04))
			g.Assert(ss.DataCoding).Equal(uint8(0x08))
			g.Assert(ss.ShortMessage).Equal(input.ShortMessage)
			g.Assert(len(ss.TLV)).Equal(3)
			g.Assert(ss.TLV[0].Tag).Equal(TLVCode(0x1401))
			g.Assert(ss.TLV[1].Tag).Equal(TLVCode(smppconst.TLV_RECEIPTED_MESSAGE_ID))
			g.Assert(ss.TLV[2].Tag).Equal(TLVCode(0x1400))
			id, _ := ss.TLV.GetString(smppconst.TLV_RECEIPTED_MESSAGE_ID)
			g.Assert(id).Equal("abc123")
		})

		g.It("Payload is taken from message_payload", func() {
			long := bytes.Repeat([]byte("z"), 300)
			input := SMPPSubmit{Dest: SMPPAddress{Addr: "1"}}
			input.TLV.Set(smppconst.TLV_MESSAGE_PAYLOAD, long)

			rP, err := EncodeSubmitSm(input)
			g.Assert(err).Equal(nil)
			ss, err := DecodeSubmitDeliverSm(rP)
			g.Assert(err).Equal(nil)
			g.Assert(len(ss.ShortMessage)).Equal(0)
			g.Assert(ss.Payload()).Equal(long)
		})

		g.It("Truncated TLV", func() {
			rP, _ := EncodeSubmitSm(SMPPSubmit{ShortMessage: []byte("hi")})
			rP.Body = append(rP.Body, 0x04, 0x24, 0x00, 0x10, 0x01)
			_, err := DecodeSubmitDeliverSm(rP)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()

			rP, _ = EncodeSubmitSm(SMPPSubmit{ShortMessage: []byte("hi")})
			rP.Body = append(rP.Body, 0x04)
			_, err = DecodeSubmitDeliverSm(rP)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})

		g.It("sm_length beyond body", func() {
			rP, _ := EncodeSubmitSm(SMPPSubmit{ShortMessage: []byte("hello")})
			rP.Body = rP.Body[:len(rP.Body)-2]
			_, err := DecodeSubmitDeliverSm(rP)
			g.Assert(errors.Is(err, ErrMalformedPDU)).IsTrue()
		})
	})
}
