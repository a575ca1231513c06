package smpplink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
	smppconst "github.com/smpptool/smpplink/const"
)

// ReadCString reads NULL terminated string, maxLen includes terminator
func ReadCString(b []byte, maxLen int, fieldName string) (data string, l int, err error) {
	if (maxLen < 1) || (maxLen > len(b)) {
		maxLen = len(b)
	}

	for l = 0; l < maxLen; l++ {
		if b[l] == 0 {
			data = string(b[0:l])
			// Skip trailing 0x00
			l++
			return
		}
	}

	// No terminator found, copy the least part of the line and raise an error
	data = string(b[0:maxLen])
	err = errors.Wrapf(ErrMalformedPDU, "no CString terminator for field [%s]", fieldName)
	return
}

func appendCString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	return append(buf, 0)
}

func (p *SMPPPacket) DecodeHDR(b []byte) error {
	if len(b) < HeaderLen {
		return errors.Wrapf(ErrMalformedPDU, "header is too short (%d, expecting 16 or more bytes)", len(b))
	}
	p.Hdr.Len = binary.BigEndian.Uint32(b[0:])
	p.Hdr.ID = binary.BigEndian.Uint32(b[4:])
	p.Hdr.Status = binary.BigEndian.Uint32(b[8:])
	p.Hdr.Seq = binary.BigEndian.Uint32(b[12:])

	if p.Hdr.Len > MaxSMPPPacketSize {
		return errors.Wrapf(ErrMalformedPDU, "packet body is too large (%d, allowed only %d bytes)", p.Hdr.Len, MaxSMPPPacketSize)
	}
	if p.Hdr.Len < HeaderLen {
		return errors.Wrapf(ErrMalformedPDU, "packet body is too short (%d)", p.Hdr.Len)
	}
	return nil
}

// Bytes encodes packet into wire format, command_length is calculated
func (p SMPPPacket) Bytes() []byte {
	buf := make([]byte, HeaderLen+len(p.Body))
	binary.BigEndian.PutUint32(buf, uint32(HeaderLen+len(p.Body)))
	binary.BigEndian.PutUint32(buf[4:], p.Hdr.ID)
	binary.BigEndian.PutUint32(buf[8:], p.Hdr.Status)
	binary.BigEndian.PutUint32(buf[12:], p.Hdr.Seq)
	copy(buf[HeaderLen:], p.Body)
	return buf
}

// DecodePacket decodes complete frame, declared length must match buffer size
func DecodePacket(b []byte) (p SMPPPacket, err error) {
	if err = p.DecodeHDR(b); err != nil {
		return SMPPPacket{}, err
	}
	if int(p.Hdr.Len) != len(b) {
		return SMPPPacket{}, errors.Wrapf(ErrMalformedPDU, "declared length %d, buffer contains %d bytes", p.Hdr.Len, len(b))
	}
	p.Body = make([]byte, len(b)-HeaderLen)
	copy(p.Body, b[HeaderLen:])
	return p, nil
}

// ReadPacket reads exactly one frame from the stream
func ReadPacket(r io.Reader) (p SMPPPacket, err error) {
	hdrBuf := make([]byte, HeaderLen)
	if _, err = io.ReadFull(r, hdrBuf); err != nil {
		return SMPPPacket{}, err
	}
	if err = p.DecodeHDR(hdrBuf); err != nil {
		return SMPPPacket{}, err
	}
	p.Body = make([]byte, p.Hdr.Len-HeaderLen)
	if len(p.Body) > 0 {
		if _, err = io.ReadFull(r, p.Body); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return SMPPPacket{}, err
		}
	}
	return p, nil
}

func headerOnly(id uint32, seq uint32, status uint32) SMPPPacket {
	return SMPPPacket{Hdr: SMPPHeader{Len: HeaderLen, ID: id, Status: status, Seq: seq}}
}

// Encode ENQUIRE_LINK
func EncodeEnquireLink(seq uint32) SMPPPacket {
	return headerOnly(smppconst.CMD_ENQUIRE_LINK, seq, 0)
}

// Encode ENQUIRE_LINK_RESP
func EncodeEnquireLinkResp(seq uint32) SMPPPacket {
	return headerOnly(smppconst.CMD_ENQUIRE_LINK_RESP, seq, 0)
}

// Encode UNBIND
func EncodeUnbind(seq uint32) SMPPPacket {
	return headerOnly(smppconst.CMD_UNBIND, seq, 0)
}

// Encode UNBIND_RESP
func EncodeUnbindResp(seq uint32, status uint32) SMPPPacket {
	return headerOnly(smppconst.CMD_UNBIND_RESP, seq, status)
}

// Generate GENERIC_NACK
func EncodeGenericNack(seq uint32, status uint32) SMPPPacket {
	return headerOnly(smppconst.CMD_GENERIC_NACK, seq, status)
}

// DecodeEmpty validates packets without body (ENQUIRE_LINK, UNBIND, their _RESP and GENERIC_NACK)
func DecodeEmpty(p SMPPPacket) error {
	if len(p.Body) != 0 {
		return errors.Wrapf(ErrMalformedPDU, "%s should not have body, got %d bytes", CmdName(p.Hdr.ID), len(p.Body))
	}
	return nil
}

// Encode BindResp
func EncodeBindResp(id uint32, seq uint32, status uint32, systemID string, tlv TLVList) (SMPPPacket, error) {
	switch id {
	case smppconst.CMD_BIND_RECEIVER, smppconst.CMD_BIND_TRANSMITTER, smppconst.CMD_BIND_TRANSCEIVER:
		id |= smppconst.CMD_RESP_MASK
	case smppconst.CMD_BIND_RECEIVER_RESP, smppconst.CMD_BIND_TRANSMITTER_RESP, smppconst.CMD_BIND_TRANSCEIVER_RESP:
	default:
		return SMPPPacket{}, fmt.Errorf("unsupported bind command ID [%d]", id)
	}
	if len(systemID) > 15 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [system_id]: %d, maxLen = 15", len(systemID))
	}

	body := make([]byte, 0, len(systemID)+1+tlv.encodedLen())
	body = appendCString(body, systemID)
	body, err := tlv.appendTo(body)
	if err != nil {
		return SMPPPacket{}, err
	}
	return SMPPPacket{Hdr: SMPPHeader{ID: id, Status: status, Seq: seq}, Body: body}, nil
}

// Decode BindResp
func DecodeBindResp(p SMPPPacket) (r SMPPBindResp, err error) {
	switch p.Hdr.ID {
	case smppconst.CMD_BIND_RECEIVER_RESP, smppconst.CMD_BIND_TRANSMITTER_RESP, smppconst.CMD_BIND_TRANSCEIVER_RESP:
	default:
		err = errors.Wrapf(ErrMalformedPDU, "unsupported bind_resp command ID [%d]", p.Hdr.ID)
		return
	}

	// SMSC may omit body for rejected bind
	if len(p.Body) == 0 {
		return
	}
	var l int
	if r.SystemID, l, err = ReadCString(p.Body, 16, "system_id"); err != nil {
		return
	}
	r.TLV, err = DecodeTLV(p.Body[l:])
	return
}

// Generate SubmitSM Resp packet
func EncodeSubmitSmResp(seq uint32, status uint32, msgID string) SMPPPacket {
	return SMPPPacket{
		Hdr: SMPPHeader{
			ID:     smppconst.CMD_SUBMIT_SM_RESP,
			Status: status,
			Seq:    seq,
		},
		Body: appendCString(make([]byte, 0, len(msgID)+1), msgID),
	}
}

// DecodeSubmitSmResp decodes message_id. Error responses may have no body at all.
func DecodeSubmitSmResp(p SMPPPacket) (r SMPPSubmitResp, err error) {
	if p.Hdr.ID != smppconst.CMD_SUBMIT_SM_RESP {
		err = errors.Wrapf(ErrMalformedPDU, "unexpected command ID [%d] for submit_sm_resp", p.Hdr.ID)
		return
	}
	if len(p.Body) == 0 {
		return
	}
	var l int
	if r.MessageID, l, err = ReadCString(p.Body, 65, "message_id"); err != nil {
		return
	}
	if l != len(p.Body) {
		err = errors.Wrapf(ErrMalformedPDU, "invalid packet body len [HDR: %d, Context: %d]", len(p.Body), l)
	}
	return
}

// Generate DeliverSM Resp packet
func EncodeDeliverSmResp(seq uint32, status uint32) SMPPPacket {
	return SMPPPacket{
		Hdr: SMPPHeader{
			ID:     smppconst.CMD_DELIVER_SM_RESP,
			Status: status,
			Seq:    seq,
		},
		Body: []byte{0},
	}
}

// DecodeDeliverSmResp validates body: message_id, which is always NULL
func DecodeDeliverSmResp(p SMPPPacket) error {
	if p.Hdr.ID != smppconst.CMD_DELIVER_SM_RESP {
		return errors.Wrapf(ErrMalformedPDU, "unexpected command ID [%d] for deliver_sm_resp", p.Hdr.ID)
	}
	if len(p.Body) == 0 {
		return nil
	}
	_, l, err := ReadCString(p.Body, 65, "message_id")
	if err != nil {
		return err
	}
	if l != len(p.Body) {
		return errors.Wrapf(ErrMalformedPDU, "invalid packet body len [HDR: %d, Context: %d]", len(p.Body), l)
	}
	return nil
}

func DecodeBind(p SMPPPacket) (b SMPPBind, err error) {
	// Validate correct command ID
	switch p.Hdr.ID {
	case smppconst.CMD_BIND_RECEIVER:
		b.ConnMode = CSMPPRX
	case smppconst.CMD_BIND_TRANSMITTER:
		b.ConnMode = CSMPPTX
	case smppconst.CMD_BIND_TRANSCEIVER:
		b.ConnMode = CSMPPTRX
	default:
		err = errors.Wrapf(ErrMalformedPDU, "unsupported bind command ID [%d]", p.Hdr.ID)
		return
	}

	var l, offset int
	if b.SystemID, l, err = ReadCString(p.Body[offset:], 16, "system_id"); err != nil {
		return
	}
	offset += l

	if b.Password, l, err = ReadCString(p.Body[offset:], 9, "password"); err != nil {
		return
	}
	offset += l

	if b.SystemType, l, err = ReadCString(p.Body[offset:], 13, "system_type"); err != nil {
		return
	}
	offset += l

	if offset+3 > len(p.Body) {
		err = errors.Wrap(ErrMalformedPDU, "invalid packet, no data for interface_version/addr_ton/addr_npi")
		return
	}
	b.IVersion = uint(p.Body[offset])
	b.AddrTON = uint(p.Body[offset+1])
	b.AddrNPI = uint(p.Body[offset+2])
	offset += 3

	if b.AddrRange, l, err = ReadCString(p.Body[offset:], 41, "address_range"); err != nil {
		return
	}
	offset += l

	if offset != len(p.Body) {
		err = errors.Wrapf(ErrMalformedPDU, "invalid packet body len [HDR: %d, Context: %d]", len(p.Body), offset)
	}
	return
}

// Generate BIND packet
func EncodeBind(m ConnSMPPMode, b SMPPBind) (p SMPPPacket, err error) {
	var cmdid uint32
	switch m {
	case CSMPPTX:
		cmdid = smppconst.CMD_BIND_TRANSMITTER
	case CSMPPRX:
		cmdid = smppconst.CMD_BIND_RECEIVER
	case CSMPPTRX:
		cmdid = smppconst.CMD_BIND_TRANSCEIVER
	default:
		return SMPPPacket{}, fmt.Errorf("invalid connection mode")
	}

	// Validate max entity len
	if len(b.SystemID) > 15 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [system_id]: %d, maxLen = 15", len(b.SystemID))
	}
	if len(b.Password) > 8 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [password]: %d, maxLen = 8", len(b.Password))
	}
	if len(b.SystemType) > 12 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [system_type]: %d, maxLen = 12", len(b.SystemType))
	}
	if len(b.AddrRange) > 40 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [address_range]: %d, maxLen = 40", len(b.AddrRange))
	}

	buf := make([]byte, 0, len(b.SystemID)+len(b.Password)+len(b.SystemType)+len(b.AddrRange)+7)
	buf = appendCString(buf, b.SystemID)
	buf = appendCString(buf, b.Password)
	buf = appendCString(buf, b.SystemType)
	buf = append(buf, byte(b.IVersion), byte(b.AddrTON), byte(b.AddrNPI))
	buf = appendCString(buf, b.AddrRange)

	return SMPPPacket{Hdr: SMPPHeader{ID: cmdid}, Body: buf}, nil
}

// EncodeSubmitDeliverSm encodes SUBMIT_SM or DELIVER_SM, sequence number is set by session
func EncodeSubmitDeliverSm(CMD uint32, ss SMPPSubmit) (p SMPPPacket, err error) {
	// Validate max entity len
	if len(ss.ServiceType) > 5 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [service_type]: %d, maxLen = 5", len(ss.ServiceType))
	}
	if len(ss.Source.Addr) > 20 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [source_addr]: %d, maxLen = 20", len(ss.Source.Addr))
	}
	if len(ss.Dest.Addr) > 20 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [dest_addr]: %d, maxLen = 20", len(ss.Dest.Addr))
	}
	if len(ss.ScheduledDeliveryTime) > 16 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [scheduled_delivery_time]: %d, maxLen = 16", len(ss.ScheduledDeliveryTime))
	}
	if len(ss.ValidityPeriod) > 16 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [validity_period]: %d, maxLen = 16", len(ss.ValidityPeriod))
	}
	if len(ss.ShortMessage) > 254 {
		return SMPPPacket{}, fmt.Errorf("invalid length of [short_message]: %d, maxLen = 254", len(ss.ShortMessage))
	}
	if len(ss.ShortMessage) > 0 && ss.TLV.Has(smppconst.TLV_MESSAGE_PAYLOAD) {
		return SMPPPacket{}, fmt.Errorf("both [short_message] and [message_payload] are set")
	}

	switch CMD {
	case smppconst.CMD_SUBMIT_SM, smppconst.CMD_DELIVER_SM:
		p.Hdr.ID = CMD
	default:
		return SMPPPacket{}, fmt.Errorf("invalid CommandID: %x", CMD)
	}

	buf := make([]byte, 0, 64+len(ss.ShortMessage)+ss.TLV.encodedLen())
	buf = appendCString(buf, ss.ServiceType)
	buf = append(buf, ss.Source.TON, ss.Source.NPI)
	buf = appendCString(buf, ss.Source.Addr)
	buf = append(buf, ss.Dest.TON, ss.Dest.NPI)
	buf = appendCString(buf, ss.Dest.Addr)
	buf = append(buf, ss.ESMClass, ss.ProtocolID, ss.PriorityFlag)
	buf = appendCString(buf, ss.ScheduledDeliveryTime)
	buf = appendCString(buf, ss.ValidityPeriod)
	buf = append(buf, ss.RegisteredDelivery, ss.ReplaceIfPresent, ss.DataCoding, ss.SmDefaultMsgID)
	buf = append(buf, uint8(len(ss.ShortMessage)))
	buf = append(buf, ss.ShortMessage...)

	if buf, err = ss.TLV.appendTo(buf); err != nil {
		return SMPPPacket{}, err
	}
	p.Body = buf
	return p, nil
}

func EncodeSubmitSm(ss SMPPSubmit) (p SMPPPacket, err error) {
	return EncodeSubmitDeliverSm(smppconst.CMD_SUBMIT_SM, ss)
}

func EncodeDeliverSm(ss SMPPSubmit) (p SMPPPacket, err error) {
	return EncodeSubmitDeliverSm(smppconst.CMD_DELIVER_SM, ss)
}

func DecodeSubmitDeliverSm(p SMPPPacket) (ss SMPPSubmit, err error) {
	// Validate correct command ID
	switch p.Hdr.ID {
	case smppconst.CMD_SUBMIT_SM, smppconst.CMD_DELIVER_SM:
	default:
		err = errors.Wrapf(ErrMalformedPDU, "unsupported command ID [%d]", p.Hdr.ID)
		return
	}

	body := p.Body
	var l, offset int

	if ss.ServiceType, l, err = ReadCString(body[offset:], 6, "service_type"); err != nil {
		return
	}
	offset += l

	if offset+2 > len(body) {
		err = errors.Wrap(ErrMalformedPDU, "invalid packet, no data for source_addr_ton/npi")
		return
	}
	ss.Source.TON = body[offset]
	ss.Source.NPI = body[offset+1]
	offset += 2

	if ss.Source.Addr, l, err = ReadCString(body[offset:], 21, "source_addr"); err != nil {
		return
	}
	offset += l

	if offset+2 > len(body) {
		err = errors.Wrap(ErrMalformedPDU, "invalid packet, no data for dest_addr_ton/npi")
		return
	}
	ss.Dest.TON = body[offset]
	ss.Dest.NPI = body[offset+1]
	offset += 2

	if ss.Dest.Addr, l, err = ReadCString(body[offset:], 21, "destination_addr"); err != nil {
		return
	}
	offset += l

	if offset+3 > len(body) {
		err = errors.Wrap(ErrMalformedPDU, "invalid packet, no data for esm_class/protocol_id/priority_flag")
		return
	}
	ss.ESMClass = body[offset]
	ss.ProtocolID = body[offset+1]
	ss.PriorityFlag = body[offset+2]
	offset += 3

	if ss.ScheduledDeliveryTime, l, err = ReadCString(body[offset:], 17, "schedule_delivery_time"); err != nil {
		return
	}
	offset += l

	if ss.ValidityPeriod, l, err = ReadCString(body[offset:], 17, "validity_period"); err != nil {
		return
	}
	offset += l

	if offset+5 > len(body) {
		err = errors.Wrap(ErrMalformedPDU, "invalid packet, no data for sm_length")
		return
	}
	ss.RegisteredDelivery = body[offset]
	ss.ReplaceIfPresent = body[offset+1]
	ss.DataCoding = body[offset+2]
	ss.SmDefaultMsgID = body[offset+3]
	smLength := int(body[offset+4])
	offset += 5

	// Load message body
	if offset+smLength > len(body) {
		err = errors.Wrapf(ErrMalformedPDU, "invalid packet, sm_length is %d, only %d bytes left", smLength, len(body)-offset)
		return
	}
	if smLength > 0 {
		ss.ShortMessage = make([]byte, smLength)
		copy(ss.ShortMessage, body[offset:offset+smLength])
	}
	offset += smLength

	ss.TLV, err = DecodeTLV(body[offset:])
	return
}
