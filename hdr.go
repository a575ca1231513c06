package smpplink

import (
	"fmt"
	"time"

	smppconst "github.com/smpptool/smpplink/const"
)

// Largest PDU accepted from the wire (message_payload may carry up to 64K)
const MaxSMPPPacketSize = 65536

// SMPP header length
const HeaderLen = 16

type ConnSMPPState uint8
type ConnSMPPMode uint8

type SMPPHeader struct {
	Len    uint32
	ID     uint32
	Status uint32
	Seq    uint32
}

func (h SMPPHeader) String() string {
	return fmt.Sprintf("[%d|%d,%s|%d|%d bytes]", h.Seq, h.ID, CmdName(h.ID), h.Status, h.Len)
}

// IsReply reports if header belongs to _RESP or GENERIC_NACK packet
func (h SMPPHeader) IsReply() bool {
	return h.ID&smppconst.CMD_RESP_MASK != 0
}

// SMPPPacket is a single PDU: header + undecoded body
type SMPPPacket struct {
	Hdr  SMPPHeader
	Body []byte

	CreateTime time.Time // Packet origination timestamp
}

// SMPP session state: Unbound -> Binding -> Bound -> Unbinding -> Unbound
const (
	CSMPPUnbound ConnSMPPState = iota
	CSMPPBinding
	CSMPPBound
	CSMPPUnbinding
)

var connSMPPStateText = map[ConnSMPPState]string{
	CSMPPUnbound:   "Unbound",
	CSMPPBinding:   "Binding",
	CSMPPBound:     "Bound",
	CSMPPUnbinding: "Unbinding",
}

func (x ConnSMPPState) String() string { return connSMPPStateText[x] }

// SMPP Bind mode: TX, RX, TRX
const (
	CSMPPUndefined ConnSMPPMode = iota
	CSMPPTX
	CSMPPRX
	CSMPPTRX
)

var connSMPPModeText = map[ConnSMPPMode]string{
	CSMPPUndefined: "Undefined",
	CSMPPTX:        "TX",
	CSMPPRX:        "RX",
	CSMPPTRX:       "TRX",
}

func (x ConnSMPPMode) String() string { return connSMPPModeText[x] }

// ParseConnMode converts "TX", "RX" or "TRX" into bind mode
func ParseConnMode(s string) (ConnSMPPMode, error) {
	for k, v := range connSMPPModeText {
		if k != CSMPPUndefined && v == s {
			return k, nil
		}
	}
	return CSMPPUndefined, fmt.Errorf("invalid connection mode: %s (supported only: TX, RX, TRX)", s)
}

// MarshalText keeps bind mode readable in JSON/YAML views
func (x ConnSMPPMode) MarshalText() ([]byte, error) { return []byte(x.String()), nil }

func (x ConnSMPPState) MarshalText() ([]byte, error) { return []byte(x.String()), nil }

type SMPPBind struct {
	ConnMode   ConnSMPPMode
	SystemID   string
	Password   string
	SystemType string
	IVersion   uint
	AddrTON    uint
	AddrNPI    uint
	AddrRange  string
}

type SMPPBindResp struct {
	SystemID string
	TLV      TLVList
}

type SMPPAddress struct {
	TON  uint8
	NPI  uint8
	Addr string
}

func (a SMPPAddress) String() string {
	return fmt.Sprintf("%s(%d/%d)", a.Addr, a.TON, a.NPI)
}

// SMPPSubmit is the mandatory/optional parameter set of SUBMIT_SM and DELIVER_SM
type SMPPSubmit struct {
	ServiceType           string
	Source                SMPPAddress
	Dest                  SMPPAddress
	ESMClass              uint8
	ProtocolID            uint8
	PriorityFlag          uint8
	ScheduledDeliveryTime string
	ValidityPeriod        string
	RegisteredDelivery    uint8
	ReplaceIfPresent      uint8
	DataCoding            uint8
	SmDefaultMsgID        uint8
	ShortMessage          []byte
	TLV                   TLVList
}

// Payload returns message body: short_message or message_payload TLV
func (ss *SMPPSubmit) Payload() []byte {
	if len(ss.ShortMessage) == 0 {
		if v, ok := ss.TLV.Get(smppconst.TLV_MESSAGE_PAYLOAD); ok {
			return v
		}
	}
	return ss.ShortMessage
}

type SMPPSubmitResp struct {
	MessageID string
}

// Message is an application level SMS: MT on submit, MO on deliver
type Message struct {
	Source             SMPPAddress
	Dest               SMPPAddress
	Body               []byte
	DataCoding         uint8
	ESMClass           uint8
	RegisteredDelivery uint8
	ServiceType        string
	ValidityPeriod     string
	TLV                TLVList

	// Assigned by SMSC in SUBMIT_SM_RESP
	MessageID  string
	SubmitTime time.Time
}

// DeliveryReport is a status update for previously submitted message
type DeliveryReport struct {
	MessageID  string
	Status     string
	Err        string
	Sub        string
	Dlvrd      string
	SubmitDate time.Time
	DoneDate   time.Time
	Text       string

	// Value of TLV message_state, 0 if not present
	MessageState     uint8
	NetworkErrorCode []byte

	Source SMPPAddress
	Dest   SMPPAddress

	// Original submitted message, nil if correlation is lost
	Message *Message
}

// IsFinal reports if no more reports are expected for the message
func (r DeliveryReport) IsFinal() bool {
	switch r.Status {
	case "ENROUTE", "ACCEPTD", "UNKNOWN", "":
		return false
	}
	return true
}

var CMDNameMapping = map[uint32]string{
	smppconst.CMD_GENERIC_NACK:          "GENERIC_NACK",
	smppconst.CMD_BIND_RECEIVER:         "BIND_RECEIVER",
	smppconst.CMD_BIND_RECEIVER_RESP:    "BIND_RECEIVER_RESP",
	smppconst.CMD_BIND_TRANSMITTER:      "BIND_TRANSMITTER",
	smppconst.CMD_BIND_TRANSMITTER_RESP: "BIND_TRANSMITTER_RESP",
	smppconst.CMD_QUERY_SM:              "QUERY_SM",
	smppconst.CMD_QUERY_SM_RESP:         "QUERY_SM_RESP",
	smppconst.CMD_SUBMIT_SM:             "SUBMIT_SM",
	smppconst.CMD_SUBMIT_SM_RESP:        "SUBMIT_SM_RESP",
	smppconst.CMD_DELIVER_SM:            "DELIVER_SM",
	smppconst.CMD_DELIVER_SM_RESP:       "DELIVER_SM_RESP",
	smppconst.CMD_UNBIND:                "UNBIND",
	smppconst.CMD_UNBIND_RESP:           "UNBIND_RESP",
	smppconst.CMD_REPLACE_SM:            "REPLACE_SM",
	smppconst.CMD_REPLACE_SM_RESP:       "REPLACE_SM_RESP",
	smppconst.CMD_CANCEL_SM:             "CANCEL_SM",
	smppconst.CMD_CANCEL_SM_RESP:        "CANCEL_SM_RESP",
	smppconst.CMD_BIND_TRANSCEIVER:      "BIND_TRANSCEIVER",
	smppconst.CMD_BIND_TRANSCEIVER_RESP: "BIND_TRANSCEIVER_RESP",
	smppconst.CMD_OUTBIND:               "OUTBIND",
	smppconst.CMD_ENQUIRE_LINK:          "ENQUIRE_LINK",
	smppconst.CMD_ENQUIRE_LINK_RESP:     "ENQUIRE_LINK_RESP",
	smppconst.CMD_SUBMIT_MULTI:          "SUBMIT_MULTI",
	smppconst.CMD_SUBMIT_MULTI_RESP:     "SUBMIT_MULTI_RESP",
	smppconst.CMD_ALERT_NOTIFICATION:    "ALERT_NOTIFICATION",
	smppconst.CMD_DATA_SM:               "DATA_SM",
	smppconst.CMD_DATA_SM_RESP:          "DATA_SM_RESP",
}

func CmdName(id uint32) string {
	if n, ok := CMDNameMapping[id]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_%08X", id)
}

var statusNameMapping = map[uint32]string{
	smppconst.ESME_ROK:              "ESME_ROK",
	smppconst.ESME_RINVMSGLEN:       "ESME_RINVMSGLEN",
	smppconst.ESME_RINVCMDLEN:       "ESME_RINVCMDLEN",
	smppconst.ESME_RINVCMDID:        "ESME_RINVCMDID",
	smppconst.ESME_RINVBNDSTS:       "ESME_RINVBNDSTS",
	smppconst.ESME_RALYBND:          "ESME_RALYBND",
	smppconst.ESME_RINVPRTFLG:       "ESME_RINVPRTFLG",
	smppconst.ESME_RINVREGDLVFLG:    "ESME_RINVREGDLVFLG",
	smppconst.ESME_RSYSERR:          "ESME_RSYSERR",
	smppconst.ESME_RINVSRCADR:       "ESME_RINVSRCADR",
	smppconst.ESME_RINVDSTADR:       "ESME_RINVDSTADR",
	smppconst.ESME_RINVMSGID:        "ESME_RINVMSGID",
	smppconst.ESME_RBINDFAIL:        "ESME_RBINDFAIL",
	smppconst.ESME_RINVPASWD:        "ESME_RINVPASWD",
	smppconst.ESME_RINVSYSID:        "ESME_RINVSYSID",
	smppconst.ESME_RCANCELFAIL:      "ESME_RCANCELFAIL",
	smppconst.ESME_RREPLACEFAIL:     "ESME_RREPLACEFAIL",
	smppconst.ESME_RMSGQFUL:         "ESME_RMSGQFUL",
	smppconst.ESME_RINVSERTYP:       "ESME_RINVSERTYP",
	smppconst.ESME_RINVESMCLASS:     "ESME_RINVESMCLASS",
	smppconst.ESME_RSUBMITFAIL:      "ESME_RSUBMITFAIL",
	smppconst.ESME_RINVSRCTON:       "ESME_RINVSRCTON",
	smppconst.ESME_RINVSRCNPI:       "ESME_RINVSRCNPI",
	smppconst.ESME_RINVDSTTON:       "ESME_RINVDSTTON",
	smppconst.ESME_RINVDSTNPI:       "ESME_RINVDSTNPI",
	smppconst.ESME_RINVSYSTYP:       "ESME_RINVSYSTYP",
	smppconst.ESME_RTHROTTLED:       "ESME_RTHROTTLED",
	smppconst.ESME_RINVSCHED:        "ESME_RINVSCHED",
	smppconst.ESME_RINVEXPIRY:       "ESME_RINVEXPIRY",
	smppconst.ESME_RX_T_APPN:        "ESME_RX_T_APPN",
	smppconst.ESME_RX_P_APPN:        "ESME_RX_P_APPN",
	smppconst.ESME_RX_R_APPN:        "ESME_RX_R_APPN",
	smppconst.ESME_RINVOPTPARSTREAM: "ESME_RINVOPTPARSTREAM",
	smppconst.ESME_ROPTPARNOTALLWD:  "ESME_ROPTPARNOTALLWD",
	smppconst.ESME_RINVPARLEN:       "ESME_RINVPARLEN",
	smppconst.ESME_RMISSINGOPTPARAM: "ESME_RMISSINGOPTPARAM",
	smppconst.ESME_RINVOPTPARAMVAL:  "ESME_RINVOPTPARAMVAL",
	smppconst.ESME_RDELIVERYFAILURE: "ESME_RDELIVERYFAILURE",
	smppconst.ESME_RUNKNOWNERR:      "ESME_RUNKNOWNERR",
}

func StatusName(status uint32) string {
	if n, ok := statusNameMapping[status]; ok {
		return n
	}
	return "UNKNOWN"
}
