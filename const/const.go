package smppconst

// SMPP interface version announced in BIND requests
const SMPP_INTERFACE_VERSION = 0x34

// Default ports
const (
	SMPP_PLAIN_PORT = 2775
	SMPP_TLS_PORT   = 2776
)

// Timeouts (milliseconds)
const (
	// Maximum time we wait for a _RESP packet from SMSC
	TX_MAX_TIMEOUT_MS = 10000

	// Maximum time we wait for BIND_RESP
	BIND_TIMEOUT_MS = 5000

	// Idle time before sending ENQUIRE_LINK
	ENQUIRE_LINK_INTERVAL_MS = 30000

	// Maximum number of outstanding requests per session
	TX_WINDOW = 256
)

// Command ID's
const (
	CMD_GENERIC_NACK          = 0x80000000
	CMD_BIND_RECEIVER         = 0x00000001
	CMD_BIND_RECEIVER_RESP    = 0x80000001
	CMD_BIND_TRANSMITTER      = 0x00000002
	CMD_BIND_TRANSMITTER_RESP = 0x80000002
	CMD_QUERY_SM              = 0x00000003
	CMD_QUERY_SM_RESP         = 0x80000003
	CMD_SUBMIT_SM             = 0x00000004
	CMD_SUBMIT_SM_RESP        = 0x80000004
	CMD_DELIVER_SM            = 0x00000005
	CMD_DELIVER_SM_RESP       = 0x80000005
	CMD_UNBIND                = 0x00000006
	CMD_UNBIND_RESP           = 0x80000006
	CMD_REPLACE_SM            = 0x00000007
	CMD_REPLACE_SM_RESP       = 0x80000007
	CMD_CANCEL_SM             = 0x00000008
	CMD_CANCEL_SM_RESP        = 0x80000008
	CMD_BIND_TRANSCEIVER      = 0x00000009
	CMD_BIND_TRANSCEIVER_RESP = 0x80000009
	CMD_OUTBIND               = 0x0000000B
	CMD_ENQUIRE_LINK          = 0x00000015
	CMD_ENQUIRE_LINK_RESP     = 0x80000015
	CMD_SUBMIT_MULTI          = 0x00000021
	CMD_SUBMIT_MULTI_RESP     = 0x80000021
	CMD_ALERT_NOTIFICATION    = 0x00000102
	CMD_DATA_SM               = 0x00000103
	CMD_DATA_SM_RESP          = 0x80000103

	// Bit, that marks _RESP packets
	CMD_RESP_MASK = 0x80000000
)

// Command status (error codes)
const (
	ESME_ROK              = 0x00000000
	ESME_RINVMSGLEN       = 0x00000001
	ESME_RINVCMDLEN       = 0x00000002
	ESME_RINVCMDID        = 0x00000003
	ESME_RINVBNDSTS       = 0x00000004
	ESME_RALYBND          = 0x00000005
	ESME_RINVPRTFLG       = 0x00000006
	ESME_RINVREGDLVFLG    = 0x00000007
	ESME_RSYSERR          = 0x00000008
	ESME_RINVSRCADR       = 0x0000000A
	ESME_RINVDSTADR       = 0x0000000B
	ESME_RINVMSGID        = 0x0000000C
	ESME_RBINDFAIL        = 0x0000000D
	ESME_RINVPASWD        = 0x0000000E
	ESME_RINVSYSID        = 0x0000000F
	ESME_RCANCELFAIL      = 0x00000011
	ESME_RREPLACEFAIL     = 0x00000013
	ESME_RMSGQFUL         = 0x00000014
	ESME_RINVSERTYP       = 0x00000015
	ESME_RINVESMCLASS     = 0x00000043
	ESME_RSUBMITFAIL      = 0x00000045
	ESME_RINVSRCTON       = 0x00000048
	ESME_RINVSRCNPI       = 0x00000049
	ESME_RINVDSTTON       = 0x00000050
	ESME_RINVDSTNPI       = 0x00000051
	ESME_RINVSYSTYP       = 0x00000053
	ESME_RTHROTTLED       = 0x00000058
	ESME_RINVSCHED        = 0x00000061
	ESME_RINVEXPIRY       = 0x00000062
	ESME_RX_T_APPN        = 0x00000064
	ESME_RX_P_APPN        = 0x00000065
	ESME_RX_R_APPN        = 0x00000066
	ESME_RINVOPTPARSTREAM = 0x000000C0
	ESME_ROPTPARNOTALLWD  = 0x000000C1
	ESME_RINVPARLEN       = 0x000000C2
	ESME_RMISSINGOPTPARAM = 0x000000C3
	ESME_RINVOPTPARAMVAL  = 0x000000C4
	ESME_RDELIVERYFAILURE = 0x000000FE
	ESME_RUNKNOWNERR      = 0x000000FF
)

// Optional parameter (TLV) tags
const (
	TLV_DEST_ADDR_SUBUNIT          = 0x0005
	TLV_SOURCE_ADDR_SUBUNIT        = 0x000D
	TLV_PAYLOAD_TYPE               = 0x0019
	TLV_ADDITIONAL_STATUS_INFO     = 0x001D
	TLV_RECEIPTED_MESSAGE_ID       = 0x001E
	TLV_USER_MESSAGE_REFERENCE     = 0x0204
	TLV_SOURCE_PORT                = 0x020A
	TLV_DESTINATION_PORT           = 0x020B
	TLV_SAR_MSG_REF_NUM            = 0x020C
	TLV_LANGUAGE_INDICATOR         = 0x020D
	TLV_SAR_TOTAL_SEGMENTS         = 0x020E
	TLV_SAR_SEGMENT_SEQNUM         = 0x020F
	TLV_SC_INTERFACE_VERSION       = 0x0210
	TLV_NETWORK_ERROR_CODE         = 0x0423
	TLV_MESSAGE_PAYLOAD            = 0x0424
	TLV_DELIVERY_FAILURE_REASON    = 0x0425
	TLV_MORE_MESSAGES_TO_SEND      = 0x0426
	TLV_MESSAGE_STATE              = 0x0427
	TLV_USSD_SERVICE_OP            = 0x0501
)

// ESM Class bits
const (
	// Message type, bits 2-5
	ESM_MSGTYPE_MASK             = 0x3C
	ESM_MSGTYPE_DEFAULT          = 0x00
	ESM_MSGTYPE_DELIVERY_RECEIPT = 0x04
	ESM_MSGTYPE_DELIVERY_ACK     = 0x08
	ESM_MSGTYPE_USER_ACK         = 0x10
	ESM_MSGTYPE_CONVERSATION     = 0x18
	ESM_MSGTYPE_INTERMEDIATE     = 0x20

	// GSM specific features, bits 6-7
	ESM_UDHI      = 0x40
	ESM_REPLYPATH = 0x80
)

// Registered delivery
const (
	REG_DELIVERY_NONE    = 0x00
	REG_DELIVERY_ALWAYS  = 0x01
	REG_DELIVERY_FAILURE = 0x02
)

// Message state, value of TLV message_state
const (
	MSG_STATE_ENROUTE       = 1
	MSG_STATE_DELIVERED     = 2
	MSG_STATE_EXPIRED       = 3
	MSG_STATE_DELETED       = 4
	MSG_STATE_UNDELIVERABLE = 5
	MSG_STATE_ACCEPTED      = 6
	MSG_STATE_UNKNOWN       = 7
	MSG_STATE_REJECTED      = 8
)

// Type of number
const (
	TON_UNKNOWN       = 0x00
	TON_INTERNATIONAL = 0x01
	TON_NATIONAL      = 0x02
	TON_ALPHANUMERIC  = 0x05
)

// Numbering plan indicator
const (
	NPI_UNKNOWN = 0x00
	NPI_ISDN    = 0x01
)
