package smpplink

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/smpptool/smpplink/coding"
	smppconst "github.com/smpptool/smpplink/const"
)

// TLVView is JSON form of a single TLV
type TLVView struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

func newTLVViews(l TLVList) []TLVView {
	if len(l) == 0 {
		return nil
	}
	out := make([]TLVView, 0, len(l))
	for _, t := range l {
		out = append(out, TLVView{Tag: fmt.Sprintf("0x%04X", uint16(t.Tag)), Value: hex.EncodeToString(t.Value)})
	}
	return out
}

// MessageView is JSON form of MO/MT message with decoded text
type MessageView struct {
	MessageID  string      `json:"message_id,omitempty"`
	Source     SMPPAddress `json:"source"`
	Dest       SMPPAddress `json:"dest"`
	DataCoding uint8       `json:"data_coding"`
	Encoding   string      `json:"encoding,omitempty"`
	Text       string      `json:"text"`
	TextError  string      `json:"text_error,omitempty"`
	Hex        string      `json:"hex"`
	TLV        []TLVView   `json:"tlv,omitempty"`
	SubmitTime *time.Time  `json:"submit_time,omitempty"`
}

func NewMessageView(m Message) MessageView {
	v := MessageView{
		MessageID:  m.MessageID,
		Source:     m.Source,
		Dest:       m.Dest,
		DataCoding: m.DataCoding,
		Hex:        hex.EncodeToString(m.Body),
		TLV:        newTLVViews(m.TLV),
	}
	if s, err := coding.ByDataCoding(m.DataCoding); err == nil {
		v.Encoding = s.Name
	}
	if text, err := coding.Decode(m.Body, m.DataCoding); err != nil {
		v.TextError = err.Error()
	} else {
		v.Text = text
	}
	if !m.SubmitTime.IsZero() {
		t := m.SubmitTime
		v.SubmitTime = &t
	}
	return v
}

// ReportView is JSON form of delivery report
type ReportView struct {
	MessageID        string       `json:"message_id"`
	Status           string       `json:"stat"`
	Final            bool         `json:"final"`
	Err              string       `json:"err,omitempty"`
	MessageState     uint8        `json:"message_state,omitempty"`
	NetworkErrorCode string       `json:"network_error_code,omitempty"`
	SubmitDate       *time.Time   `json:"submit_date,omitempty"`
	DoneDate         *time.Time   `json:"done_date,omitempty"`
	Text             string       `json:"text,omitempty"`
	Message          *MessageView `json:"message,omitempty"`
}

func NewReportView(r DeliveryReport) ReportView {
	v := ReportView{
		MessageID:        r.MessageID,
		Status:           r.Status,
		Final:            r.IsFinal(),
		Err:              r.Err,
		MessageState:     r.MessageState,
		NetworkErrorCode: hex.EncodeToString(r.NetworkErrorCode),
		Text:             r.Text,
	}
	if !r.SubmitDate.IsZero() {
		t := r.SubmitDate
		v.SubmitDate = &t
	}
	if !r.DoneDate.IsZero() {
		t := r.DoneDate
		v.DoneDate = &t
	}
	if r.Message != nil {
		mv := NewMessageView(*r.Message)
		v.Message = &mv
	}
	return v
}

// SubmitRequest is JSON request for sending a text message
type SubmitRequest struct {
	Source             SMPPAddress `json:"source"`
	Dest               SMPPAddress `json:"dest"`
	Text               string      `json:"text"`
	Encoding           string      `json:"encoding,omitempty"`
	RegisteredDelivery *uint8      `json:"registered_delivery,omitempty"`
}

func (r *SubmitRequest) fromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}

// ParseSubmitRequest decodes JSON body of submit request
func ParseSubmitRequest(data []byte) (r SubmitRequest, err error) {
	if err = r.fromJSON(data); err != nil {
		return r, errors.Wrap(err, "invalid submit request")
	}
	if r.Dest.Addr == "" {
		return r, errors.New("invalid submit request: dest.addr is empty")
	}
	return r, nil
}

// Message encodes text, registered delivery is requested unless disabled explicitly
func (r SubmitRequest) Message() (*Message, error) {
	enc, err := coding.EncodeAs(r.Text, r.Encoding)
	if err != nil {
		return nil, err
	}
	rd := uint8(smppconst.REG_DELIVERY_ALWAYS)
	if r.RegisteredDelivery != nil {
		rd = *r.RegisteredDelivery
	}
	return &Message{
		Source:             r.Source,
		Dest:               r.Dest,
		Body:               enc.Data,
		DataCoding:         enc.DataCoding(),
		RegisteredDelivery: rd,
	}, nil
}
