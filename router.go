package smpplink

import (
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	smppconst "github.com/smpptool/smpplink/const"
)

// DLRPolicy decides if DELIVER_SM carries a delivery report or MO message.
// Operators differ here, so every rule can be switched off.
type DLRPolicy struct {
	// Message type bits of esm_class, masked value is compared with ESMClassValues
	ESMClassMask   uint8
	ESMClassValues []uint8

	// Presence of receipted_message_id TLV marks a report
	ReceiptedMessageID bool

	// Message text looks like "id:... stat:..."
	ReceiptText bool
}

func DefaultDLRPolicy() DLRPolicy {
	return DLRPolicy{
		ESMClassMask:       smppconst.ESM_MSGTYPE_MASK,
		ESMClassValues:     []uint8{smppconst.ESM_MSGTYPE_DELIVERY_RECEIPT, smppconst.ESM_MSGTYPE_INTERMEDIATE},
		ReceiptedMessageID: true,
		ReceiptText:        true,
	}
}

func (p DLRPolicy) IsDeliveryReport(ss *SMPPSubmit) bool {
	if p.ESMClassMask != 0 {
		v := ss.ESMClass & p.ESMClassMask
		for _, x := range p.ESMClassValues {
			if v == x {
				return true
			}
		}
	}
	if p.ReceiptedMessageID && ss.TLV.Has(smppconst.TLV_RECEIPTED_MESSAGE_ID) {
		return true
	}
	if p.ReceiptText && LooksLikeReceipt(string(ss.Payload())) {
		return true
	}
	return false
}

type InboundKind uint8

const (
	InboundMO InboundKind = iota + 1
	InboundDLR
)

func (k InboundKind) String() string {
	switch k {
	case InboundMO:
		return "MO"
	case InboundDLR:
		return "DLR"
	}
	return "UNKNOWN"
}

// Inbound is classified DELIVER_SM. Exactly one of Message/Report is set, according to Kind.
type Inbound struct {
	Kind    InboundKind
	Message *Message
	Report  *DeliveryReport
}

// Router classifies incoming DELIVER_SM and dispatches them to handlers.
// One router may serve many sessions; handlers are called from session reader goroutine.
type Router struct {
	Policy DLRPolicy

	OnMessage        func(m Message)
	OnDeliveryReport func(r DeliveryReport)
	OnClose          func(err error)

	Correlator *Correlator
}

func NewRouter() *Router {
	return &Router{
		Policy:     DefaultDLRPolicy(),
		Correlator: NewCorrelator(24 * time.Hour),
	}
}

// Classify converts DELIVER_SM into tagged variant, raw TLVs are not inspected after this point
func (r *Router) Classify(ss *SMPPSubmit) Inbound {
	if r.Policy.IsDeliveryReport(ss) {
		dr := BuildDeliveryReport(ss)
		if r.Correlator != nil {
			dr.Message = r.Correlator.Resolve(dr.MessageID, dr.IsFinal())
		}
		return Inbound{Kind: InboundDLR, Report: &dr}
	}
	return Inbound{Kind: InboundMO, Message: &Message{
		Source:             ss.Source,
		Dest:               ss.Dest,
		Body:               ss.Payload(),
		DataCoding:         ss.DataCoding,
		ESMClass:           ss.ESMClass,
		RegisteredDelivery: ss.RegisteredDelivery,
		ServiceType:        ss.ServiceType,
		ValidityPeriod:     ss.ValidityPeriod,
		TLV:                ss.TLV,
	}}
}

func (r *Router) Dispatch(in Inbound) {
	switch in.Kind {
	case InboundDLR:
		if r.OnDeliveryReport != nil {
			r.OnDeliveryReport(*in.Report)
		}
	case InboundMO:
		if r.OnMessage != nil {
			r.OnMessage(*in.Message)
		}
	}
}

// Track registers submitted message for DLR correlation
func (r *Router) Track(m *Message) {
	if r.Correlator != nil && m.MessageID != "" {
		r.Correlator.Add(m)
	}
}

func (r *Router) closed(err error) {
	if r.OnClose != nil {
		r.OnClose(err)
	}
}

type correlatorEntry struct {
	m *Message
	t time.Time
}

// Correlator maps SMSC message_id to submitted message until final report or TTL expiration
type Correlator struct {
	TTL time.Duration

	mu    sync.Mutex
	items map[string]correlatorEntry
	purge time.Time
}

func NewCorrelator(ttl time.Duration) *Correlator {
	return &Correlator{
		TTL:   ttl,
		items: make(map[string]correlatorEntry),
	}
}

func (c *Correlator) Add(m *Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.items[m.MessageID] = correlatorEntry{m: m, t: now}

	// Lazy cleanup, at most once per TTL/10
	if c.TTL > 0 && now.Sub(c.purge) > c.TTL/10 {
		c.purge = now
		for k, v := range c.items {
			if now.Sub(v.t) > c.TTL {
				delete(c.items, k)
			}
		}
	}
}

// Resolve finds submitted message by receipted id. Final reports remove the entry.
func (c *Correlator) Resolve(id string, final bool) *Message {
	if id == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range messageIDVariants(id) {
		e, ok := c.items[k]
		if !ok {
			continue
		}
		if c.TTL > 0 && time.Since(e.t) > c.TTL {
			delete(c.items, k)
			return nil
		}
		if final {
			delete(c.items, k)
		}
		return e.m
	}
	log.WithFields(log.Fields{"type": "smpp", "service": "Correlator", "MsgID": id}).Debug("No submitted message for receipt")
	return nil
}

func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Some SMSC return hex message_id in SUBMIT_SM_RESP and decimal one in receipt (or vice versa)
func messageIDVariants(id string) []string {
	v := []string{id}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		v = append(v, strconv.FormatUint(n, 16), strings.ToUpper(strconv.FormatUint(n, 16)))
	}
	if n, err := strconv.ParseUint(id, 16, 64); err == nil {
		v = append(v, strconv.FormatUint(n, 10))
	}
	return v
}
