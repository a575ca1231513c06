package smpplink

import (
	"regexp"
	"strings"
	"time"

	smppconst "github.com/smpptool/smpplink/const"
)

// Delivery receipt text format (SMPP 3.4, Appendix B):
// id:IIIIIIIIII sub:SSS dlvrd:DDD submit date:YYMMDDhhmm done date:YYMMDDhhmm stat:DDDDDDD err:E text:...
var (
	receiptLooksLike = regexp.MustCompile(`(?i)(^|\s)id:\S+.*\sstat:\S+`)

	receiptID         = regexp.MustCompile(`(?i)(?:^|\s)id:(\S+)`)
	receiptSub        = regexp.MustCompile(`(?i)(?:^|\s)sub:(\S+)`)
	receiptDlvrd      = regexp.MustCompile(`(?i)(?:^|\s)dlvrd:(\S+)`)
	receiptSubmitDate = regexp.MustCompile(`(?i)(?:^|\s)submit date:(\d+)`)
	receiptDoneDate   = regexp.MustCompile(`(?i)(?:^|\s)done date:(\d+)`)
	receiptStat       = regexp.MustCompile(`(?i)(?:^|\s)stat:(\S+)`)
	receiptErr        = regexp.MustCompile(`(?i)(?:^|\s)err:(\S+)`)
	receiptText       = regexp.MustCompile(`(?i)(?:^|\s)text:(.*)$`)
)

var messageStateName = map[uint8]string{
	smppconst.MSG_STATE_ENROUTE:       "ENROUTE",
	smppconst.MSG_STATE_DELIVERED:     "DELIVRD",
	smppconst.MSG_STATE_EXPIRED:       "EXPIRED",
	smppconst.MSG_STATE_DELETED:       "DELETED",
	smppconst.MSG_STATE_UNDELIVERABLE: "UNDELIV",
	smppconst.MSG_STATE_ACCEPTED:      "ACCEPTD",
	smppconst.MSG_STATE_UNKNOWN:       "UNKNOWN",
	smppconst.MSG_STATE_REJECTED:      "REJECTD",
}

// MessageStateName converts value of message_state TLV into receipt stat: value
func MessageStateName(state uint8) string {
	if n, ok := messageStateName[state]; ok {
		return n
	}
	return "UNKNOWN"
}

// MessageStateByName is the inverse of MessageStateName, 0 for unknown names
func MessageStateByName(stat string) uint8 {
	stat = strings.ToUpper(stat)
	for k, v := range messageStateName {
		if v == stat {
			return k
		}
	}
	return 0
}

// LooksLikeReceipt checks for "id:... stat:..." pair in message text
func LooksLikeReceipt(text string) bool {
	return receiptLooksLike.MatchString(text)
}

func receiptField(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func parseReceiptDate(s string) time.Time {
	var layout string
	switch len(s) {
	case 10:
		layout = "0601021504"
	case 12:
		layout = "060102150405"
	default:
		return time.Time{}
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ParseReceipt extracts delivery receipt fields from message text. ok is false when text is not a receipt.
func ParseReceipt(text string) (r DeliveryReport, ok bool) {
	if !LooksLikeReceipt(text) {
		return r, false
	}
	r.MessageID = receiptField(receiptID, text)
	r.Sub = receiptField(receiptSub, text)
	r.Dlvrd = receiptField(receiptDlvrd, text)
	r.SubmitDate = parseReceiptDate(receiptField(receiptSubmitDate, text))
	r.DoneDate = parseReceiptDate(receiptField(receiptDoneDate, text))
	r.Status = strings.ToUpper(receiptField(receiptStat, text))
	r.Err = receiptField(receiptErr, text)
	r.Text = strings.TrimSpace(receiptField(receiptText, text))
	return r, true
}

// FormatReceipt builds receipt text, used by SMSC side
func FormatReceipt(r DeliveryReport) string {
	text := r.Text
	if len(text) > 20 {
		text = text[:20]
	}
	sub, dlvrd, errCode := r.Sub, r.Dlvrd, r.Err
	if sub == "" {
		sub = "001"
	}
	if dlvrd == "" {
		dlvrd = "000"
		if r.Status == "DELIVRD" {
			dlvrd = "001"
		}
	}
	if errCode == "" {
		errCode = "000"
	}
	return "id:" + r.MessageID +
		" sub:" + sub +
		" dlvrd:" + dlvrd +
		" submit date:" + r.SubmitDate.UTC().Format("0601021504") +
		" done date:" + r.DoneDate.UTC().Format("0601021504") +
		" stat:" + r.Status +
		" err:" + errCode +
		" text:" + text
}

// BuildDeliveryReport collects receipt data from deliver_sm: receipt text first, TLVs override it
func BuildDeliveryReport(ss *SMPPSubmit) DeliveryReport {
	r, _ := ParseReceipt(string(ss.Payload()))

	if id, ok := ss.TLV.GetString(smppconst.TLV_RECEIPTED_MESSAGE_ID); ok && id != "" {
		r.MessageID = id
	}
	if v, ok := ss.TLV.Get(smppconst.TLV_MESSAGE_STATE); ok && len(v) == 1 {
		r.MessageState = v[0]
		if r.Status == "" {
			r.Status = MessageStateName(v[0])
		}
	}
	if v, ok := ss.TLV.Get(smppconst.TLV_NETWORK_ERROR_CODE); ok {
		r.NetworkErrorCode = v
	}
	if r.Status == "" {
		r.Status = "UNKNOWN"
	}
	r.Source = ss.Source
	r.Dest = ss.Dest
	return r
}
