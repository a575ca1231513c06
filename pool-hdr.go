package smpplink

import (
	"sync"
	"time"
)

// PoolQueue SessionID
type PQSessionID uint32

// Session Pool Entry
type SPEntry struct {
	SessionID PQSessionID  // ID of the session
	Session   *SMPPSession // Reference to Session
	Remote    string       // SMSC address
	Created   time.Time

	IsClosed bool // FLAG: Is connection closed
}

// SessionPool hosts independent sessions, that share only router and metrics
type SessionPool struct {
	Pool      map[PQSessionID]*SPEntry // Pool for storing sessions
	poolMutex sync.RWMutex

	maxSessionID PQSessionID
	rr           uint32 // Round robin position for Submit

	Router  *Router
	Stats   *Stats
	Session SessionConfig // Template for new sessions
}

type SessionListInfo struct {
	Id       PQSessionID
	Closed   bool
	State    ConnSMPPState
	Mode     ConnSMPPMode
	SystemID string
	SMSCID   string
	Remote   string
	Created  time.Time
	MaxSeq   uint32
	Pending  int
	Error    string `json:",omitempty"`
}

func (p *SessionPool) GetSystemIdBySessionID(id PQSessionID) (string, bool) {
	p.poolMutex.RLock()
	defer p.poolMutex.RUnlock()

	if o, ok := p.Pool[id]; ok {
		return o.Session.SystemID(), ok
	}
	return "", false
}

func (p *SessionPool) GetSessionIdBySystemID(id string) (PQSessionID, bool) {
	p.poolMutex.RLock()
	defer p.poolMutex.RUnlock()
	for k, v := range p.Pool {
		if !v.IsClosed && (v.Session.SystemID() == id) {
			return k, true
		}
	}
	return 0, false
}

func (p *SessionPool) GetSessionList() (l []SessionListInfo) {
	p.poolMutex.RLock()
	defer p.poolMutex.RUnlock()
	for k, v := range p.Pool {
		x := SessionListInfo{
			Id:       k,
			Closed:   v.IsClosed,
			State:    v.Session.State(),
			Mode:     v.Session.Mode(),
			SystemID: v.Session.SystemID(),
			SMSCID:   v.Session.SMSCSystemID(),
			Remote:   v.Remote,
			Created:  v.Created,
			MaxSeq:   v.Session.LastSeq(),
			Pending:  v.Session.PendingCount(),
		}
		if err := v.Session.Err(); err != nil {
			x.Error = err.Error()
		}
		l = append(l, x)
	}
	return
}
