package smpplink

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func NewSessionPool(r *Router, st *Stats, tmpl SessionConfig) *SessionPool {
	if r == nil {
		r = NewRouter()
	}
	if st == nil {
		st = NewStats(nil)
	}
	tmpl.Stats = st
	return &SessionPool{
		Pool:    make(map[PQSessionID]*SPEntry),
		Router:  r,
		Stats:   st,
		Session: tmpl,
	}
}

func (p *SessionPool) allocateSessionID() PQSessionID {
	p.poolMutex.Lock()
	defer p.poolMutex.Unlock()
	p.maxSessionID++
	return p.maxSessionID
}

// Open connects to SMSC, binds and registers session in pool
func (p *SessionPool) Open(ctx context.Context, c ConnConfig, b SMPPBind) (PQSessionID, *SMPPSession, error) {
	id := p.allocateSessionID()
	cfg := p.Session
	cfg.SessionID = uint32(id)

	s, err := DialAndBind(ctx, c, b, cfg, p.Router)
	if err != nil {
		return 0, nil, err
	}
	p.register(id, s, c.Address())
	return id, s, nil
}

// RegisterSession adds externally created session to the pool
func (p *SessionPool) RegisterSession(s *SMPPSession, remote string) PQSessionID {
	id := p.allocateSessionID()
	p.register(id, s, remote)
	return id
}

func (p *SessionPool) register(id PQSessionID, s *SMPPSession, remote string) {
	pe := &SPEntry{
		SessionID: id,
		Session:   s,
		Remote:    remote,
		Created:   time.Now(),
	}

	p.poolMutex.Lock()
	p.Pool[id] = pe
	p.poolMutex.Unlock()
	p.Stats.Sessions.Update(int64(p.activeCount()))

	log.WithFields(log.Fields{"type": "pool", "SID": id, "service": "RegisterSession", "remote": remote}).Info("Registered new session in pool")

	go func() {
		<-s.Done()
		p.poolMutex.Lock()
		pe.IsClosed = true
		p.poolMutex.Unlock()
		p.Stats.Sessions.Update(int64(p.activeCount()))
		log.WithFields(log.Fields{"type": "pool", "SID": id, "service": "RegisterSession"}).Info("Session closed: ", s.Err())
	}()
}

func (p *SessionPool) activeCount() (n int) {
	p.poolMutex.RLock()
	defer p.poolMutex.RUnlock()
	for _, v := range p.Pool {
		if !v.IsClosed {
			n++
		}
	}
	return
}

func (p *SessionPool) Get(id PQSessionID) (*SMPPSession, bool) {
	p.poolMutex.RLock()
	defer p.poolMutex.RUnlock()
	if pe, ok := p.Pool[id]; ok && !pe.IsClosed {
		return pe.Session, true
	}
	return nil, false
}

// Remove drops closed sessions from the pool
func (p *SessionPool) Remove() (n int) {
	p.poolMutex.Lock()
	defer p.poolMutex.Unlock()
	for k, v := range p.Pool {
		if v.IsClosed {
			delete(p.Pool, k)
			n++
		}
	}
	return
}

// Next picks bound session, that is allowed to submit (round robin)
func (p *SessionPool) Next() (*SMPPSession, error) {
	p.poolMutex.RLock()
	ids := make([]PQSessionID, 0, len(p.Pool))
	for k, v := range p.Pool {
		if !v.IsClosed {
			ids = append(ids, k)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	cand := make([]*SMPPSession, 0, len(ids))
	for _, id := range ids {
		s := p.Pool[id].Session
		if s.State() == CSMPPBound && s.Mode() != CSMPPRX {
			cand = append(cand, s)
		}
	}
	p.poolMutex.RUnlock()

	if len(cand) == 0 {
		return nil, errors.Wrap(ErrInvalidState, "no bound TX/TRX session in pool")
	}
	n := atomic.AddUint32(&p.rr, 1)
	return cand[int(n-1)%len(cand)], nil
}

// SubmitMessage sends message through the next available session
func (p *SessionPool) SubmitMessage(ctx context.Context, m *Message) (*SMPPSession, error) {
	s, err := p.Next()
	if err != nil {
		return nil, err
	}
	return s, s.SubmitMessage(ctx, m)
}

// Close unbinds all sessions
func (p *SessionPool) Close(ctx context.Context) {
	p.poolMutex.RLock()
	list := make([]*SMPPSession, 0, len(p.Pool))
	for _, v := range p.Pool {
		if !v.IsClosed {
			list = append(list, v.Session)
		}
	}
	p.poolMutex.RUnlock()

	for _, s := range list {
		if s.State() == CSMPPBound {
			s.Unbind(ctx)
		} else {
			s.Close()
		}
	}
}
