package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
	"github.com/smpptool/smpplink/app/internal/admin"
)

type HttpHandler struct {
	p  *smpplink.SessionPool
	rc *Receiver

	// Used when submit request has no source address
	source smpplink.SMPPAddress

	submitTimeout time.Duration
}

func newEngine(h *HttpHandler) *gin.Engine {
	e := admin.NewEngine("smpp-receiver")
	e.GET("/session/list", h.ListSessions)
	e.GET("/log/level", admin.LogLevel("smpp-receiver"))
	e.POST("/log/level", admin.LogLevel("smpp-receiver"))
	e.GET("/metrics", admin.Metrics(h.p.Stats))
	e.GET("/events", admin.Events(h.rc.Events))
	e.POST("/message/submit", h.Submit)
	return e
}

// [ /session/list ]
func (h *HttpHandler) ListSessions(c *gin.Context) {
	sl := h.p.GetSessionList()
	if sl == nil {
		sl = []smpplink.SessionListInfo{}
	}
	c.JSON(http.StatusOK, sl)
}

// [ /message/submit ]
func (h *HttpHandler) Submit(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := smpplink.ParseSubmitRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := req.Message()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if m.Source.Addr == "" {
		m.Source = h.source
	}

	timeout := h.submitTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	s, err := h.p.SubmitMessage(ctx, m)
	if err != nil {
		code := http.StatusInternalServerError
		res := gin.H{"error": err.Error()}
		if st, ok := smpplink.CommandStatus(err); ok {
			code = http.StatusBadGateway
			res["command_status"] = st
			res["status_name"] = smpplink.StatusName(st)
		} else if errors.Is(err, smpplink.ErrInvalidState) {
			code = http.StatusServiceUnavailable
		} else if errors.Is(err, smpplink.ErrResponseTimeout) {
			code = http.StatusGatewayTimeout
		}
		log.WithFields(log.Fields{"type": "smpp-receiver", "action": "submit", "dest": m.Dest.Addr}).Warning("Submit failed: ", err)
		c.JSON(code, res)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sid": s.SessionID, "message": smpplink.NewMessageView(*m)})
}
