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
	"github.com/smpptool/smpplink/smsc"
)

type ConnInfo struct {
	ID       uint32
	State    string
	Mode     string
	SystemID string
	Remote   string
}

func newEngine(srv *smsc.Server) *gin.Engine {
	e := admin.NewEngine("smpp-server")
	e.GET("/session/list", func(c *gin.Context) {
		list := []ConnInfo{}
		for _, x := range srv.Conns() {
			list = append(list, ConnInfo{ID: x.ID, State: x.State().String(), Mode: x.Mode().String(), SystemID: x.SystemID(), Remote: x.Remote()})
		}
		c.JSON(http.StatusOK, list)
	})
	e.GET("/log/level", admin.LogLevel("smpp-server"))
	e.POST("/log/level", admin.LogLevel("smpp-server"))
	e.GET("/metrics", admin.Metrics(srv.Stats))
	e.POST("/mo", deliverMO(srv))
	e.POST("/mo/:systemID", deliverMO(srv))
	return e
}

// [ /mo/:systemID ] sends MO message to bound receiver
func deliverMO(srv *smsc.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
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

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()
		st, err := srv.DeliverMO(ctx, c.Param("systemID"), smpplink.SMPPSubmit{
			Source:       m.Source,
			Dest:         m.Dest,
			DataCoding:   m.DataCoding,
			ShortMessage: m.Body,
		})
		if err != nil {
			code := http.StatusBadGateway
			if errors.Is(err, smsc.ErrNoReceiver) {
				code = http.StatusNotFound
			} else if errors.Is(err, smpplink.ErrResponseTimeout) {
				code = http.StatusGatewayTimeout
			}
			log.WithFields(log.Fields{"type": "smpp-server", "service": "http", "systemID": c.Param("systemID")}).Warning("MO delivery failed: ", err)
			c.JSON(code, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"command_status": st, "status_name": smpplink.StatusName(st)})
	}
}
