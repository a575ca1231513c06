// Package admin is a small HTTP control surface for long running tools.
package admin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/smpptool/smpplink"
)

// NewEngine returns gin engine with request logging through logrus
func NewEngine(tool string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(Logger(tool), gin.Recovery())
	return e
}

func Logger(tool string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		l := log.WithFields(log.Fields{
			"type":    tool,
			"service": "http",
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    path,
			"client":  c.ClientIP(),
			"latency": time.Since(start),
		})
		if c.Writer.Status() >= 400 {
			l.Warning("HTTP request failed")
		} else {
			l.Debug("HTTP request")
		}
	}
}

// [ /log/level ] returns current level, ?level=... switches it
func LogLevel(tool string) gin.HandlerFunc {
	return func(c *gin.Context) {
		level := c.Query("level")
		if level == "" {
			level = c.PostForm("level")
		}
		if level == "" {
			c.String(http.StatusOK, log.GetLevel().String())
			return
		}
		l, err := log.ParseLevel(level)
		if err != nil {
			c.String(http.StatusBadRequest, "ERROR: %v", err)
			return
		}
		log.SetLevel(l)
		log.WithFields(log.Fields{"type": tool}).Warning("Override LogLevel to: ", l.String())
		c.String(http.StatusOK, "OK")
	}
}

// [ /metrics ]
func Metrics(st *smpplink.Stats) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, st.Snapshot())
	}
}

// [ /events ] returns recent events, oldest first
func Events(l *EventLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, l.List())
	}
}

// Serve runs HTTP server until ctx is cancelled
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.WithFields(log.Fields{"type": "admin", "action": "listen"}).Info("Starting HTTP server at: ", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Max number of entries kept by EventLog
const MaxEvents = 100

type Event struct {
	T    time.Time   `json:"time"`
	Kind string      `json:"kind"`
	SID  uint32      `json:"sid,omitempty"`
	Data interface{} `json:"data"`
}

// EventLog keeps last MaxEvents events
type EventLog struct {
	list []Event
	max  int
	mtx  sync.RWMutex
}

func NewEventLog(max int) *EventLog {
	if max < 1 {
		max = MaxEvents
	}
	return &EventLog{max: max}
}

func (l *EventLog) Add(e Event) {
	if e.T.IsZero() {
		e.T = time.Now()
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.list) >= l.max {
		l.list = append(l.list[:0], l.list[len(l.list)-l.max+1:]...)
	}
	l.list = append(l.list, e)
}

func (l *EventLog) List() []Event {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	out := make([]Event, len(l.list))
	copy(out, l.list)
	return out
}

func (l *EventLog) Len() int {
	l.mtx.RLock()
	defer l.mtx.RUnlock()
	return len(l.list)
}
