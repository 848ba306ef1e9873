package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/danwin47-sys/ocrflow/notify"
	"github.com/danwin47-sys/ocrflow/observability"
	"github.com/danwin47-sys/ocrflow/pipeline"
)

// terminalEvent rebuilds the final event from a finished job's record, for
// streams that attach after the fact.
func terminalEvent(job pipeline.Job) (notify.Event, bool) {
	switch job.Status {
	case pipeline.StatusCompleted:
		return notify.Completed(job.Result), true
	case pipeline.StatusFailed:
		return notify.Failure(job.Error), true
	}
	return notify.Event{}, false
}

// jobEvents handles GET /api/v1/jobs/:id/events, streaming lifecycle events
// as SSE until the job finishes or the client goes away.
func (s *Server) jobEvents(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.pipeline.Store().Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	sub := s.pipeline.Notifier().Subscribe(id)
	defer s.pipeline.Notifier().Unsubscribe(sub)

	// Re-check after subscribing: the job may have finished in between,
	// in which case no event will ever arrive on the subscription.
	if job, err := s.pipeline.Store().Get(id); err == nil {
		if ev, done := terminalEvent(job); done {
			writeSSE(c, ev)
			return
		}
	} else {
		return
	}

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSE(c, ev); err != nil {
				return
			}
			if ev.Type != notify.TypeProgress {
				return
			}
		}
	}
}

// writeSSE sends one event in SSE framing.
func writeSSE(c *gin.Context, ev notify.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// jobSocket handles GET /api/v1/jobs/:id/ws. The socket pushes the same JSON
// events as the SSE stream; a client text frame "ping" is answered with
// "pong" so clients can probe liveness over the same connection.
func (s *Server) jobSocket(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.pipeline.Store().Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed",
			observability.String("job_id", id),
			observability.Error("err", err))
		return
	}
	defer conn.Close()

	sub := s.pipeline.Notifier().Subscribe(id)
	defer s.pipeline.Notifier().Unsubscribe(sub)

	// Reader: answers are funneled through the main loop so the
	// connection has a single writer.
	pings := make(chan struct{}, 4)
	readerGone := make(chan struct{})
	go func() {
		defer close(readerGone)
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(msg)), "ping") {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	if job, err := s.pipeline.Store().Get(id); err == nil {
		if ev, done := terminalEvent(job); done {
			s.closeSocket(conn, ev, readerGone, pings)
			return
		}
	} else {
		return
	}

	for {
		select {
		case <-readerGone:
			return
		case <-pings:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type != notify.TypeProgress {
				s.closeSocket(conn, ev, readerGone, pings)
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// closeSocket delivers the terminal event, gives the client a moment to
// trade final frames, then closes cleanly.
func (s *Server) closeSocket(conn *websocket.Conn, ev notify.Event, readerGone <-chan struct{}, pings <-chan struct{}) {
	if err := conn.WriteJSON(ev); err != nil {
		return
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
	// Drain briefly so a ping racing the close still gets its pong.
	select {
	case <-pings:
		conn.WriteMessage(websocket.TextMessage, []byte("pong"))
	case <-readerGone:
	default:
	}
}
