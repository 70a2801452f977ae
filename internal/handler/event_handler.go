package handler

import (
	"io"
	"strings"
	"time"

	"taskflow/internal/logging"
	"taskflow/internal/model"
	"taskflow/internal/policy"
	"taskflow/internal/realtime"

	"github.com/gin-gonic/gin"
)

type EventSource interface {
	Subscribe(table string, fn realtime.Handler) *realtime.Subscription
}

type EventHandler struct {
	source    EventSource
	heartbeat time.Duration
	done      <-chan struct{}
}

// NewEventHandler streams events from source. Closing done ends every open
// stream; a nil channel never does.
func NewEventHandler(source EventSource, heartbeat time.Duration, done <-chan struct{}) *EventHandler {
	return &EventHandler{source: source, heartbeat: heartbeat, done: done}
}

var streamTables = map[string]bool{
	realtime.TableTasks:    true,
	realtime.TableProjects: true,
	realtime.TableMembers:  true,
}

// Stream godoc
// @Summary  Server-sent change events for rows the caller may see
// @Tags     Events
// @Produce  text/event-stream
// @Security BearerAuth
// @Param    table query string false "Comma separated: tasks, projects, members"
// @Success  200
// @Router   /events [get]
func (h *EventHandler) Stream(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		return
	}

	tables := []string{realtime.TableTasks, realtime.TableProjects, realtime.TableMembers}
	if raw := c.Query("table"); raw != "" {
		tables = tables[:0]
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if !streamTables[t] {
				badRequest(c, "Unknown table "+t)
				return
			}
			tables = append(tables, t)
		}
	}

	events := make(chan realtime.Event, 64)
	for _, table := range tables {
		sub := h.source.Subscribe(table, func(ev realtime.Event) {
			if !canSee(p, ev) {
				return
			}
			select {
			case events <- ev:
			default:
				logging.Logger.WithField("user_id", p.ID).Warn("Event stream is full, dropping event")
			}
		})
		defer sub.Unsubscribe()
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-h.done:
			return false
		case ev := <-events:
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

func canSee(p model.Principal, ev realtime.Event) bool {
	if ev.AdminOnly && !p.IsSystemAdmin() {
		return false
	}
	return policy.CanAccess(p, ev.CompanyID, ev.OwnerID)
}
