package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
)

// streamEvents relays the events of one collection and parent as SSE. The
// subscription is confirmed before the ":ok" preamble, so a client that saw
// the preamble misses no later event.
func (s *server) streamEvents(c echo.Context) error {
	collection := domain.Collection(c.Param("collection"))
	if !collection.Valid() {
		return c.String(http.StatusNotFound, "unknown collection")
	}
	parentID := c.Param("parentId")
	if parentID == "" {
		return c.String(http.StatusBadRequest, "parent id is required")
	}

	ctx := c.Request().Context()
	sub, err := s.sub.Subscribe(ctx, collection, parentID)
	if err != nil {
		s.logger.WithError(err).WithField("collection", collection).Error("open realtime subscription")
		return c.String(http.StatusServiceUnavailable, "realtime unavailable")
	}
	defer sub.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write([]byte(":ok\n\n")); err != nil {
		return nil
	}
	flusher.Flush()

	entry := s.logger.WithFields(log.Fields{"collection": collection, "parent": parentID, "subject": subjectFrom(c)})
	entry.Debug("realtime stream opened")
	defer entry.Debug("realtime stream closed")

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()
	messages := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := res.Write([]byte(": keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if _, err := res.Write([]byte("data: " + msg.Payload + "\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}
