package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rl1809/jersey-pos/internal/core/broadcast"
	"github.com/rl1809/jersey-pos/internal/core/domain"
	"github.com/rl1809/jersey-pos/internal/logger"
)

var knownTopics = map[domain.Topic]struct{}{
	domain.TopicSale:    {},
	domain.TopicStock:   {},
	domain.TopicVariant: {},
	domain.TopicJersey:  {},
	domain.TopicCoupon:  {},
}

// parseTopics reads a comma separated topic list. Empty means every topic.
func parseTopics(raw string) ([]domain.Topic, error) {
	var topics []domain.Topic
	for _, part := range strings.Split(raw, ",") {
		t := domain.Topic(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if _, ok := knownTopics[t]; !ok {
			return nil, fmt.Errorf("%w: unknown topic %q", domain.ErrInvalidInput, t)
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// StreamEvents serves committed batches as server-sent events. The client is
// expected to subscribe before fetching its snapshot.
func (h *HTTPHandler) StreamEvents(c *gin.Context) {
	topics, err := parseTopics(c.Query("topics"))
	if err != nil {
		writeError(c, err)
		return
	}

	sub := h.hub.Subscribe(topics...)
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent("ready", gin.H{"subscription": sub.ID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": keepalive\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case batch, ok := <-sub.C():
			if !ok {
				if errors.Is(sub.Err(), broadcast.ErrSlowSubscriber) {
					logger.Warnw("sse_subscriber_evicted", "subscription", sub.ID)
					c.SSEvent("error", gin.H{"error": sub.Err().Error()})
					c.Writer.Flush()
				}
				return
			}
			for _, ev := range batch {
				c.SSEvent(string(ev.Kind), ev)
			}
			c.Writer.Flush()
		}
	}
}
