package httpgw

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/kavia-common/collaborative-task-board-139157-139166/domain"
	"github.com/kavia-common/collaborative-task-board-139157-139166/gateway"
)

const maxEventSize = 1 << 20

// Subscribe connects to the realtime stream of one collection. The first
// connection attempt is made synchronously and bounded by ctx; afterwards
// the stream lives until the returned func is called and is re-established
// with exponential backoff when it drops.
//
// The handler runs on the stream goroutine. Calling the returned func from
// inside the handler deadlocks.
func (c *Client) Subscribe(ctx context.Context, collection domain.Collection, parentID string, h gateway.Handler) (gateway.Unsubscribe, error) {
	if !collection.Valid() {
		return nil, &gateway.SubscriptionError{Collection: collection, ParentID: parentID, Err: fmt.Errorf("unknown collection %q", collection)}
	}
	if parentID == "" {
		return nil, &gateway.SubscriptionError{Collection: collection, ParentID: parentID, Err: domain.ErrMissingID}
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	resp, err := c.openStream(streamCtx, collection, parentID)
	stop()
	if err != nil {
		cancel()
		return nil, &gateway.SubscriptionError{Collection: collection, ParentID: parentID, Err: err}
	}

	fields := log.Fields{"collection": collection, "parent": parentID}
	c.logger.WithFields(fields).Debug("realtime stream connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(streamCtx, resp, collection, parentID, h)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
			c.logger.WithFields(fields).Debug("realtime stream closed")
		})
	}, nil
}

func (c *Client) openStream(ctx context.Context, collection domain.Collection, parentID string) (*http.Response, error) {
	path := c.baseURL + "/realtime/" + url.PathEscape(string(collection)) + "/" + url.PathEscape(parentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

func (c *Client) run(ctx context.Context, resp *http.Response, collection domain.Collection, parentID string, h gateway.Handler) {
	fields := log.Fields{"collection": collection, "parent": parentID}
	backoff := c.minBackoff
	for {
		if resp != nil {
			err := c.consume(ctx, resp.Body, h)
			resp.Body.Close()
			resp = nil
			if ctx.Err() != nil {
				return
			}
			c.logger.WithFields(fields).WithError(err).Warn("realtime stream dropped")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		next, err := c.openStream(ctx, collection, parentID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithFields(fields).WithError(err).Warn("realtime reconnect failed")
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}
		c.logger.WithFields(fields).Info("realtime stream reconnected")
		backoff = c.minBackoff
		resp = next
		if c.onReconnect != nil {
			c.onReconnect(collection, parentID)
		}
	}
}

// consume reads SSE frames until the body ends. Comment lines and fields
// other than data are ignored; multi-line data is joined with newlines.
func (c *Client) consume(ctx context.Context, body io.Reader, h gateway.Handler) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Bytes()
		switch {
		case len(line) == 0:
			if data.Len() > 0 {
				c.dispatch(ctx, data.Bytes(), h)
				data.Reset()
			}
		case line[0] == ':':
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimPrefix(bytes.TrimPrefix(line, []byte("data:")), []byte(" ")))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

func (c *Client) dispatch(ctx context.Context, payload []byte, h gateway.Handler) {
	if ctx.Err() != nil {
		return
	}
	var ev domain.Event
	if err := sonic.Unmarshal(payload, &ev); err != nil {
		c.logger.WithError(err).Warn("dropping undecodable realtime event")
		return
	}
	h(ev)
}
