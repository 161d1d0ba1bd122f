package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/diegolsarmond/qchat/pkg/provider/types"
)

// Listen opens the provider's SSE fallback stream and collects events until
// the listen timeout elapses or the stream closes. The timeout is a hard
// bound: the fallback path never listens indefinitely, the poller schedules
// the next listen window instead.
func (c *client) Listen(ctx context.Context, timeout time.Duration) ([]types.StreamEvent, error) {
	listenCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(listenCtx, http.MethodGet, c.config.BaseURL+"/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("X-Subdomain", c.config.Subdomain)

	// The client-wide timeout would cut the stream short; rely on the
	// listen context instead.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: "event stream unavailable"}
	}

	var events []types.StreamEvent
	var eventName string
	var data strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if data.Len() > 0 {
				events = append(events, buildEvent(eventName, data.String()))
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if data.Len() > 0 {
		events = append(events, buildEvent(eventName, data.String()))
	}

	if err := scanner.Err(); err != nil {
		// The deadline firing mid-read is the normal way a listen window
		// ends; everything gathered so far is still valid.
		if listenCtx.Err() == context.DeadlineExceeded {
			return events, nil
		}
		if ctx.Err() != nil {
			return events, ctx.Err()
		}
		return events, fmt.Errorf("event stream read failed: %w", err)
	}

	return events, nil
}

func buildEvent(name, data string) types.StreamEvent {
	ev := types.StreamEvent{Event: name, Data: []byte(data)}
	if name == "" {
		// Some provider deployments omit the event field and put the
		// event name inside the JSON payload.
		var envelope struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(ev.Data, &envelope); err == nil {
			ev.Event = envelope.Event
		}
	}
	return ev
}
