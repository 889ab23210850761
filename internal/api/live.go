package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/gorilla/websocket"
)

// Feed event types pushed by the backend over /ws.
const (
	EventNewPost = "new_post"
	EventVote    = "vote"
	EventDelete  = "delete"
)

// FeedEvent is one live update to the feed. Post is set for new_post events;
// PostID (and Score for votes) for the rest.
type FeedEvent struct {
	Type   string
	Post   *Post
	PostID int
	Score  int
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LiveFeed subscribes to the backend's broadcast socket and delivers feed
// events until ctx is cancelled or the connection drops. The returned channel
// is closed on exit; the REST client is unaffected by stream failures.
func (c *Client) LiveFeed(ctx context.Context) (<-chan FeedEvent, error) {
	wsURL := strings.Replace(c.base, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	events := make(chan FeedEvent)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(events)
		defer conn.Close()
		for {
			var env wsEnvelope
			if err := conn.ReadJSON(&env); err != nil {
				if ctx.Err() == nil {
					log.Printf("live feed closed: %v", err)
				}
				return
			}
			ev, ok := decodeFeedEvent(env)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}

func decodeFeedEvent(env wsEnvelope) (FeedEvent, bool) {
	switch env.Type {
	case EventNewPost:
		var post Post
		if err := json.Unmarshal(env.Data, &post); err != nil {
			return FeedEvent{}, false
		}
		return FeedEvent{Type: EventNewPost, Post: &post, PostID: post.ID}, true
	case EventVote:
		var data struct {
			ID    int `json:"id"`
			Score int `json:"score"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return FeedEvent{}, false
		}
		return FeedEvent{Type: EventVote, PostID: data.ID, Score: data.Score}, true
	case EventDelete:
		var data struct {
			ID int `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return FeedEvent{}, false
		}
		return FeedEvent{Type: EventDelete, PostID: data.ID}, true
	default:
		return FeedEvent{}, false
	}
}
