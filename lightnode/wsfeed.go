package lightnode

import (
	"context"
	"log/slog"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"qnetclient/bootstrap"
)

// ChallengeFeed maintains a websocket subscription to a bootstrap endpoint
// and forwards inbound challenges onto the service's challenge channel. It is
// an optional delivery path; the polling fallback keeps working without it.
type ChallengeFeed struct {
	selector *bootstrap.Selector
	nodeID   string
	out      chan<- PingChallenge
	log      *slog.Logger
}

func NewChallengeFeed(selector *bootstrap.Selector, nodeID string, out chan<- PingChallenge, log *slog.Logger) *ChallengeFeed {
	return &ChallengeFeed{selector: selector, nodeID: nodeID, out: out, log: log}
}

// Run dials and reads until the context is cancelled, re-picking an endpoint
// and backing off after each connection failure.
func (f *ChallengeFeed) Run(ctx context.Context) {
	backoff := 2 * time.Second
	const maxBackoff = time.Minute
	for {
		if err := f.stream(ctx); err != nil && f.log != nil {
			f.log.Debug("challenge feed disconnected", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *ChallengeFeed) stream(ctx context.Context) error {
	endpoint := f.selector.Pick()
	conn, _, err := websocket.Dial(ctx, endpoint+"/light-node/ws?node_id="+f.nodeID, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "feed closed")

	for {
		var msg pushMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		if msg.Challenge == "" {
			continue
		}
		challenge := PingChallenge{
			NodeID:   msg.NodeID,
			Nonce:    msg.Challenge,
			IssuedAt: time.Unix(msg.IssuedAt, 0),
		}
		select {
		case f.out <- challenge:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
