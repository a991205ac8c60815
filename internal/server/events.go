package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pulsechat-backend/internal/animation"
	"pulsechat-backend/internal/session"
	"pulsechat-backend/internal/types"
)

const writeTimeout = 5 * time.Second

// handleEvents streams typing, exchange, notification and frame events over a
// websocket. Each connection renders with its own loop at StreamFPS; frames
// the client cannot keep up with are dropped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	opts := &websocket.AcceptOptions{}
	if s.cfg.AllowedOrigin == "*" {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = []string{s.cfg.AllowedOrigin}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("events: accept failed")
		return
	}
	defer conn.CloseNow()

	// The client never sends; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	err = streamSession(ctx, sess, func(ctx context.Context, ev types.Event) error {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, ev)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("session", sess.ID).Msg("events: stream ended")
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// streamSession forwards session events and rendered frames to send until ctx
// is done or the session is evicted.
func streamSession(ctx context.Context, sess *session.Session, send func(context.Context, types.Event) error) error {
	events, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	typing := sess.Typing()
	if err := send(ctx, types.Event{Type: session.EventTyping, Typing: &typing}); err != nil {
		return err
	}

	frames := make(chan animation.Frame, 1)
	loop := sess.NewLoop(func(f animation.Frame) {
		select {
		case frames <- f:
		default:
		}
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return session.ErrNotFound
				}
				if err := send(ctx, ev); err != nil {
					return err
				}
			case f := <-frames:
				if err := send(ctx, types.Event{Type: session.EventFrame, Frame: f}); err != nil {
					return err
				}
			}
		}
	})
	return g.Wait()
}
