package webd

import (
	"encoding/json"
	"log"
	"log/slog"

	"github.com/olahol/melody"

	"github.com/leantrack/tripd/events"
)

type websocketAction string

var websocketActionStats websocketAction = "stats"
var websocketActionLifecycle websocketAction = "lifecycle"

type broadtrip struct {
	Action  websocketAction `json:"action"`
	Payload any             `json:"payload"`
}

// initMelody sets up the websocket handler.
// Connected clients get every Stats tick and every lifecycle transition,
// as emitted; this is the live UI feed, not the stored data.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		log.Println("[websocket] connected", sess.Request.RemoteAddr)
		// Greet with current status so clients need not wait a tick.
		b, _ := json.Marshal(broadtrip{Action: "status", Payload: s.engine.Status()})
		sess.Write(b)
	})

	// Right now don't care about incoming messages from clients. Drop.
	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		slog.Debug("Websocket message dropped", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		log.Println("[websocket] disconnected", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		log.Println("[websocket] error", e, sess.Request.RemoteAddr)
	})

	statsCh := make(chan events.Stats)
	statsSub := events.StatsFeed.Subscribe(statsCh)
	lifeCh := make(chan events.Lifecycle)
	lifeSub := events.LifecycleFeed.Subscribe(lifeCh)
	go func() {
		defer statsSub.Unsubscribe()
		defer lifeSub.Unsubscribe()
		for {
			select {
			case st := <-statsCh:
				s.broadcast(broadtrip{Action: websocketActionStats, Payload: st})
			case lc := <-lifeCh:
				s.broadcast(broadtrip{Action: websocketActionLifecycle, Payload: lc})
			case err := <-statsSub.Err():
				slog.Error("Failed to subscribe to StatsFeed", "error", err)
				return
			case err := <-lifeSub.Err():
				slog.Error("Failed to subscribe to LifecycleFeed", "error", err)
				return
			}
		}
	}()
}

func (s *WebDaemon) broadcast(b broadtrip) {
	payload, err := json.Marshal(b)
	if err != nil {
		slog.Error("Failed to marshal websocket payload", "error", err)
		return
	}
	if err := s.melodyInstance.Broadcast(payload); err != nil {
		slog.Warn("Failed to broadcast", "action", b.Action, "error", err)
	}
}
