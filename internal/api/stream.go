package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/myorg/homeiqsim/internal/state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// changeEventWire is the wire form for a state change per spec.md §6.
type changeEventWire struct {
	EventType string              `json:"event_type"`
	Data      changeEventDataWire `json:"data"`
	Origin    string              `json:"origin"`
	TimeFired time.Time           `json:"time_fired"`
}

type changeEventDataWire struct {
	EntityID string  `json:"entity_id"`
	OldState *string `json:"old_state"`
	NewState string  `json:"new_state"`
}

// streamHub upgrades HTTP connections to WebSocket and relays state-store
// change events to each subscribed connection, one goroutine per
// connection, unsubscribing on disconnect.
type streamHub struct {
	store *state.Store
}

func newStreamHub(store *state.Store) *streamHub {
	return &streamHub{store: store}
}

func (h *streamHub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	subscriptionID := uuid.New().String()
	send := make(chan changeEventWire, 64)

	listenerID := h.store.AddListener(func(change state.Change) {
		var old *string
		if change.Old != nil {
			s := change.Old.State
			old = &s
		}
		event := changeEventWire{
			EventType: "state_changed",
			Data: changeEventDataWire{
				EntityID: change.New.EntityID,
				OldState: old,
				NewState: change.New.State,
			},
			Origin:    "LOCAL",
			TimeFired: change.New.LastUpdated,
		}
		select {
		case send <- event:
		default:
			// slow consumer: drop rather than block the writer fan-out
		}
	})

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.store.RemoveListener(listenerID)
			close(send)
			conn.Close()
		})
	}
	defer cleanup()

	// Drain client reads so the connection's close/ping frames are
	// observed; this adapter is write-only otherwise.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cleanup()
				return
			}
		}
	}()

	slog.Info("websocket subscriber connected", "subscription_id", subscriptionID)
	for event := range send {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
