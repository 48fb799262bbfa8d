package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultObserverPort is the default port for the WebSocket observer.
	DefaultObserverPort = 8137

	// EventsEndpoint is the path for WebSocket connections.
	EventsEndpoint = "/events"

	// HealthEndpoint is the path for health checks.
	HealthEndpoint = "/health"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// ObserverConfig configures the WebSocket observer.
type ObserverConfig struct {
	Port          int
	ReplayHistory bool
	HistoryCount  int
}

// DefaultObserverConfig returns the default observer configuration.
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		Port:          DefaultObserverPort,
		ReplayHistory: true,
		HistoryCount:  50,
	}
}

// Observer exposes bus events to external renderer and monitor clients over
// WebSocket. It subscribes to all bus events and forwards them as JSON, one
// event per message. This is the interface boundary for the rendering layer;
// the engine itself does no rendering.
type Observer struct {
	bus *Bus
	cfg ObserverConfig

	server *http.Server
	subID  SubscriptionID

	clients   map[*observerClient]bool
	clientsMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

type observerClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewObserver creates an observer attached to the given bus.
func NewObserver(b *Bus, cfg ObserverConfig) *Observer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Observer{
		bus:     b,
		cfg:     cfg,
		clients: make(map[*observerClient]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins serving WebSocket clients.
func (o *Observer) Start() error {
	o.runMu.Lock()
	if o.running {
		o.runMu.Unlock()
		return fmt.Errorf("observer already running")
	}
	o.running = true
	o.runMu.Unlock()

	o.subID = o.bus.Subscribe("", o.forward)

	mux := http.NewServeMux()
	mux.HandleFunc(EventsEndpoint, o.handleEvents)
	mux.HandleFunc(HealthEndpoint, o.handleHealth)

	o.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", o.cfg.Port),
		Handler: mux,
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		log.Info().Int("port", o.cfg.Port).Msg("playback observer listening")
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("observer server error")
		}
	}()

	return nil
}

// Stop disconnects all clients and shuts the server down.
func (o *Observer) Stop() error {
	o.runMu.Lock()
	if !o.running {
		o.runMu.Unlock()
		return nil
	}
	o.running = false
	o.runMu.Unlock()

	o.cancel()
	_ = o.bus.Unsubscribe(o.subID)

	o.clientsMu.Lock()
	for client := range o.clients {
		close(client.send)
		delete(o.clients, client)
	}
	o.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}

	o.wg.Wait()
	return nil
}

// forward serializes a bus event and queues it for every connected client.
func (o *Observer) forward(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("marshal event")
		return
	}

	o.clientsMu.Lock()
	defer o.clientsMu.Unlock()
	for client := range o.clients {
		select {
		case client.send <- payload:
		default:
			// Slow client; drop the event rather than stall the bus.
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (o *Observer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &observerClient{conn: conn, send: make(chan []byte, 256)}

	if o.cfg.ReplayHistory {
		for _, event := range o.bus.History(o.cfg.HistoryCount) {
			if payload, err := json.Marshal(event); err == nil {
				client.send <- payload
			}
		}
	}

	o.clientsMu.Lock()
	o.clients[client] = true
	o.clientsMu.Unlock()

	o.wg.Add(2)
	go o.writePump(client)
	go o.readPump(client)
}

func (o *Observer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	o.clientsMu.Lock()
	n := len(o.clients)
	o.clientsMu.Unlock()
	fmt.Fprintf(w, `{"status":"ok","clients":%d}`, n)
}

// writePump pushes queued events and keepalive pings to one client.
func (o *Observer) writePump(client *observerClient) {
	defer o.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-o.ctx.Done():
			return
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (o *Observer) readPump(client *observerClient) {
	defer o.wg.Done()
	defer o.dropClient(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (o *Observer) dropClient(client *observerClient) {
	o.clientsMu.Lock()
	defer o.clientsMu.Unlock()
	if _, ok := o.clients[client]; ok {
		delete(o.clients, client)
		close(client.send)
	}
	client.conn.Close()
}
