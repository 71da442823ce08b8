// Kamikaze
//
// A pass-the-phone drinking game. Each device gets its own table: the
// roster, settings and used-challenge ledger live in that device's storage
// namespace, and every browser tab the device opens talks to the same
// table over a websocket.
//
// Routes:
// - $path              → client page (assigns the device cookie)
// - $path/ws           → websocket driving the device's table
// - $path/api/...      → roster, settings and ledger (see api.go)
// - $path/qr           → PNG QR code pointing at the game

package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/kamikaze/games/kamikaze"
	"github.com/Seednode/kamikaze/storage"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string            `json:"type"`               // "start", "advance", "close_minigame", "close_chaos", "end", "restart", "new_game"
	Players  []kamikaze.Player `json:"players,omitempty"`  // start
	Minigame string            `json:"minigame,omitempty"` // close_minigame
}

// StateMessage carries the whole table after every change.
type StateMessage struct {
	Type    string             `json:"type"` // "state"
	Session *kamikaze.Snapshot `json:"session"`
}

// EffectMessage asks the device to play a sound or vibrate.
type EffectMessage struct {
	Type   string         `json:"type"` // "effect"
	Sound  kamikaze.Sound `json:"sound,omitempty"`
	Haptic []int          `json:"haptic,omitempty"`
}

// SimpleMessage is for generic notifications ("redirect_setup", "error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	deviceID string
}

type action struct {
	client *Client
	msg    ClientMessage
}

type Table struct {
	device  string
	store   storage.Store
	content kamikaze.Content

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	actions  chan action
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
	session    *kamikaze.Session
}

func newTable(device string, store storage.Store, content kamikaze.Content) *Table {
	now := time.Now()
	return &Table{
		device:     device,
		store:      store,
		content:    content,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		actions:    make(chan action),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (t *Table) run(cfg *Config) {
	for {
		select {
		case c := <-t.register:
			t.mu.Lock()
			t.lastActive = time.Now()
			t.clients[c] = true

			// A tab joining mid-game picks up where the others are.
			if t.session != nil {
				t.sendLocked(c, t.stateLocked())
			}
			t.mu.Unlock()

		case c := <-t.unreg:
			t.mu.Lock()
			t.lastActive = time.Now()

			if _, ok := t.clients[c]; ok {
				delete(t.clients, c)
				close(c.send)
			}
			t.mu.Unlock()

		case a := <-t.actions:
			t.handleAction(cfg, a)

		case <-t.done:
			return
		}
	}
}

func (t *Table) stateLocked() StateMessage {
	snap := t.session.Snapshot()
	return StateMessage{Type: "state", Session: &snap}
}

// sendLocked drops a client whose buffer is full instead of blocking the table.
func (t *Table) sendLocked(c *Client, msg any) {
	if _, ok := t.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(t.clients, c)
		close(c.send)
	}
}

func (t *Table) broadcastLocked(msg any) {
	for c := range t.clients {
		t.sendLocked(c, msg)
	}
}

// tableEffects forwards engine effects to every tab of the device.
// Callers hold t.mu.
type tableEffects struct {
	t *Table
}

func (e tableEffects) PlaySound(kind kamikaze.Sound) {
	e.t.broadcastLocked(EffectMessage{Type: "effect", Sound: kind})
}

func (e tableEffects) TriggerHaptic(pattern ...int) {
	e.t.broadcastLocked(EffectMessage{Type: "effect", Haptic: pattern})
}

func (t *Table) handleAction(cfg *Config, a action) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastActive = time.Now()

	if a.msg.Type == "start" {
		t.startLocked(ctx, cfg, a)

		return
	}

	s := t.session
	if s == nil {
		t.sendLocked(a.client, SimpleMessage{Type: "redirect_setup", Message: "no game in progress"})

		return
	}

	fx := kamikaze.SettingsEffects{Inner: tableEffects{t}, Settings: kamikaze.LoadSettings(ctx, t.store)}

	before := s.Cursor()
	changed := false

	switch a.msg.Type {
	case "advance":
		changed = s.Advance(ctx)
	case "close_minigame":
		changed = s.CloseMinigame(kamikaze.Minigame(a.msg.Minigame))
	case "close_chaos":
		changed = s.CloseChaos()
	case "end":
		changed = s.End()
	case "restart":
		changed = s.Restart(ctx)
		if changed {
			logf(cfg, "GAMES: Restarted table %s", t.device)
			// A fresh deal always shows a new challenge, even from cursor 1.
			before = 0
		}
	case "new_game":
		if err := s.NewGame(ctx); err != nil {
			errorf("clearing roster for table %s: %v", t.device, err)
		}
		logf(cfg, "GAMES: Closed table %s, back to setup", t.device)

		t.broadcastLocked(t.stateLocked())
		t.broadcastLocked(SimpleMessage{Type: "redirect_setup", Message: "new game"})
		t.session = nil

		return
	default:
		return
	}

	if !changed {
		return
	}

	fx.TriggerHaptic()
	if s.Cursor() != before {
		fx.PlaySound(kamikaze.SoundWhoosh)
	}

	if s.Completed() && a.msg.Type != "restart" {
		logf(cfg, "GAMES: Table %s finished %d challenges in %ds",
			t.device, s.ChallengesCompleted(), s.ElapsedSeconds())
	}

	t.broadcastLocked(t.stateLocked())
}

func (t *Table) startLocked(ctx context.Context, cfg *Config, a action) {
	// A second tab, or a reload, just gets the current state. A finished
	// game stays on its summary until restart or new_game.
	if t.session != nil && !t.session.Terminated() {
		t.sendLocked(a.client, t.stateLocked())

		return
	}

	// Fewer than two supplied players means "use the saved roster".
	players := a.msg.Players
	if len(players) < kamikaze.MinPlayers {
		players = nil
	} else if err := kamikaze.ValidateRoster(players); err != nil {
		t.sendLocked(a.client, SimpleMessage{Type: "error", Message: err.Error()})

		return
	}

	s, err := kamikaze.New(ctx, kamikaze.Options{
		Players: players,
		Store:   t.store,
		Content: t.content,
		Logf: func(format string, args ...any) {
			logf(cfg, "GAMES: Table "+t.device+": "+format, args...)
		},
	})
	switch {
	case errors.Is(err, kamikaze.ErrNotEnoughPlayers):
		t.sendLocked(a.client, SimpleMessage{Type: "redirect_setup", Message: "add at least two players"})

		return
	case err != nil:
		errorf("starting table %s: %v", t.device, err)
		t.sendLocked(a.client, SimpleMessage{Type: "error", Message: "unable to start game"})

		return
	}

	t.session = s

	logf(cfg, "GAMES: Started table %s with %d players, %d challenges",
		t.device, len(s.Players()), s.Target())

	fx := kamikaze.SettingsEffects{Inner: tableEffects{t}, Settings: kamikaze.LoadSettings(ctx, t.store)}
	fx.PlaySound(kamikaze.SoundWhoosh)

	t.broadcastLocked(t.stateLocked())
}

// closeAll disconnects all clients of this table and stops its loop.
func (t *Table) closeAll() {
	t.once.Do(func() {
		close(t.done)
	})

	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(t.clients, c)
	}
}

func (t *Table) idleSince() (time.Time, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.lastActive, len(t.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const deviceCookieName = "kamikaze_device"

func getOrSetDeviceID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(deviceCookieName); err == nil {
		if err := uuid.Validate(c.Value); err == nil {
			return c.Value
		}
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     deviceCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// TableManager holds one table per device.
type TableManager struct {
	mu          sync.Mutex
	tables      map[string]*Table
	backend     storage.Backend
	content     kamikaze.Content
	idleTimeout time.Duration
	stop        chan struct{}
	once        sync.Once
}

func newTableManager(backend storage.Backend, content kamikaze.Content, idleTimeout time.Duration) *TableManager {
	tm := &TableManager{
		tables:      make(map[string]*Table),
		backend:     backend,
		content:     content,
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go tm.reaperLoop()
	}
	return tm
}

func (tm *TableManager) getTable(cfg *Config, device string) *Table {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if t, ok := tm.tables[device]; ok {
		return t
	}

	t := newTable(device, tm.backend.Namespace(device), tm.content)
	tm.tables[device] = t
	go t.run(cfg)

	logf(cfg, "GAMES: Opened table %s", device)

	return t
}

// store returns the device's namespace without opening a table.
func (tm *TableManager) store(device string) storage.Store {
	return tm.backend.Namespace(device)
}

// reaperLoop periodically removes tables with no open tabs that have been
// idle longer than idleTimeout. The saved roster and ledger survive.
func (tm *TableManager) reaperLoop() {
	ticker := time.NewTicker(tm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tm.reap(time.Now().Add(-tm.idleTimeout))
		case <-tm.stop:
			return
		}
	}
}

func (tm *TableManager) reap(cutoff time.Time) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	reaped := 0
	for id, t := range tm.tables {
		last, clients := t.idleSince()
		if clients == 0 && last.Before(cutoff) {
			delete(tm.tables, id)
			go t.closeAll()
			reaped++
		}
	}

	return reaped
}

// Close stops the reaper and every table.
func (tm *TableManager) Close() {
	tm.once.Do(func() {
		close(tm.stop)
	})

	tm.mu.Lock()
	defer tm.mu.Unlock()

	for id, t := range tm.tables {
		delete(tm.tables, id)
		t.closeAll()
	}
}

func serveWS(cfg *Config, tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		deviceID := getOrSetDeviceID(w, r)

		t := tm.getTable(cfg, deviceID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade error from %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 16),
			deviceID: deviceID,
		}

		select {
		case t.register <- client:
		case <-t.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(t)
	}
}

func (c *Client) readPump(t *Table) {
	defer func() {
		select {
		case t.unreg <- c:
		case <-t.done:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "start", "advance", "close_minigame", "close_chaos", "end", "restart", "new_game":
			select {
			case t.actions <- action{client: c, msg: msg}:
			case <-t.done:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

const pingInterval = 15 * time.Second

// writePump also pings idle sockets so proxies don't drop a table left on
// one challenge for a while.
func (c *Client) writePump() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
				return
			}
		}
	}
}

// QR handler: generates a PNG QR code for the game URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at $path/qr; strip the suffix to get the game URL.
		url := scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func getIndexHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/kamikaze/index.html")
		if err != nil {
			errs <- err
			http.Error(w, "missing client", http.StatusInternalServerError)

			return
		}

		_ = getOrSetDeviceID(w, r)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// registerKamikazeGame sets up routes so that:
//   - $path          → HTML client
//   - $path/ws       → websocket for the device's table
//   - $path/qr       → PNG QR code for the game URL
//   - $path/api/...  → roster, settings and ledger
func registerKamikazeGame(cfg *Config, path string, mux *httprouter.Router, backend storage.Backend, content kamikaze.Content, errs chan<- error) *TableManager {
	tm := newTableManager(backend, content, cfg.sessionTimeout)

	base := cfg.prefix + path

	mux.GET(base, getIndexHandler(cfg, errs))

	mux.GET(base+"/ws", serveWS(cfg, tm))

	mux.GET(base+"/qr", qrHandler(cfg))

	registerKamikazeAPI(cfg, base+"/api", mux, tm, errs)

	return tm
}
