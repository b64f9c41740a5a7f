package com

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/syncpad/syncpad/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

// WS wraps a gorilla websocket connection with
// the read and write pumps, which serialize all socket I/O.
type WS struct {
	id   Uid
	conn *websocket.Conn
	send chan []byte
	log  *logger.Logger

	// OnMessage receives every read message or a read error.
	OnMessage func(message []byte, err error)

	// server side keeps the connection alive with pings
	pingPong bool

	mu       sync.Mutex
	closed   bool
	shutdown sync.WaitGroup
	Done     chan struct{}
}

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader restricts connections to the given origin, any when empty.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	if origin != "" {
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	} else {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return &u
}

// NewServer upgrades an incoming HTTP request to a websocket connection.
func NewServer(w http.ResponseWriter, r *http.Request, up *Upgrader, log *logger.Logger) (*WS, error) {
	if up == nil {
		up = &DefaultUpgrader
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

// NewClient connects to a remote websocket server.
func NewClient(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	return &WS{
		id:       NewUid(),
		conn:     conn,
		send:     make(chan []byte, 64),
		pingPong: pingPong,
		log:      log,
		Done:     make(chan struct{}),
	}
}

// Listen starts the socket pumps. Set OnMessage before calling it or
// early messages get lost.
func (ws *WS) Listen() {
	ws.shutdown.Add(2)
	go ws.writer()
	go ws.reader()
	go func() {
		ws.shutdown.Wait()
		_ = ws.conn.Close()
		close(ws.Done)
	}()
}

func (ws *WS) Id() Uid { return ws.id }

// Write queues a text message. Messages to a closed or
// congested connection are dropped, the send never blocks.
func (ws *WS) Write(data []byte) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	select {
	case ws.send <- data:
	default:
		ws.log.Warn().Str("cid", ws.id.Short()).Msg("ws send queue overflow, message dropped")
	}
}

func (ws *WS) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	ws.closed = true
	close(ws.send)
}

// reader pumps messages from the websocket connection to the OnMessage callback.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.shutdown.Done()
		ws.log.Debug().Str("cid", ws.id.Short()).Msg("ws reader closed")
	}()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error {
			return ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		})
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Str("cid", ws.id.Short()).Msg("ws read")
			}
			if ws.OnMessage != nil {
				ws.OnMessage(nil, err)
			}
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
func (ws *WS) writer() {
	var ticker *time.Ticker
	var ping <-chan time.Time
	if ws.pingPong {
		ticker = time.NewTicker(pingTime)
		ping = ticker.C
	}
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
		ws.shutdown.Done()
		ws.log.Debug().Str("cid", ws.id.Short()).Msg("ws writer closed")
	}()
	for {
		select {
		case message, ok := <-ws.send:
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping:
			_ = ws.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
