package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	maxMessageSize = 64 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
	sendQueue      = 64
)

var (
	ErrClosed     = errors.New("websocket is closed")
	ErrSlowReader = errors.New("websocket send queue is full")
)

type WS struct {
	conn deadlinedConn
	send chan []byte

	OnMessage MessageHandler

	pingPong bool

	log    *logger.Logger
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}
	Done   chan struct{}
}

type MessageHandler func(message []byte, err error)

type Upgrader struct {
	websocket.Upgrader
}

var DefaultUpgrader = Upgrader{
	Upgrader: websocket.Upgrader{
		ReadBufferSize:  2048,
		WriteBufferSize: 2048,
		WriteBufferPool: &sync.Pool{},
	},
}

// NewUpgrader makes an upgrader that accepts only the given origin.
// An empty origin allows everything.
func NewUpgrader(origin string) *Upgrader {
	u := DefaultUpgrader
	u.CheckOrigin = func(r *http.Request) bool {
		return origin == "" || r.Header.Get("Origin") == origin
	}
	return &u
}

func NewServerWithConn(conn *websocket.Conn, log *logger.Logger) (*WS, error) {
	if conn == nil {
		return nil, errors.New("null connection")
	}
	return newSocket(conn, true, log), nil
}

func NewClient(ctx context.Context, address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, server bool, log *logger.Logger) *WS {
	if log == nil {
		log = logger.Default()
	}
	return &WS{
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, sendQueue),
		pingPong: server,
		log:      log,
		closed:   make(chan struct{}),
		Done:     make(chan struct{}),
	}
}

// Listen starts the read and write pumps.
// The returned channel is closed when both of them are finished.
func (ws *WS) Listen() chan struct{} {
	ws.wg.Add(2)
	go ws.reader()
	go ws.writer()
	go func() {
		ws.wg.Wait()
		close(ws.Done)
	}()
	return ws.Done
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		ws.wg.Done()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		if ws.pingPong {
			_ = conn.SetReadDeadline(time.Now().Add(pongTime))
			conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongTime)) })
		}
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Warn().Err(err).Msg("ws read")
			}
			return
		}
		if ws.OnMessage != nil {
			ws.OnMessage(message, nil)
		}
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Serializes all websocket writes.
func (ws *WS) writer() {
	defer ws.wg.Done()

	var ping <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case message := <-ws.send:
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				ws.log.Warn().Err(err).Msg("ws write")
				ws.Close()
				return
			}
		case <-ping:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				ws.Close()
				return
			}
		case <-ws.closed:
			return
		}
	}
}

// Write queues a message for sending, it never blocks.
// A peer that can't keep up with its queue is disconnected.
func (ws *WS) Write(data []byte) error {
	select {
	case <-ws.closed:
		return ErrClosed
	default:
	}
	select {
	case ws.send <- data:
		return nil
	case <-ws.closed:
		return ErrClosed
	default:
		ws.log.Warn().Msg("ws send queue overflow, closing")
		ws.Close()
		return ErrSlowReader
	}
}

func (ws *WS) Close() {
	ws.once.Do(func() {
		close(ws.closed)
		_ = ws.conn.writeControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = ws.conn.close()
	})
}
