package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/com"
	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/monitoring"
	"github.com/giongto35/proctor/pkg/network/httpx"
	"github.com/giongto35/proctor/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
)

// how long a rejected connection is kept to deliver the error
const rejectWait = time.Second

// Handler upgrades room connections.
//
//	/ws?room=math-101&role=student&name=Alice&sid=42
func (h *Hub) Handler(connector *com.Connector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		room, role := q.Get("room"), api.Role(q.Get("role"))
		if room == "" || !role.IsValid() {
			http.Error(w, "no room or a bad role", http.StatusBadRequest)
			return
		}
		conn, err := connector.NewServer(w, r, h.log)
		if err != nil {
			h.log.Error().Err(err).Msg("websocket upgrade")
			return
		}
		m := NewMember(conn.Id().String(), role, q.Get("name"), q.Get("sid"), conn)

		if err := h.Join(room, m); err != nil {
			h.log.Warn().Err(err).Str(logger.RoomField, room).Msgf("%v rejected", m)
			done := conn.Listen()
			_ = conn.Notify(api.ErrRoom, api.ErrorResponse{Error: err.Error()})
			select {
			case <-done:
			case <-time.After(rejectWait):
				conn.Close()
				<-done
			}
			return
		}
		conn.OnPacket(func(p api.In) {
			if err := h.Handle(room, m, p); err != nil {
				h.log.Warn().Err(err).Str(logger.RoomField, room).Msgf("%v from %v", p.T, m)
			}
		})
		<-conn.Listen()
		h.Leave(room, m)
	}
}

// Server is the hub service.
type Server struct {
	hub      *Hub
	services service.Group
	log      *logger.Logger
}

func NewServer(conf config.HubConfig, log *logger.Logger) (*Server, error) {
	c := conf.Hub
	hub := New(NewMetrics(prometheus.DefaultRegisterer), log)
	connector := com.NewConnector(com.WithOrigin(c.Origin))

	srv, err := httpx.NewServer(
		c.Server.GetAddr(),
		func(*httpx.Server) httpx.Handler {
			return httpx.NewServeMux("").HandleFunc(c.Path, hub.Handler(connector))
		},
		httpx.WithServerConfig(c.Server),
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	s := &Server{hub: hub, log: log}
	s.services.Add(srv)
	if c.Monitoring.IsEnabled() {
		mon, err := monitoring.New(c.Monitoring, "hub", prometheus.DefaultGatherer, log)
		if err != nil {
			return nil, err
		}
		s.services.Add(mon)
	}
	return s, nil
}

func (s *Server) Start() { s.services.Start() }

func (s *Server) Shutdown(ctx context.Context) error { return s.services.Shutdown(ctx) }
