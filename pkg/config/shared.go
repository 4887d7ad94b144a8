package config

import (
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

type Monitoring struct {
	Port             int
	URLPrefix        string
	MetricEnabled    bool `json:"metric_enabled"`
	ProfilingEnabled bool `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

func (c *Monitoring) WithFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.MetricEnabled, "monitoring.metric", "m", c.MetricEnabled, "Enable prometheus metric")
	fs.BoolVarP(&c.ProfilingEnabled, "monitoring.pprof", "p", c.ProfilingEnabled, "Enable golang pprof")
	fs.IntVar(&c.Port, "monitoring.port", c.Port, "Monitoring server port")
	fs.StringVar(&c.URLPrefix, "monitoring.prefix", c.URLPrefix, "Monitoring server url prefix")
}

type Server struct {
	Address string
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string
		HttpsCert string
	}
}

func (s *Server) WithFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Address, "address", s.Address, "HTTP server address (host:port)")
	fs.BoolVar(&s.Https, "https", s.Https, "Serve HTTPS")
	fs.StringVar(&s.Tls.Address, "httpsAddress", s.Tls.Address, "HTTPS server address (host:port)")
	fs.StringVar(&s.Tls.HttpsKey, "httpsKey", s.Tls.HttpsKey, "HTTPS key")
	fs.StringVar(&s.Tls.HttpsCert, "httpsCert", s.Tls.HttpsCert, "HTTPS chain")
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

// HubEndpoint is the signaling hub as seen by the agents.
type HubEndpoint struct {
	Address string `default:"localhost:8000"`
	Secure  bool
	Path    string `default:"/ws"`
}

func (h *HubEndpoint) WithFlags(fs *pflag.FlagSet) {
	fs.StringVar(&h.Address, "hub", h.Address, "Signaling hub address (host:port)")
	fs.BoolVar(&h.Secure, "hub.secure", h.Secure, "Connect to the hub over wss")
}

// URL makes the websocket URL of a room.
func (h *HubEndpoint) URL(query url.Values) url.URL {
	scheme := "ws"
	if h.Secure {
		scheme = "wss"
	}
	return url.URL{Scheme: scheme, Host: h.Address, Path: h.Path, RawQuery: query.Encode()}
}

// Reconnect sets how agents retry a lost hub connection.
type Reconnect struct {
	Attempts int           `default:"5"`
	Delay    time.Duration `default:"2s"`
}
