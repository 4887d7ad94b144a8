package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"golang.org/x/crypto/acme/autocert"
)

// Server is an HTTP(S) server bound to its listener at creation,
// so the real address is known before it starts serving.
type Server struct {
	http.Server

	certs    *autocert.Manager
	opts     Options
	listener *Listener
	redirect *Server
	log      *logger.Logger
}

type (
	Mux struct {
		*http.ServeMux
		prefix string
	}
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// NewServeMux makes a mux that prepends the prefix to every route.
func NewServeMux(prefix string) *Mux {
	return &Mux{ServeMux: http.NewServeMux(), prefix: prefix}
}

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(m.prefix+pattern, handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(m.prefix+pattern, handler)
	return m
}

func defaultOptions() Options {
	return Options{
		HttpsRedirect: true,
		CertCache:     "assets/cache",
		IdleTimeout:   120 * time.Second,
		ReadTimeout:   500 * time.Second,
		WriteTimeout:  500 * time.Second,
	}
}

// NewServer opens the listener right away. The handler constructor
// gets the server, so it can wrap the handler with the cert manager.
func NewServer(address string, handler func(*Server) Handler, options ...Option) (*Server, error) {
	opts := defaultOptions()
	opts.override(options...)
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	s := &Server{opts: opts, log: opts.Logger}
	s.IdleTimeout, s.ReadTimeout, s.WriteTimeout = opts.IdleTimeout, opts.ReadTimeout, opts.WriteTimeout
	if opts.Https && opts.IsAutoHttpsCert() {
		s.certs = NewTLSConfig(opts.HttpsDomain, opts.CertCache).CertManager
		s.TLSConfig = s.certs.TLSConfig()
	}
	s.Handler = handler(s)

	if address == "" {
		address = ":" + s.Protocol()
		s.log.Warn().Msgf("no server address, using %v", address)
	}
	ls, err := NewListener(address, opts.PortRoll)
	if err != nil {
		return nil, err
	}
	s.listener = ls
	s.Addr = buildAddress(address, *ls)
	s.log.Info().Msgf("httpx %v (%v)", s.Addr, address)
	return s, nil
}

// Run starts serving in the background, along with the plain HTTP
// redirection server in the HTTPS mode.
func (s *Server) Run() {
	if s.opts.Https && s.opts.HttpsRedirect {
		if rdr, err := s.redirection(); err != nil {
			s.log.Error().Err(err).Msg("no https redirection")
		} else {
			s.redirect = rdr
			rdr.Run()
		}
	}
	go s.serve()
}

func (s *Server) serve() {
	protocol := s.Protocol()
	s.log.Debug().Msgf("%v server is listening on %v", protocol, s.Addr)
	var err error
	if s.opts.Https {
		err = s.ServeTLS(*s.listener, s.opts.HttpsCert, s.opts.HttpsKey)
	} else {
		err = s.Serve(*s.listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.log.Debug().Msgf("%v server is closed", protocol)
		return
	}
	s.log.Error().Err(err).Msgf("%v server", protocol)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.redirect != nil {
		_ = s.redirect.Shutdown(ctx)
	}
	return s.Server.Shutdown(ctx)
}

func (s *Server) Protocol() string {
	if s.opts.Https {
		return "https"
	}
	return "http"
}

func (s *Server) redirection() (*Server, error) {
	host := s.Addr
	if s.opts.HttpsDomain != "" {
		host = buildAddress(s.opts.HttpsDomain, *s.listener)
	}
	s.log.Info().Str("to", host).Msg("https redirection")
	return NewServer(s.opts.HttpsRedirectAddress, func(*Server) Handler {
		h := redirectTo(host, s.log)
		if s.certs != nil {
			// ACME http-01 challenges come over plain HTTP
			return s.certs.HTTPHandler(h)
		}
		return h
	}, WithLogger(s.log))
}

// redirectTo sends every request to the same path on the HTTPS host.
func redirectTo(host string, log *logger.Logger) Handler {
	return HandlerFunc(func(w ResponseWriter, r *Request) {
		to := url.URL{Scheme: "https", Host: host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
		log.Debug().Str("from", r.Host+r.URL.String()).Str("to", to.String()).Msg("redirect")
		http.Redirect(w, r, to.String(), http.StatusFound)
	})
}
