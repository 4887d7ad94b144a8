package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Monitoring struct {
	conf   config.Monitoring
	tag    string
	server *httpx.Server
	log    *logger.Logger
}

// New creates new monitoring service.
// The tag param specifies owner label for logs.
func New(conf config.Monitoring, tag string, gatherer prometheus.Gatherer, log *logger.Logger) (*Monitoring, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	serv, err := httpx.NewServer(
		fmt.Sprintf(":%d", conf.Port),
		func(serv *httpx.Server) httpx.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)
			if conf.ProfilingEnabled {
				log.Info().Msgf("[%v] Profiling is enabled at %v", tag, serv.Addr+conf.URLPrefix+"/debug/pprof")
				h.HandleFunc("/debug/pprof/", pprof.Index)
				h.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
				h.HandleFunc("/debug/pprof/profile", pprof.Profile)
				h.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
				h.HandleFunc("/debug/pprof/trace", pprof.Trace)
			}
			if conf.MetricEnabled {
				log.Info().Msgf("[%v] Prometheus metric is enabled at %v", tag, serv.Addr+conf.URLPrefix+"/metrics")
				h.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
			}
			return h
		},
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return &Monitoring{conf: conf, tag: tag, server: serv, log: log}, nil
}

func (m *Monitoring) Run() {
	m.log.Info().Msgf("[%v] Starting monitoring server at %v", m.tag, m.server.Addr)
	m.server.Run()
}

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Info().Msgf("[%v] Shutting down monitoring server", m.tag)
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
