package examiner

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/giongto35/proctor/pkg/com"
	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/monitoring"
	"github.com/giongto35/proctor/pkg/network"
	"github.com/giongto35/proctor/pkg/network/httpx"
	"github.com/giongto35/proctor/pkg/network/webrtc"
	"github.com/giongto35/proctor/pkg/peer"
	"github.com/giongto35/proctor/pkg/service"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

var errOffline = errors.New("not connected to the hub")

// App is the examiner agent: it keeps the hub connection and
// the peer connections to the sharing students.
type App struct {
	conf     config.ExaminerConfig
	manager  *Manager
	journal  *Journal
	room     atomic.Pointer[Room]
	services service.Group

	cancel context.CancelFunc
	done   chan struct{}
	err    error
	log    *logger.Logger
}

func NewApp(conf config.ExaminerConfig, log *logger.Logger) (*App, error) {
	api, err := webrtc.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		return nil, err
	}
	c := conf.Examiner
	a := &App{conf: conf, journal: NewJournal(c.Journal), done: make(chan struct{}), log: log}
	a.manager = New(a, func(id peer.Id) (peer.Transport, error) { return api.NewInitiator(log.Peer(id.String())) },
		WithRetry(c.Retry.Max, c.Retry.Backoff),
		WithLogger(log),
		WithMetrics(NewMetrics(prometheus.DefaultRegisterer)),
		WithListener(a.journal.Add),
	)

	if c.Dashboard.GetAddr() != "" {
		dashboard := NewDashboard(a.manager, a.journal, a, log)
		srv, err := httpx.NewServer(
			c.Dashboard.GetAddr(),
			func(*httpx.Server) httpx.Handler { return dashboard.Routes(httpx.NewServeMux("")) },
			httpx.WithServerConfig(c.Dashboard),
			httpx.WithPortRoll(true),
			httpx.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		a.services.Add(srv)
	}
	if c.Monitoring.IsEnabled() {
		mon, err := monitoring.New(c.Monitoring, "examiner", prometheus.DefaultGatherer, log)
		if err != nil {
			return nil, err
		}
		a.services.Add(mon)
	}
	return a, nil
}

func (a *App) Start() {
	a.services.Start()
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	c := a.conf.Examiner
	go func() {
		defer close(a.done)
		a.err = com.Keep(ctx,
			network.NewRetry(c.Reconnect.Attempts, c.Reconnect.Delay),
			func(ctx context.Context) (*Room, error) { return Connect(ctx, c, a.log) },
			func(r *Room) { r.HandleRequests(a.manager); a.room.Store(r) },
			a.log,
		)
		a.room.Store(nil)
	}()
}

// Done is closed when the hub connection is given up.
func (a *App) Done() <-chan struct{} { return a.done }

// Err returns why the hub connection has ended.
func (a *App) Err() error { <-a.done; return a.err }

func (a *App) SendSignal(to peer.Id, signal []byte) error {
	r := a.room.Load()
	if r == nil {
		return errOffline
	}
	return r.SendSignal(to, signal)
}

func (a *App) StartExam() error {
	if r := a.room.Load(); r != nil {
		return r.StartExam()
	}
	return errOffline
}

func (a *App) EndExam() error {
	if r := a.room.Load(); r != nil {
		return r.EndExam()
	}
	return errOffline
}

// Me is the examiner id in the current room, empty when offline.
func (a *App) Me() string {
	if r := a.room.Load(); r != nil {
		return r.Me()
	}
	return ""
}

func (a *App) IsExamStarted() bool {
	r := a.room.Load()
	return r != nil && r.IsExamStarted()
}

func (a *App) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	if err := a.manager.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.services.Shutdown(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
