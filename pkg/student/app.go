package student

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/giongto35/proctor/pkg/capture"
	"github.com/giongto35/proctor/pkg/com"
	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network"
	"github.com/giongto35/proctor/pkg/network/webrtc"
	"github.com/giongto35/proctor/pkg/peer"
)

var (
	errOffline = errors.New("not connected to the hub")
	errNoTrack = errors.New("stream has no local track")
)

// App is the student agent. It shares the screen while the exam goes.
type App struct {
	conf    config.StudentConfig
	manager *Manager
	room    atomic.Pointer[Room]

	cancel context.CancelFunc
	done   chan struct{}
	err    error
	log    *logger.Logger
}

func NewApp(conf config.StudentConfig, log *logger.Logger) (*App, error) {
	api, err := webrtc.NewApiFactory(conf.Webrtc, log)
	if err != nil {
		return nil, err
	}
	a := &App{conf: conf, done: make(chan struct{}), log: log}
	a.manager = New(a, func(local peer.Stream) (peer.Transport, error) {
		screen, ok := local.(*capture.Screen)
		if !ok {
			return nil, errNoTrack
		}
		return api.NewResponder(log, screen.Track())
	}, WithLogger(log), WithRestart(webrtc.IsOffer))
	return a, nil
}

func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	c := a.conf.Student
	go func() {
		defer close(a.done)
		a.err = com.Keep(ctx,
			network.NewRetry(c.Reconnect.Attempts, c.Reconnect.Delay),
			func(ctx context.Context) (*Room, error) { return Connect(ctx, c, a.log) },
			func(r *Room) { r.HandleRequests(a); a.room.Store(r) },
			a.log,
		)
		a.room.Store(nil)
	}()
}

func (a *App) Done() <-chan struct{} { return a.done }

func (a *App) Err() error { <-a.done; return a.err }

// HandleExamStart starts the screen capture.
func (a *App) HandleExamStart() {
	a.manager.HandleExamStart()
	screen, err := capture.New(a.conf.Student.Capture.File, a.log)
	if err != nil {
		a.log.Error().Err(err).Msg("no screen")
		return
	}
	screen.Start()
	err = a.manager.StartCapture(screen)
	if err == nil {
		return
	}
	screen.Stop()
	// a rejoined room doesn't know about the capture yet
	if errors.Is(err, ErrCapturing) {
		err = a.StartedSharing()
	}
	if err != nil {
		a.log.Error().Err(err).Msg("couldn't share the screen")
	}
}

func (a *App) HandleExamEnd() { a.manager.HandleExamEnd() }

func (a *App) HandleInboundSignal(from peer.Id, payload []byte) {
	a.manager.HandleInboundSignal(from, payload)
}

// ReportFlag sends a disallowed site access to the examiner.
func (a *App) ReportFlag(site string) error { return a.manager.ReportFlag(site) }

func (a *App) SendSignal(to peer.Id, signal []byte) error {
	if r := a.room.Load(); r != nil {
		return r.SendSignal(to, signal)
	}
	return errOffline
}

func (a *App) StartedSharing() error {
	if r := a.room.Load(); r != nil {
		return r.StartedSharing()
	}
	return errOffline
}

func (a *App) StoppedSharing() error {
	if r := a.room.Load(); r != nil {
		return r.StoppedSharing()
	}
	return errOffline
}

func (a *App) Flag(site string, at time.Time) error {
	if r := a.room.Load(); r != nil {
		return r.Flag(site, at)
	}
	return errOffline
}

func (a *App) Shutdown(context.Context) error {
	if a.cancel != nil {
		a.cancel()
		<-a.done
	}
	a.manager.Close()
	return nil
}
