// Package capture provides the student's local screen stream.
//
// The screen is a VP8 track fed from an IVF file at the file's frame rate
// and looped. Without a file the track exists but stays silent.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
)

const defaultFrameTime = time.Second / 30

var ErrCodec = errors.New("not a VP8 file")

type Screen struct {
	track *webrtc.TrackLocalStaticSample
	file  string
	log   *logger.Logger

	frames atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New makes a screen stream, the file is checked but not played until Start.
func New(file string, log *logger.Logger) (*Screen, error) {
	if file != "" {
		if _, err := probe(file); err != nil {
			return nil, err
		}
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screen")
	if err != nil {
		return nil, err
	}
	return &Screen{track: track, file: file, log: log, done: make(chan struct{})}, nil
}

func (s *Screen) Id() string { return s.track.StreamID() }

func (s *Screen) Track() webrtc.TrackLocal { return s.track }

// Frames is the number of frames written so far.
func (s *Screen) Frames() uint64 { return s.frames.Load() }

// Start begins feeding the track in the background.
func (s *Screen) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.file == "" {
		close(s.done)
		return
	}
	go s.run(ctx)
}

// Stop stops the feeder and waits for it.
func (s *Screen) Stop() {
	s.once.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		<-s.done
		s.log.Debug().Uint64("frames", s.Frames()).Msg("screen stopped")
	})
}

func (s *Screen) run(ctx context.Context) {
	defer close(s.done)
	for {
		if err := s.play(ctx); err != nil {
			if ctx.Err() == nil {
				s.log.Error().Err(err).Str("file", s.file).Msg("screen")
			}
			return
		}
	}
}

// play writes the file to the track once.
func (s *Screen) play(ctx context.Context) error {
	f, err := os.Open(s.file)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	reader, header, err := ivfreader.NewWith(f)
	if err != nil {
		return err
	}
	frameTime := frameDuration(header)
	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	for {
		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err = s.track.WriteSample(media.Sample{Data: frame, Duration: frameTime}); err != nil {
			return err
		}
		s.frames.Add(1)
	}
}

func probe(file string) (*ivfreader.IVFFileHeader, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	_, header, err := ivfreader.NewWith(f)
	if err != nil {
		return nil, err
	}
	if header.FourCC != "VP80" {
		return nil, fmt.Errorf("%w: %v", ErrCodec, header.FourCC)
	}
	return header, nil
}

func frameDuration(h *ivfreader.IVFFileHeader) time.Duration {
	if h.TimebaseDenominator == 0 || h.TimebaseNumerator == 0 {
		return defaultFrameTime
	}
	return time.Duration(h.TimebaseNumerator) * time.Second / time.Duration(h.TimebaseDenominator)
}
