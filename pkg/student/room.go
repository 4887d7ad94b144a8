package student

import (
	"context"
	"net/url"
	"time"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/com"
	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
)

// Room is the student's connection to a hub room.
type Room struct {
	*com.Client

	sid string
	log *logger.Logger
}

// Handler receives the room events that matter to a student.
type Handler interface {
	HandleExamStart()
	HandleExamEnd()
	HandleInboundSignal(from peer.Id, payload []byte)
}

func Connect(ctx context.Context, conf config.Student, log *logger.Logger) (*Room, error) {
	address := conf.Hub.URL(url.Values{
		"room": {conf.Room},
		"role": {string(api.RoleStudent)},
		"name": {conf.Name},
		"sid":  {conf.Id},
	})
	log = log.Extend(log.With().Str(logger.RoomField, conf.Room))
	c, err := com.NewConnector().NewClient(ctx, address, log)
	if err != nil {
		return nil, err
	}
	return &Room{Client: c, sid: conf.Id, log: log}, nil
}

func (r *Room) SendSignal(to peer.Id, signal []byte) error {
	return r.Notify(api.SendSignal, api.SignalRequest{To: string(to), Signal: signal})
}

func (r *Room) StartedSharing() error {
	return r.Notify(api.StartedSharing, api.SharingRequest{StudentId: r.sid})
}

func (r *Room) StoppedSharing() error {
	return r.Notify(api.StoppedSharing, api.SharingRequest{StudentId: r.sid})
}

func (r *Room) Flag(site string, at time.Time) error {
	return r.Notify(api.Flag, api.FlagRequest{Site: site, At: at})
}

func (r *Room) HandleRequests(h Handler) {
	r.OnPacket(func(p api.In) {
		if err := r.handle(h, p); err != nil {
			r.log.Error().Err(err).Msgf("malformed packet #%v", p.T)
		}
	})
}

func (r *Room) handle(h Handler, p api.In) error {
	switch p.T {
	case api.Joined:
		dat, err := api.Unwrap[api.JoinedResponse](p.Payload)
		if err != nil {
			return err
		}
		r.log.Info().Str("id", dat.Id).Msgf("joined room %v", dat.Room)
		if dat.Started {
			h.HandleExamStart()
		}
	case api.ExamStart:
		h.HandleExamStart()
	case api.ExamEnd:
		h.HandleExamEnd()
	case api.ReceiveSignal:
		dat, err := api.Unwrap[api.SignalResponse](p.Payload)
		if err != nil {
			return err
		}
		h.HandleInboundSignal(peer.Id(dat.From), dat.Signal)
	case api.ErrRoom:
		dat, err := api.Unwrap[api.ErrorResponse](p.Payload)
		if err != nil {
			return err
		}
		r.log.Error().Msgf("room error: %v", dat.Error)
	default:
		r.log.Warn().Msgf("unhandled packet type %v", p.T)
	}
	return nil
}
