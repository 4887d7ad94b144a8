package examiner

import (
	"context"
	"net/url"
	"sync/atomic"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/com"
	"github.com/giongto35/proctor/pkg/config"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
)

// Room is the examiner's connection to a hub room.
type Room struct {
	*com.Client

	id      atomic.Value
	started atomic.Bool
	log     *logger.Logger
}

func Connect(ctx context.Context, conf config.Examiner, log *logger.Logger) (*Room, error) {
	address := conf.Hub.URL(url.Values{
		"room": {conf.Room},
		"role": {string(api.RoleExaminer)},
		"name": {conf.Name},
	})
	log = log.Extend(log.With().Str(logger.RoomField, conf.Room))
	c, err := com.NewConnector().NewClient(ctx, address, log)
	if err != nil {
		return nil, err
	}
	return &Room{Client: c, log: log}, nil
}

func (r *Room) SendSignal(to peer.Id, signal []byte) error {
	return r.Notify(api.SendSignal, api.SignalRequest{To: string(to), Signal: signal})
}

func (r *Room) StartExam() error { return r.Notify(api.ExamStart, nil) }
func (r *Room) EndExam() error   { return r.Notify(api.ExamEnd, nil) }

// Me returns the id assigned by the hub.
func (r *Room) Me() string {
	if id, ok := r.id.Load().(string); ok {
		return id
	}
	return ""
}

func (r *Room) IsExamStarted() bool { return r.started.Load() }

// HandleRequests routes room packets into the manager.
func (r *Room) HandleRequests(m *Manager) {
	r.OnPacket(func(p api.In) {
		if err := r.handle(m, p); err != nil {
			r.log.Error().Err(err).Msgf("malformed packet #%v", p.T)
		}
	})
}

func (r *Room) handle(m *Manager, p api.In) error {
	switch p.T {
	case api.Joined:
		dat, err := api.Unwrap[api.JoinedResponse](p.Payload)
		if err != nil {
			return err
		}
		r.id.Store(dat.Id)
		r.started.Store(dat.Started)
		r.log.Info().Str("id", dat.Id).Bool("started", dat.Started).Msgf("joined room %v", dat.Room)
	case api.CurrentStudents:
		dat, err := api.Unwrap[api.CurrentStudentsResponse](p.Payload)
		if err != nil {
			return err
		}
		roster := make(map[peer.Id]peer.Participant, len(*dat))
		for _, s := range *dat {
			roster[peer.Id(s.Id)] = participant(s.Name, s.StudentId)
		}
		m.SetRoster(roster)
		for _, s := range *dat {
			if s.Sharing {
				m.HandleStudentStartedSharing(peer.Id(s.Id), s.StudentId)
			}
		}
		r.log.Info().Msgf("%v students in the room", len(*dat))
	case api.StudentJoined:
		dat, err := api.Unwrap[api.StudentJoinedResponse](p.Payload)
		if err != nil {
			return err
		}
		m.AddStudent(peer.Id(dat.Id), participant(dat.Name, dat.StudentId))
		r.log.Info().Str(logger.PeerField, dat.Id).Msgf("%v joined", dat.Name)
	case api.StudentLeft:
		dat, err := api.Unwrap[api.StudentLeftResponse](p.Payload)
		if err != nil {
			return err
		}
		m.HandleStudentLeft(peer.Id(dat.Id))
	case api.StartedSharing:
		dat, err := api.Unwrap[api.SharingRequest](p.Payload)
		if err != nil {
			return err
		}
		m.HandleStudentStartedSharing(peer.Id(dat.Id), dat.StudentId)
	case api.StoppedSharing:
		dat, err := api.Unwrap[api.SharingRequest](p.Payload)
		if err != nil {
			return err
		}
		m.HandleStudentStoppedSharing(peer.Id(dat.Id))
	case api.ReceiveSignal:
		dat, err := api.Unwrap[api.SignalResponse](p.Payload)
		if err != nil {
			return err
		}
		m.HandleInboundSignal(peer.Id(dat.From), dat.Signal)
	case api.Flag:
		dat, err := api.Unwrap[api.FlagRequest](p.Payload)
		if err != nil {
			return err
		}
		m.HandleFlag(peer.Id(dat.Id), dat.Site, dat.At)
	case api.ExamStart:
		r.started.Store(true)
		r.log.Info().Msg("exam started")
	case api.ExamEnd:
		r.started.Store(false)
		r.log.Info().Msg("exam ended")
	case api.ErrRoom:
		dat, err := api.Unwrap[api.ErrorResponse](p.Payload)
		if err != nil {
			return err
		}
		r.log.Error().Msgf("room error: %v", dat.Error)
		if r.Client != nil {
			r.Close()
		}
	default:
		r.log.Warn().Msgf("unhandled packet type %v", p.T)
	}
	return nil
}

func participant(name, studentId string) peer.Participant {
	if name == "" {
		return peer.Placeholder(studentId)
	}
	return peer.Participant{Name: name, StudentId: studentId}
}
