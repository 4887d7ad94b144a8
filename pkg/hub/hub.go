// Package hub relays exam room traffic between the examiner and the students.
//
// The hub knows nothing about media, it only keeps the room membership
// and forwards signaling payloads between members of the same room.
package hub

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/logger"
)

var (
	ErrExaminerExists = errors.New("room already has an examiner")
	ErrNotMember      = errors.New("not a room member")
	ErrNoPeer         = errors.New("no such peer in the room")
	ErrForbidden      = errors.New("not allowed for the role")
)

// Sender delivers packets to a connected member.
// Notify is called under the hub lock and must not block.
type Sender interface {
	Notify(t api.PT, payload any) error
}

type Member struct {
	Id        string
	Role      api.Role
	Name      string
	StudentId string
	JoinedAt  time.Time
	Sharing   bool

	conn Sender
}

func NewMember(id string, role api.Role, name, sid string, conn Sender) *Member {
	return &Member{Id: id, Role: role, Name: name, StudentId: sid, JoinedAt: time.Now(), conn: conn}
}

func (m *Member) String() string { return fmt.Sprintf("%v:%v", m.Role, m.Id) }

func (m *Member) send(t api.PT, payload any, log *logger.Logger) {
	if err := m.conn.Notify(t, payload); err != nil {
		log.Warn().Err(err).Str(logger.PeerField, m.Id).Msgf("couldn't send %v", t)
	}
}

func (m *Member) info() api.Student {
	return api.Student{Id: m.Id, Name: m.Name, StudentId: m.StudentId, JoinedAt: m.JoinedAt, Sharing: m.Sharing}
}

type Room struct {
	Id       string
	examiner *Member
	students []*Member // in join order
	started  bool
}

func (r *Room) isEmpty() bool { return r.examiner == nil && len(r.students) == 0 }

func (r *Room) find(id string) *Member {
	if r.examiner != nil && r.examiner.Id == id {
		return r.examiner
	}
	for _, s := range r.students {
		if s.Id == id {
			return s
		}
	}
	return nil
}

// Hub keeps the rooms.
// Packets are queued under the lock, so that every member sees
// the room events in the same order as the hub.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	metrics *Metrics
	log     *logger.Logger
}

func New(metrics *Metrics, log *logger.Logger) *Hub {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Hub{rooms: make(map[string]*Room), metrics: metrics, log: log}
}

// Join adds the member to the room, the room is created if needed.
func (h *Hub) Join(room string, m *Member) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		r = &Room{Id: room}
	}
	log := h.log.Extend(h.log.With().Str(logger.RoomField, room))

	switch m.Role {
	case api.RoleExaminer:
		if r.examiner != nil {
			return ErrExaminerExists
		}
		r.examiner = m
		m.send(api.Joined, api.JoinedResponse{Id: m.Id, Room: room, Role: m.Role, Started: r.started}, log)
		students := make(api.CurrentStudentsResponse, 0, len(r.students))
		for _, s := range r.students {
			students = append(students, s.info())
		}
		m.send(api.CurrentStudents, students, log)
	case api.RoleStudent:
		r.students = append(r.students, m)
		m.send(api.Joined, api.JoinedResponse{Id: m.Id, Room: room, Role: m.Role, Started: r.started}, log)
		if r.examiner != nil {
			r.examiner.send(api.StudentJoined, m.info(), log)
		}
	default:
		return ErrForbidden
	}
	if !ok {
		h.rooms[room] = r
		h.metrics.Rooms.Set(float64(len(h.rooms)))
	}
	h.metrics.Members.Inc()
	log.Info().Str(logger.RoleField, string(m.Role)).Msgf("%v has joined", m)
	return nil
}

// Leave removes the member, empty rooms are deleted.
func (h *Hub) Leave(room string, m *Member) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok {
		return
	}
	log := h.log.Extend(h.log.With().Str(logger.RoomField, room))
	switch {
	case r.examiner == m:
		r.examiner = nil
	case slices.Contains(r.students, m):
		r.students = slices.DeleteFunc(r.students, func(s *Member) bool { return s == m })
		if r.examiner != nil {
			r.examiner.send(api.StudentLeft, api.StudentLeftResponse{Id: m.Id, StudentId: m.StudentId, Name: m.Name}, log)
		}
	default:
		return
	}
	h.metrics.Members.Dec()
	log.Info().Msgf("%v has left", m)
	if r.isEmpty() {
		delete(h.rooms, room)
		h.metrics.Rooms.Set(float64(len(h.rooms)))
		log.Debug().Msg("room is closed")
	}
}

// Handle processes a packet sent by a room member.
func (h *Hub) Handle(room string, from *Member, p api.In) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[room]
	if !ok || r.find(from.Id) != from {
		return ErrNotMember
	}
	log := h.log.Extend(h.log.With().Str(logger.RoomField, room))

	switch p.T {
	case api.SendSignal:
		dat, err := api.Unwrap[api.SignalRequest](p.Payload)
		if err != nil {
			return err
		}
		to := r.find(dat.To)
		if to == nil || to == from {
			h.metrics.Dropped.Inc()
			return fmt.Errorf("%w: %v", ErrNoPeer, dat.To)
		}
		h.metrics.Signals.Inc()
		to.send(api.ReceiveSignal, api.SignalResponse{From: from.Id, Signal: dat.Signal}, log)
	case api.StartedSharing, api.StoppedSharing:
		if from.Role != api.RoleStudent {
			return ErrForbidden
		}
		dat, err := api.Unwrap[api.SharingRequest](p.Payload)
		if err != nil {
			return err
		}
		from.Sharing = p.T == api.StartedSharing
		if dat.StudentId == "" {
			dat.StudentId = from.StudentId
		}
		dat.Id = from.Id
		if r.examiner != nil {
			r.examiner.send(p.T, dat, log)
		}
	case api.Flag:
		if from.Role != api.RoleStudent {
			return ErrForbidden
		}
		dat, err := api.Unwrap[api.FlagRequest](p.Payload)
		if err != nil {
			return err
		}
		dat.Id = from.Id
		if dat.At.IsZero() {
			dat.At = time.Now()
		}
		h.metrics.Flags.Inc()
		if r.examiner != nil {
			r.examiner.send(api.Flag, dat, log)
		}
	case api.ExamStart, api.ExamEnd:
		if from.Role != api.RoleExaminer {
			return ErrForbidden
		}
		r.started = p.T == api.ExamStart
		for _, s := range r.students {
			s.send(p.T, nil, log)
		}
		from.send(p.T, nil, log)
		log.Info().Msgf("%v", p.T)
	default:
		return fmt.Errorf("%w: %v", api.ErrMalformed, p.T)
	}
	return nil
}

// Rooms returns the number of open rooms.
func (h *Hub) Rooms() int { h.mu.Lock(); defer h.mu.Unlock(); return len(h.rooms) }

// Students returns the students of the room in join order.
func (h *Hub) Students(room string) []api.Student {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[room]
	if !ok {
		return nil
	}
	out := make([]api.Student, 0, len(r.students))
	for _, s := range r.students {
		out = append(out, s.info())
	}
	return out
}
