package examiner

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network/httpx"
	"github.com/giongto35/proctor/pkg/peer"
	"github.com/goccy/go-json"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Exam controls the room exam state.
type Exam interface {
	StartExam() error
	EndExam() error
	IsExamStarted() bool
	Me() string
}

// Dashboard serves the examiner's view of the room over HTTP.
//
//	GET  /peers?q=&page=&size=
//	GET  /events
//	POST /exam/start
//	POST /exam/end
type Dashboard struct {
	peers   func() []peer.Descriptor
	journal *Journal
	exam    Exam
	log     *logger.Logger
}

type PeersPage struct {
	Examiner string     `json:"examiner,omitempty"`
	Started  bool       `json:"started"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	Size     int        `json:"size"`
	Peers    []PeerView `json:"peers"`
}

// PeerView is a descriptor with the stream counters.
type PeerView struct {
	peer.Descriptor
	Streaming bool   `json:"streaming"`
	Codec     string `json:"codec,omitempty"`
	Bytes     uint64 `json:"bytes,omitempty"`
	Packets   uint64 `json:"packets,omitempty"`
}

type meter interface {
	Codec() string
	Bytes() uint64
	Packets() uint64
}

func view(d peer.Descriptor) PeerView {
	v := PeerView{Descriptor: d, Streaming: d.IsStreaming()}
	if m, ok := d.Stream.(meter); ok {
		v.Codec, v.Bytes, v.Packets = m.Codec(), m.Bytes(), m.Packets()
	}
	return v
}

func NewDashboard(m *Manager, journal *Journal, exam Exam, log *logger.Logger) *Dashboard {
	return &Dashboard{peers: m.Snapshot, journal: journal, exam: exam, log: log}
}

func (d *Dashboard) Routes(mux *httpx.Mux) *httpx.Mux {
	return mux.
		HandleFunc("GET /peers", d.handlePeers).
		HandleFunc("GET /events", d.handleEvents).
		HandleFunc("POST /exam/start", d.handleExam(func() error { return d.exam.StartExam() })).
		HandleFunc("POST /exam/end", d.handleExam(func() error { return d.exam.EndExam() }))
}

func (d *Dashboard) handlePeers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size := positive(q.Get("page"), 1), positive(q.Get("size"), defaultPageSize)
	size = min(size, maxPageSize)
	out := Paginate(Filter(d.peers(), q.Get("q")), page, size)
	out.Examiner, out.Started = d.exam.Me(), d.exam.IsExamStarted()
	d.reply(w, out)
}

func (d *Dashboard) handleEvents(w http.ResponseWriter, _ *http.Request) {
	events := d.journal.List()
	if events == nil {
		events = []Event{}
	}
	d.reply(w, events)
}

func (d *Dashboard) handleExam(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := fn(); err != nil {
			d.log.Error().Err(err).Msg("exam state change")
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func (d *Dashboard) reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.log.Warn().Err(err).Msg("dashboard reply")
	}
}

// Filter keeps peers whose id, name or student id contain the query, ignoring case.
func Filter(peers []peer.Descriptor, query string) []peer.Descriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return peers
	}
	out := make([]peer.Descriptor, 0, len(peers))
	for _, p := range peers {
		if strings.Contains(strings.ToLower(p.Info.Name), query) ||
			strings.Contains(strings.ToLower(p.Info.StudentId), query) ||
			strings.Contains(strings.ToLower(string(p.Id)), query) {
			out = append(out, p)
		}
	}
	return out
}

// Paginate cuts a 1-based page out of peers.
func Paginate(peers []peer.Descriptor, page, size int) PeersPage {
	out := PeersPage{Total: len(peers), Page: page, Size: size, Peers: []PeerView{}}
	if size < 1 || page < 1 {
		return out
	}
	pages := len(peers) / size
	if len(peers)%size != 0 {
		pages++
	}
	if page > pages {
		return out
	}
	from := (page - 1) * size
	for _, p := range peers[from:min(from+size, len(peers))] {
		out.Peers = append(out.Peers, view(p))
	}
	return out
}

func positive(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
