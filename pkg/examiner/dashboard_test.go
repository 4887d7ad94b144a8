package examiner

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/network/httpx"
	"github.com/giongto35/proctor/pkg/peer"
	"github.com/goccy/go-json"
)

type fakeExam struct {
	started, ended int
	err            error
}

func (e *fakeExam) StartExam() error    { e.started++; return e.err }
func (e *fakeExam) EndExam() error      { e.ended++; return e.err }
func (e *fakeExam) IsExamStarted() bool { return e.started > e.ended }
func (e *fakeExam) Me() string          { return "ex" }

func TestFilter(t *testing.T) {
	peers := []peer.Descriptor{
		{Id: "a1", Info: peer.Participant{Name: "Alice", StudentId: "100"}},
		{Id: "b2", Info: peer.Participant{Name: "Bob", StudentId: "200"}},
		{Id: "c3", Info: peer.Participant{Name: "Carol", StudentId: "110"}},
	}
	tests := []struct {
		q    string
		want []peer.Id
	}{
		{q: "", want: []peer.Id{"a1", "b2", "c3"}},
		{q: "alice", want: []peer.Id{"a1"}},
		{q: "10", want: []peer.Id{"a1", "c3"}},
		{q: " B2 ", want: []peer.Id{"b2"}},
		{q: "zed", want: nil},
	}
	for _, test := range tests {
		var got []peer.Id
		for _, p := range Filter(peers, test.q) {
			got = append(got, p.Id)
		}
		if fmt.Sprint(got) != fmt.Sprint(test.want) {
			t.Errorf("%q: expected %v, got %v", test.q, test.want, got)
		}
	}
}

func TestPaginate(t *testing.T) {
	peers := make([]peer.Descriptor, 5)
	tests := []struct {
		page, size, want int
	}{
		{page: 1, size: 2, want: 2},
		{page: 3, size: 2, want: 1},
		{page: 4, size: 2, want: 0},
		{page: 1, size: 10, want: 5},
		{page: 4611686018427387905, size: 2, want: 0},
		{page: 1, size: math.MaxInt, want: 5},
		{page: 2, size: math.MaxInt, want: 0},
		{page: 0, size: 2, want: 0},
	}
	for _, test := range tests {
		p := Paginate(peers, test.page, test.size)
		if len(p.Peers) != test.want || p.Total != 5 {
			t.Errorf("%v/%v: expected %v peers, got %v of %v", test.page, test.size, test.want, len(p.Peers), p.Total)
		}
	}
}

func TestDashboard(t *testing.T) {
	journal := NewJournal(10)
	h := newHarness(t, WithListener(journal.Add))
	exam := &fakeExam{}
	srv := httptest.NewServer(NewDashboard(h.m, journal, exam, logger.Nop()).Routes(httpx.NewServeMux("")))
	defer srv.Close()

	h.start("s1", "s2", "s3")

	get := func(path string, v any) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%v: status %v", path, resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}

	var page struct {
		Examiner string `json:"examiner"`
		Started  bool   `json:"started"`
		Total    int    `json:"total"`
		Peers    []struct {
			Id    string `json:"id"`
			State string `json:"state"`
		} `json:"peers"`
	}
	get("/peers?page=2&size=2", &page)
	if page.Total != 3 || len(page.Peers) != 1 || page.Peers[0].Id != "s3" || page.Peers[0].State != "connecting" {
		t.Errorf("wrong page %+v", page)
	}
	if page.Examiner != "ex" || page.Started {
		t.Errorf("wrong exam state %+v", page)
	}

	var events []struct {
		Kind string `json:"kind"`
		Peer string `json:"peer"`
	}
	get("/events", &events)
	if len(events) != 3 || events[0].Kind != "added" {
		t.Errorf("wrong events %+v", events)
	}

	post := func(path string) int {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "", nil)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		return resp.StatusCode
	}
	if code := post("/exam/start"); code != http.StatusAccepted || exam.started != 1 {
		t.Errorf("exam start: %v %v", code, exam.started)
	}
	get("/peers", &page)
	if !page.Started {
		t.Errorf("expected a started exam")
	}
	exam.err = errors.New("offline")
	if code := post("/exam/end"); code != http.StatusBadGateway || exam.ended != 1 {
		t.Errorf("exam end: %v %v", code, exam.ended)
	}
	if resp, err := http.Get(srv.URL + "/exam/start"); err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("expected GET to be rejected, got %v", resp.StatusCode)
		}
	}
}

type meteredStream struct{ fakeStream }

func (*meteredStream) Codec() string   { return "video/VP8" }
func (*meteredStream) Bytes() uint64   { return 1200 }
func (*meteredStream) Packets() uint64 { return 3 }

func TestPeerView(t *testing.T) {
	tests := []struct {
		name   string
		stream peer.Stream
		want   PeerView
	}{
		{name: "no stream", want: PeerView{}},
		{name: "plain stream", stream: &fakeStream{id: "a"}, want: PeerView{Streaming: true}},
		{name: "metered", stream: &meteredStream{}, want: PeerView{Streaming: true, Codec: "video/VP8", Bytes: 1200, Packets: 3}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := view(peer.Descriptor{Id: "s1", Stream: test.stream})
			if v.Streaming != test.want.Streaming || v.Codec != test.want.Codec ||
				v.Bytes != test.want.Bytes || v.Packets != test.want.Packets {
				t.Errorf("expected %+v, got %+v", test.want, v)
			}
		})
	}
}
