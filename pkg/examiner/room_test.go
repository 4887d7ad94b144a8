package examiner

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/giongto35/proctor/pkg/api"
	"github.com/giongto35/proctor/pkg/logger"
	"github.com/giongto35/proctor/pkg/peer"
)

func packet(t *testing.T, pt api.PT, payload any) api.In {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return api.In{T: pt, Payload: data}
}

func TestRoomDispatch(t *testing.T) {
	h := newHarness(t)
	r := &Room{log: logger.Nop()}

	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	packets := []api.In{
		packet(t, api.Joined, api.JoinedResponse{Id: "ex", Room: "r1", Role: api.RoleExaminer, Started: true}),
		packet(t, api.CurrentStudents, api.CurrentStudentsResponse{
			{Id: "s1", Name: "Alice", StudentId: "1"},
			{Id: "s2", Name: "Bob", StudentId: "2", Sharing: true},
		}),
		packet(t, api.StudentJoined, api.StudentJoinedResponse{Id: "s3", Name: "Carol", StudentId: "3"}),
		packet(t, api.StartedSharing, api.SharingRequest{Id: "s3", StudentId: "3"}),
		packet(t, api.ReceiveSignal, api.SignalResponse{From: "s3", Signal: json.RawMessage(`{"type":"answer"}`)}),
		packet(t, api.Flag, api.FlagRequest{Id: "s1", Site: "example.com", At: at}),
	}
	for _, p := range packets {
		if err := r.handle(h.m, p); err != nil {
			t.Fatalf("%v: %v", p.T, err)
		}
	}
	h.m.Flush()

	if r.Me() != "ex" || !r.IsExamStarted() {
		t.Errorf("wrong room state %v %v", r.Me(), r.IsExamStarted())
	}
	if h.f.count("s2") != 1 || h.f.count("s3") != 1 || h.f.count("s1") != 0 {
		t.Errorf("wrong transports s1=%v s2=%v s3=%v", h.f.count("s1"), h.f.count("s2"), h.f.count("s3"))
	}
	d, ok := h.get("s3")
	if !ok || d.Info.Name != "Carol" || d.Info.Provisional {
		t.Errorf("wrong s3 info %+v", d.Info)
	}
	if got := h.f.last("s3").applied; len(got) != 1 || string(got[0]) != `{"type":"answer"}` {
		t.Errorf("signal is not applied %q", got)
	}
	if e := h.events.last(); e.Kind != PeerFlagged || e.Info.Name != "Alice" || e.Note != "example.com" || !e.At.Equal(at) {
		t.Errorf("wrong flag event %+v", e)
	}

	for _, p := range []api.In{
		packet(t, api.StoppedSharing, api.SharingRequest{Id: "s2"}),
		packet(t, api.StudentLeft, api.StudentLeftResponse{Id: "s3"}),
		{T: api.ExamEnd},
	} {
		if err := r.handle(h.m, p); err != nil {
			t.Fatalf("%v: %v", p.T, err)
		}
	}
	h.m.Flush()

	if n := len(h.m.Snapshot()); n != 0 {
		t.Errorf("expected no peers, got %v", n)
	}
	if r.IsExamStarted() {
		t.Errorf("exam should be ended")
	}
	if kinds := h.events.kinds("s3"); kinds[len(kinds)-1] != PeerLeft {
		t.Errorf("wrong s3 events %v", kinds)
	}
}

func TestRoomMalformed(t *testing.T) {
	h := newHarness(t)
	r := &Room{log: logger.Nop()}

	for _, p := range []api.In{
		{T: api.StartedSharing},
		{T: api.ReceiveSignal, Payload: json.RawMessage(`[1,2]`)},
	} {
		if err := r.handle(h.m, p); err == nil {
			t.Errorf("%v: expected an error", p.T)
		}
	}
	h.m.Flush()
	if n := len(h.m.Snapshot()); n != 0 {
		t.Errorf("malformed packets changed the table: %v", n)
	}
}

func TestParticipant(t *testing.T) {
	if p := participant("", "7"); !p.Provisional || p.Name != "Student 7" {
		t.Errorf("wrong placeholder %+v", p)
	}
	if p := participant("Ann", "7"); p != (peer.Participant{Name: "Ann", StudentId: "7"}) {
		t.Errorf("wrong participant %+v", p)
	}
}
