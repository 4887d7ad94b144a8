package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

const testConf = `
examiner:
  room: math
  hub:
    address: hub.local:9000
webrtc:
  iceServers:
    - urls: stun:stun.l.google.com:19302
    - urls: turn:turn.local:3478
      username: u
      credential: p
`

func writeConf(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestExaminerDefaults(t *testing.T) {
	conf, err := NewExaminerConfig(writeConf(t, testConf))
	if err != nil {
		t.Fatal(err)
	}

	e := conf.Examiner
	if e.Retry.Max != 3 || e.Retry.Backoff != time.Second {
		t.Errorf("retry defaults %+v", e.Retry)
	}
	if e.Room != "math" || e.Hub.Address != "hub.local:9000" || e.Hub.Path != "/ws" {
		t.Errorf("unexpected examiner conf %+v", e)
	}
	if len(conf.Webrtc.IceServers) != 2 {
		t.Errorf("ice servers %v", conf.Webrtc.IceServers)
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("PROCTOR_EXAMINER_RETRY_MAX", "5")
	t.Setenv("PROCTOR_EXAMINER_ROOM", "physics")

	conf, err := NewExaminerConfig(writeConf(t, testConf))
	if err != nil {
		t.Fatal(err)
	}
	if conf.Examiner.Retry.Max != 5 {
		t.Errorf("%v is not 5", conf.Examiner.Retry.Max)
	}
	if conf.Examiner.Room != "physics" {
		t.Errorf("%v is not physics", conf.Examiner.Room)
	}
}

func TestTurnCredentials(t *testing.T) {
	tests := []struct {
		name    string
		servers []IceServer
		wantErr bool
	}{
		{name: "stun", servers: []IceServer{{Urls: "stun:a:3478"}}},
		{name: "turn", servers: []IceServer{{Urls: "turn:a:3478", Username: "u", Credential: "p"}}},
		{name: "turn without credential", servers: []IceServer{{Urls: "turns:a:5349", Username: "u"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Webrtc{IceServers: tt.servers}
			if err := w.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlagsOverride(t *testing.T) {
	args := []string{"--conf", writeConf(t, testConf), "-r", "chemistry", "--retry.backoff", "3s"}

	conf, err := NewExaminerConfig(ConfigPath(args))
	if err != nil {
		t.Fatal(err)
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	conf.WithFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}

	if conf.Examiner.Room != "chemistry" {
		t.Errorf("room %v", conf.Examiner.Room)
	}
	if conf.Examiner.Retry.Backoff != 3*time.Second {
		t.Errorf("backoff %v", conf.Examiner.Retry.Backoff)
	}
	if conf.Examiner.Hub.Address != "hub.local:9000" {
		t.Errorf("file values should stay, got %v", conf.Examiner.Hub.Address)
	}
}

func TestHubEndpointURL(t *testing.T) {
	h := HubEndpoint{Address: "a:1", Secure: true, Path: "/ws"}
	u := h.URL(map[string][]string{"room": {"r"}})
	if got := u.String(); got != "wss://a:1/ws?room=r" {
		t.Errorf("got %v", got)
	}
}
