package httpx

import (
	"net"
	"strings"
	"testing"
)

func TestListenerCreation(t *testing.T) {
	tests := []struct {
		addr   string
		port   string
		random bool
		error  bool
	}{
		{addr: ":", random: true},
		{addr: ":0", random: true},
		{addr: "", random: true},
		{addr: "https://garbage.com:99a9a", error: true},
		{addr: "127.0.0.1:38082", port: "38082"},
		{addr: "localhost:abc1", error: true},
	}

	for _, test := range tests {
		ls, err := NewListener(test.addr, false)

		if test.error {
			if err == nil {
				t.Errorf("expected error, but got none")
			}
			continue
		}

		if err != nil {
			t.Errorf("unexpected error %v", err)
			continue
		}

		addr := ls.Addr().(*net.TCPAddr)
		port := ls.GetPort()

		if test.random {
			if port <= 0 {
				t.Errorf("expected a random port, got %v", port)
			}
		} else if !strings.HasSuffix(addr.String(), ":"+test.port) {
			t.Errorf("expected the same port %v != %v", test.port, port)
		}
		_ = ls.Close()
	}
}

func TestFailOnPortInUse(t *testing.T) {
	a, err := NewListener("127.0.0.1:0", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer a.Close()
	addr := a.Addr().String()

	if _, err = NewListener(addr, false); err == nil {
		t.Errorf("expected busy port error, but got none")
	}

	b, err := NewListener(addr, true)
	if err != nil {
		t.Fatalf("expected no port error with roll, but got %v", err)
	}
	defer b.Close()
	if b.GetPort() == a.GetPort() {
		t.Errorf("rolled to the same port")
	}
}
