package service

import (
	"context"
	"errors"
	"testing"
)

type tService struct {
	name  string
	order *[]string
	err   error
}

func (s *tService) Run()           { *s.order = append(*s.order, "run "+s.name) }
func (s *tService) String() string { return s.name }
func (s *tService) Shutdown(context.Context) error {
	*s.order = append(*s.order, "stop "+s.name)
	return s.err
}

func TestGroup(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	g := Group{}
	g.Add(&tService{name: "a", order: &order}, "not runnable", &tService{name: "b", order: &order, err: boom})
	g.Add(&tService{name: "c", order: &order, err: context.Canceled})

	g.Start()
	err := g.Shutdown(context.Background())

	want := []string{"run a", "run b", "run c", "stop c", "stop b", "stop a"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("got %v, want %v", order, want)
			break
		}
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
