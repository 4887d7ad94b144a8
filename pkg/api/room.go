package api

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleExaminer Role = "examiner"
	RoleStudent  Role = "student"
)

func (r Role) IsValid() bool { return r == RoleExaminer || r == RoleStudent }

type (
	// Student is a roster entry.
	Student struct {
		Id        string    `json:"id"` // channel peer id
		Name      string    `json:"name"`
		StudentId string    `json:"sid"`
		JoinedAt  time.Time `json:"joined_at"`
		Sharing   bool      `json:"sharing,omitempty"`
	}
	JoinedResponse struct {
		Id      string `json:"id"`
		Room    string `json:"room"`
		Role    Role   `json:"role"`
		Started bool   `json:"started"`
	}
	CurrentStudentsResponse = []Student
	StudentJoinedResponse   = Student
	StudentLeftResponse     struct {
		Id        string `json:"id"`
		StudentId string `json:"sid"`
		Name      string `json:"name"`
	}
	SharingRequest struct {
		Id        string `json:"id,omitempty"` // filled by the hub
		StudentId string `json:"sid"`
	}
	SignalRequest struct {
		To     string          `json:"to"`
		Signal json.RawMessage `json:"signal"`
	}
	SignalResponse struct {
		From   string          `json:"from"`
		Signal json.RawMessage `json:"signal"`
	}
	FlagRequest struct {
		Id   string    `json:"id,omitempty"` // filled by the hub
		Site string    `json:"site"`
		At   time.Time `json:"at"`
	}
	ErrorResponse struct {
		Error string `json:"error"`
	}
)
