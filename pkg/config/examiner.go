package config

import (
	"time"

	"github.com/spf13/pflag"
)

type ExaminerConfig struct {
	Examiner Examiner
	Webrtc   Webrtc
}

type Examiner struct {
	Debug bool
	Name  string `default:"examiner"`
	Room  string
	Hub   HubEndpoint
	Retry struct {
		Max     int           `default:"3"`
		Backoff time.Duration `default:"1s"`
	}
	Reconnect  Reconnect
	Dashboard  Server
	Journal    int `default:"200"`
	Monitoring Monitoring
}

func NewExaminerConfig(path string) (conf ExaminerConfig, err error) {
	if err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.Validate()
	return
}

func (c *ExaminerConfig) WithFlags(fs *pflag.FlagSet) {
	confFlag(fs)
	e := &c.Examiner
	e.Hub.WithFlags(fs)
	e.Dashboard.WithFlags(fs)
	e.Monitoring.WithFlags(fs)
	fs.BoolVarP(&e.Debug, "debug", "d", e.Debug, "Debug logging")
	fs.StringVarP(&e.Room, "room", "r", e.Room, "Exam room to supervise")
	fs.StringVarP(&e.Name, "name", "n", e.Name, "Examiner display name")
	fs.IntVar(&e.Retry.Max, "retry.max", e.Retry.Max, "Reconnect attempts per student")
	fs.DurationVar(&e.Retry.Backoff, "retry.backoff", e.Retry.Backoff, "Delay before a reconnect")
}
