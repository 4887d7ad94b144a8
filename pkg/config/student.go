package config

import "github.com/spf13/pflag"

type StudentConfig struct {
	Student Student
	Webrtc  Webrtc
}

type Student struct {
	Debug     bool
	Name      string
	Id        string
	Room      string
	Hub       HubEndpoint
	Reconnect Reconnect
	Capture   struct {
		// File is an IVF (VP8) file looped as the screen.
		File string
	}
}

func NewStudentConfig(path string) (conf StudentConfig, err error) {
	if err = LoadConfig(&conf, path); err != nil {
		return
	}
	err = conf.Webrtc.Validate()
	return
}

func (c *StudentConfig) WithFlags(fs *pflag.FlagSet) {
	confFlag(fs)
	s := &c.Student
	s.Hub.WithFlags(fs)
	fs.BoolVarP(&s.Debug, "debug", "d", s.Debug, "Debug logging")
	fs.StringVarP(&s.Room, "room", "r", s.Room, "Exam room to join")
	fs.StringVarP(&s.Name, "name", "n", s.Name, "Student display name")
	fs.StringVar(&s.Id, "sid", s.Id, "External student id")
	fs.StringVarP(&s.Capture.File, "capture", "f", s.Capture.File, "IVF file used as the screen")
}
