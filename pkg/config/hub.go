package config

import "github.com/spf13/pflag"

type HubConfig struct {
	Hub Hub
}

type Hub struct {
	Debug      bool
	Monitoring Monitoring
	// Origin restricts websocket origins, any if empty.
	Origin string
	Path   string `default:"/ws"`
	Server Server
}

func NewHubConfig(path string) (conf HubConfig, err error) {
	err = LoadConfig(&conf, path)
	return
}

func (c *HubConfig) WithFlags(fs *pflag.FlagSet) {
	confFlag(fs)
	c.Hub.Server.WithFlags(fs)
	c.Hub.Monitoring.WithFlags(fs)
	fs.BoolVarP(&c.Hub.Debug, "debug", "d", c.Hub.Debug, "Debug logging")
	fs.StringVar(&c.Hub.Origin, "origin", c.Hub.Origin, "Allowed websocket origin")
}
