package config

import (
	"io"
	"os"

	"github.com/kkyr/fig"
	"github.com/spf13/pflag"
)

const EnvPrefix = "PROCTOR"

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom path to the configuration file.
// Reads and puts environment variables with the prefix PROCTOR_.
// Params from the config should be in uppercase separated with _.
func LoadConfig(config any, path string) error {
	dirs := []string{path}
	if path == "" {
		dirs = append(dirs, ".", "configs", "../../configs")
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, home+"/.proctor")
		}
	}
	return fig.Load(config, fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
}

// ConfigPath picks the -c/--conf value from the command line
// without failing on the flags of the service itself.
func ConfigPath(args []string) string {
	fs := pflag.NewFlagSet("conf", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.StringP("conf", "c", "", "")
	_ = fs.Parse(args)
	return *path
}

func confFlag(fs *pflag.FlagSet) {
	fs.StringP("conf", "c", "", "Set custom configuration file path")
}
