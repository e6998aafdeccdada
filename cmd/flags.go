package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/assetpipe/internal/config"
)

// serverFlagKeys maps each development server flag to its config key.
var serverFlagKeys = map[string]string{
	"port":    "server.port",
	"host":    "server.host",
	"open":    "server.open",
	"no-open": "server.no-open",
	"ui":      "server.ui",
	"notify":  "server.notify",
}

// addServerFlags declares the flags of commands that start the development
// server. They are bound to viper only when the command runs, so several
// commands can declare them.
func addServerFlags(fs *pflag.FlagSet) {
	d := config.Default().Server
	fs.IntP("port", "p", d.Port, "port to serve on (0 picks a free port)")
	fs.String("host", d.Host, "host to bind to")
	fs.Bool("open", d.Open, "open a browser once the server is listening")
	fs.Bool("no-open", false, "never open a browser, whatever the config says")
	fs.Bool("ui", d.UI, "serve the status page at /__assetpipe/")
	fs.Bool("notify", d.Notify, "show a notice in the browser on every update")
}

// bindServerFlags binds the server flags declared on fs to viper.
func bindServerFlags(fs *pflag.FlagSet) error {
	for name, key := range serverFlagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// choiceValue is a string flag restricted to a fixed set of values.
type choiceValue struct {
	value   *string
	choices []string
}

var _ pflag.Value = (*choiceValue)(nil)

func newChoiceValue(p *string, def string, choices ...string) *choiceValue {
	*p = def
	return &choiceValue{value: p, choices: choices}
}

func (c *choiceValue) String() string { return *c.value }

func (c *choiceValue) Set(s string) error {
	for _, choice := range c.choices {
		if s == choice {
			*c.value = s
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(c.choices, ", "))
}

func (c *choiceValue) Type() string { return "string" }

// addFormatFlag declares --<name> restricted to choices.
func addFormatFlag(fs *pflag.FlagSet, p *string, name, shorthand, def string, choices ...string) {
	fs.VarP(newChoiceValue(p, def, choices...), name, shorthand,
		fmt.Sprintf("output format (%s)", strings.Join(choices, "|")))
}
