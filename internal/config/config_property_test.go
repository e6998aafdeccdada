//go:build property
// +build property

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var hostMeta = []string{";", "&", "|", "$", "`", "<", ">", " "}

func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("port validity follows range", prop.ForAll(
		func(port int) bool {
			cfg := Default()
			cfg.Server.Port = port
			err := Validate(cfg)
			return (err == nil) == (port >= 0 && port <= 65535)
		},
		gen.IntRange(-1000, 70000),
	))

	properties.Property("hosts with shell metacharacters are rejected", prop.ForAll(
		func(prefix string, i int) bool {
			cfg := Default()
			cfg.Server.Host = prefix + hostMeta[i]
			return Validate(cfg) != nil
		},
		gen.AlphaString(),
		gen.IntRange(0, len(hostMeta)-1),
	))

	properties.Property("sources inside the output directory are rejected", prop.ForAll(
		func(dir string) bool {
			if dir == "" {
				return true
			}
			cfg := Default()
			cfg.Paths.Output = dir
			cfg.HTML.Src = []string{dir + "/*.html"}
			err := Validate(cfg)
			return err != nil && strings.Contains(err.Error(), "inside output directory")
		},
		gen.Identifier(),
	))

	properties.Property("negative debounce is rejected", prop.ForAll(
		func(d int64) bool {
			cfg := Default()
			cfg.Watch.Debounce = -1 - time.Duration(d)
			return Validate(cfg) != nil
		},
		gen.Int64Range(0, 1<<40),
	))

	properties.TestingRun(t)
}
