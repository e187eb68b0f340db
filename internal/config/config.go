/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package config wires the harmonizer's tunables to cobra flags and a
// viper-backed configuration file, the same Cfg-wrapper pattern the
// teacher's inmaputil/cmd.go uses for its own, much larger command tree.
package config

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds the resolved configuration for one harmonize invocation. It
// embeds *viper.Viper so flag/env/file precedence is handled the way the
// teacher's Cfg does, rather than reimplementing that resolution order.
type Cfg struct {
	*viper.Viper
	Root *cobra.Command
}

type option struct {
	name, usage string
	defaultVal  interface{}
}

var options = []option{
	{"CoarseShapefile", "path to the coarse partition shapefile", ""},
	{"DetailedShapefile", "path to the detailed partition shapefile", ""},
	{"OutputShapefile", "path to write the harmonized detailed shapefile", "harmonized.shp"},
	{"CompactnessThreshold", "minimum compactness (area / bounding-circle area) below which a fragment is a mergeable sliver", 0.05},
	{"DetailedAreaThreshold", "maximum fraction of its named detailed parent's area below which a fragment is mergeable", 0.1},
	{"CoarseAreaThreshold", "maximum fraction of its coarse parent's area below which a fragment is mergeable", 0.1},
	{"MergeStrategy", "merger variant to use: 'neighbor' (default) or 'base'", "neighbor"},
	{"MaxIterations", "maximum collapse-loop iterations per coarse parent", 5},
	{"LogLevel", "logrus log level (debug, info, warn, error)", "info"},
}

// New builds a Cfg with every harmonize flag registered on the root
// command's persistent flag set and viper bound to read them back, along with environment variables
// prefixed GEOFUSE_ and an optional --config file.
func New() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "harmonize",
		Short: "Harmonize a detailed polygon layer against a coarse partition.",
		Long: `harmonize overlays a detailed administrative layer onto a coarse
partition, merges fragments that don't carry a reliable detailed identity
into their neighbors, repairs the resulting topology, and writes out a
detailed layer that exactly tiles the coarse partition.`,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bind(cfg)
		},
	}

	flags := cfg.Root.PersistentFlags()
	registerFlags(flags)
	cfg.Root.PersistentFlags().String("config", "", "path to a YAML/JSON/TOML configuration file")

	return cfg
}

func registerFlags(flags *pflag.FlagSet) {
	for _, o := range options {
		switch v := o.defaultVal.(type) {
		case string:
			flags.String(o.name, v, o.usage)
		case float64:
			flags.Float64(o.name, v, o.usage)
		case int:
			flags.Int(o.name, v, o.usage)
		default:
			panic(fmt.Sprintf("config: unsupported default value type for %s", o.name))
		}
	}
}

func bind(cfg *Cfg) error {
	cfg.SetEnvPrefix("GEOFUSE")
	cfg.AutomaticEnv()

	if err := cfg.BindPFlags(cfg.Root.PersistentFlags()); err != nil {
		return fmt.Errorf("config: binding flags: %w", err)
	}

	if path := cfg.Root.PersistentFlags().Lookup("config"); path != nil && path.Value.String() != "" {
		cfg.SetConfigFile(path.Value.String())
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("config: reading %s: %w", path.Value.String(), err)
		}
	}

	if cfg.GetString("CoarseShapefile") == "" || cfg.GetString("DetailedShapefile") == "" {
		return fmt.Errorf("config: --CoarseShapefile and --DetailedShapefile are required")
	}
	return nil
}

// CheckInputFile resolves path relative to the working directory and
// confirms it exists, mirroring the teacher's checkOutputFile-style input
// validation.
func CheckInputFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("config: empty file path")
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("config: %s: %w", path, err)
	}
	return path, nil
}
