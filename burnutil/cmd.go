/*
Copyright © 2021 the InMAP authors.
This file is part of gridburn.

gridburn is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridburn is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridburn.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package burnutil holds the gridburn command-line interface.
package burnutil

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/gridburn"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to gridburn.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location. TOML, YAML,
              and JSON files are accepted.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "burn-value",
			usage: `
              burn-value is the value written to every grid cell that
              the vector shape intersects.`,
			shorthand:  "v",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "set-zero",
			usage: `
              set-zero specifies that every grid cell the shape does not
              intersect should be set to 0. Otherwise those cells keep
              their input values.`,
			shorthand:  "z",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of concurrent rasterization workers.
              The default of 0 uses the number of processors minus two,
              with a minimum of one.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "predicate",
			usage: `
              predicate decides which cells the shape covers. 'intersects'
              includes cells that only touch the shape along an edge or at a
              corner; 'overlaps' requires the shape to reach the interior
              of the cell.`,
			defaultVal: gridburn.Inclusive.String(),
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "progress-interval",
			usage: `
              progress-interval is the number of cells each worker processes
              between progress reports.`,
			defaultVal: gridburn.DefaultProgressInterval,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "format",
			usage: `
              format overrides the input grid format that is otherwise chosen
              by file extension. One of 'ascii', 'netcdf', or 'tiff'.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "output-format",
			usage: `
              output-format overrides the output grid format that is otherwise
              chosen by file extension.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "footprints",
			usage: `
              footprints, if set, is the path of a shapefile (.shp) that the
              footprints of burned cells are written to. It can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "preview",
			usage: `
              preview, if set, is the path of a PNG image that a heat map of
              the output grid is drawn to. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum level of log messages that are printed.
              One of 'debug', 'info', 'warning', or 'error'.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile, if set, is the path of a file that log messages are
              additionally written to in JSON format. It can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("GRIDBURN")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(configCmd)
}

func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("gridburn: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridburn [flags] vector_path input_grid_path output_grid_path",
	Short: "Burn a vector shape onto a raster grid.",
	Long: `gridburn writes a copy of the grid in input_grid_path to output_grid_path
in which every cell that the shape in vector_path intersects is set to the
burn value. The shape must be in the coordinate system of the grid.

Vector files may be GeoJSON (.json, .geojson) or shapefiles (.shp). Grid files
may be ESRI ASCII grids (.asc), NetCDF (.nc, .ncf), or 16-bit TIFF images with
a world file (.tif, .tiff). Any path may also be an http(s) URL or a blob
storage URL (file://, gs://, s3://).

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'GRIDBURN_var' where 'var' is
the name of the variable to be set, with dashes replaced by underscores.`,
	Args:              cobra.ExactArgs(3),
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		log, closer, err := newLogger(cmd.OutOrStderr(), Cfg.GetString("LogLevel"), os.ExpandEnv(Cfg.GetString("LogFile")))
		if err != nil {
			return err
		}
		defer closer.Close()
		job, err := jobFromConfig(args)
		if err != nil {
			return err
		}
		job.Options.Log = log
		_, err = Burn(context.Background(), job)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of gridburn.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("gridburn v%s\n", gridburn.Version)
	},
	DisableAutoGenTag: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration",
	Long: `config prints the configuration that results from the defaults, the
configuration file, and the environment, in TOML format. The output can be
used as a starting point for a configuration file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeConfig(cmd)
	},
	DisableAutoGenTag: true,
}

// writeConfig writes the value of every option except config
// to the output of cmd.
func writeConfig(cmd *cobra.Command) error {
	names := make([]string, 0, len(options))
	for _, option := range options {
		if option.name != "config" {
			names = append(names, option.name)
		}
	}
	sort.Strings(names)
	config := make(map[string]interface{}, len(names))
	for _, name := range names {
		config[name] = Cfg.Get(name)
	}
	if err := toml.NewEncoder(cmd.OutOrStdout()).Encode(config); err != nil {
		return fmt.Errorf("gridburn: writing configuration: %w", err)
	}
	return nil
}

// burnValue converts v to a whole-number burn value.
func burnValue(v interface{}) (float64, error) {
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("gridburn: invalid burn-value: %w", err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("gridburn: invalid burn-value %v: must be an integer", v)
	}
	return f, nil
}

// jobFromConfig builds a job from the positional arguments and the
// current configuration.
func jobFromConfig(args []string) (Job, error) {
	burn, err := burnValue(Cfg.Get("burn-value"))
	if err != nil {
		return Job{}, err
	}
	setZero, err := cast.ToBoolE(Cfg.Get("set-zero"))
	if err != nil {
		return Job{}, fmt.Errorf("gridburn: invalid set-zero: %w", err)
	}
	workers, err := cast.ToIntE(Cfg.Get("workers"))
	if err != nil {
		return Job{}, fmt.Errorf("gridburn: invalid workers: %w", err)
	}
	interval, err := cast.ToIntE(Cfg.Get("progress-interval"))
	if err != nil {
		return Job{}, fmt.Errorf("gridburn: invalid progress-interval: %w", err)
	}
	mode, err := gridburn.ParsePredicateMode(Cfg.GetString("predicate"))
	if err != nil {
		return Job{}, err
	}
	return Job{
		VectorPath:   os.ExpandEnv(args[0]),
		InputPath:    os.ExpandEnv(args[1]),
		OutputPath:   os.ExpandEnv(args[2]),
		Format:       Cfg.GetString("format"),
		OutputFormat: Cfg.GetString("output-format"),
		Footprints:   os.ExpandEnv(Cfg.GetString("footprints")),
		Preview:      os.ExpandEnv(Cfg.GetString("preview")),
		Options: gridburn.Options{
			BurnValue:        burn,
			SetZero:          setZero,
			Workers:          workers,
			Predicate:        mode,
			ProgressInterval: interval,
		},
	}, nil
}
