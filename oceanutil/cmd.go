/*
Copyright © 2017 the InMAP authors.
This file is part of oceancore.

oceancore is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

oceancore is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with oceancore.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package oceanutil holds the command-line interface of the oceancore
// basin model.
package oceanutil

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

// Log receives status messages.
var Log = logrus.New()

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to oceancore.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages to print:
              one of debug, info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "NProcs",
			usage: `
              NProcs specifies the number of processes along x and y.
              A decomposition along y requires more than one process along x.`,
			shorthand:  "n",
			defaultVal: []int{1, 1},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Nx",
			usage: `
              Nx is the number of grid cells along x. It must be divisible by
              the number of processes along x.`,
			defaultVal: 48,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Ny",
			usage: `
              Ny is the number of grid cells along y. It must be divisible by
              the number of processes along y.`,
			defaultVal: 32,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Nz",
			usage: `
              Nz is the number of vertical levels.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Dx",
			usage: `
              Dx is the horizontal grid spacing [m].`,
			defaultVal: 10000.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Dz",
			usage: `
              Dz is the vertical grid spacing [m].`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Dt",
			usage: `
              Dt is the time step [s].`,
			defaultVal: 86400.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Kappa",
			usage: `
              Kappa is the vertical diffusivity [m²/s].`,
			defaultVal: 1e-4,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "KappaH",
			usage: `
              KappaH is the horizontal diffusivity [m²/s]. KappaH*Dt/Dx² must
              not exceed 0.25.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "BottomFlux",
			usage: `
              BottomFlux is the heat flux through the sea floor [K m/s].`,
			defaultVal: 1e-6,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "SurfaceTemp",
			usage: `
              SurfaceTemp is the temperature held fixed at the sea surface [K].`,
			defaultVal: 288.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Cyclic",
			usage: `
              Cyclic specifies whether the domain is periodic along x.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "NumIterations",
			usage: `
              NumIterations is the number of iterations to calculate. If < 1, convergence
              is automatically calculated.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "LogEvery",
			usage: `
              LogEvery is the number of iterations between status messages.
              If < 1, no status messages are printed.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired netCDF output file. It can
              include environment variables. If empty, no file is written.`,
			shorthand:  "o",
			defaultVal: "oceancore_output.ncf",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "PlotFile",
			usage: `
              PlotFile is the path to a PNG map of the sea floor temperature
              to be created. It can include environment variables. If empty,
              no map is created.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), workerCmd.Flags()},
		},
		{
			name: "Worker.Rank",
			usage: `
              Worker.Rank is the rank of this worker within the process group.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{workerCmd.Flags()},
		},
		{
			name: "Worker.Peers",
			usage: `
              Worker.Peers lists the RPC addresses (host:port) of all workers,
              ordered by rank. This worker listens on the address at its own rank.`,
			defaultVal: []string{"localhost:6060"},
			flagsets:   []*pflag.FlagSet{workerCmd.Flags()},
		},
		{
			name: "Worker.Timeout",
			usage: `
              Worker.Timeout is how long to wait for a message from another
              worker before failing, for example "10m". Zero waits forever.`,
			defaultVal: "0s",
			flagsets:   []*pflag.FlagSet{workerCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OCEANCORE")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
			case int:
				set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
			case []int:
				set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
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
	Root.AddCommand(runCmd)
	Root.AddCommand(workerCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("oceancore: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("oceancore: %v", err)
	}
	Log.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "oceancore",
	Short: "An idealized ocean basin model.",
	Long: `oceancore simulates heat diffusion in an idealized ocean basin on a grid
that is decomposed among several processes.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'OCEANCORE_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of oceancore.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("oceancore v%s\n", oceancore.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run runs a simulation with every process of the decomposition as
part of this program, and writes the results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := BasinConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(c, Cfg.GetString("OutputFile"), Cfg.GetString("PlotFile"), Log)
	},
	DisableAutoGenTag: true,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start an oceancore worker.",
	Long: `worker runs one process of a simulation and communicates with the
other processes over RPC. One worker must be started for each rank listed in
Worker.Peers, all with the same configuration. The worker with rank 0 writes
the results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := BasinConfig(Cfg)
		if err != nil {
			return err
		}
		w, err := WorkerConfig(Cfg)
		if err != nil {
			return err
		}
		return RunWorker(c, w, Cfg.GetString("OutputFile"), Cfg.GetString("PlotFile"), Log)
	},
	DisableAutoGenTag: true,
}
