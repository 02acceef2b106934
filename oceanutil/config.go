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

package oceanutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/oceancore/basin"
	"github.com/spf13/cast"
)

// BasinConfig creates a new model configuration from
// the information in cfg.
func BasinConfig(cfg *viper.Viper) (*basin.Config, error) {
	nprocs, err := GetIntSlice("NProcs", cfg)
	if err != nil {
		return nil, err
	}
	if len(nprocs) != 2 {
		return nil, fmt.Errorf("oceancore: NProcs must have two values (x and y), has %d", len(nprocs))
	}
	c := &basin.Config{
		NProcX:        nprocs[0],
		NProcY:        nprocs[1],
		Nx:            cfg.GetInt("Nx"),
		Ny:            cfg.GetInt("Ny"),
		Nz:            cfg.GetInt("Nz"),
		Dx:            cfg.GetFloat64("Dx"),
		Dz:            cfg.GetFloat64("Dz"),
		Dt:            cfg.GetFloat64("Dt"),
		Kappa:         cfg.GetFloat64("Kappa"),
		KappaH:        cfg.GetFloat64("KappaH"),
		BottomFlux:    cfg.GetFloat64("BottomFlux"),
		SurfaceTemp:   cfg.GetFloat64("SurfaceTemp"),
		Cyclic:        cfg.GetBool("Cyclic"),
		NumIterations: cfg.GetInt("NumIterations"),
		LogEvery:      cfg.GetInt("LogEvery"),
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("oceancore: %v", err)
	}
	return c, nil
}

// Worker holds the settings of a worker process.
type Worker struct {
	Rank    int
	Peers   []string
	Timeout time.Duration
}

// WorkerConfig reads the worker settings from cfg.
func WorkerConfig(cfg *viper.Viper) (*Worker, error) {
	peers, err := GetStringSlice("Worker.Peers", cfg)
	if err != nil {
		return nil, err
	}
	timeout, err := cast.ToDurationE(cfg.Get("Worker.Timeout"))
	if err != nil {
		return nil, fmt.Errorf("oceancore: reading Worker.Timeout: %v", err)
	}
	w := &Worker{
		Rank:    cfg.GetInt("Worker.Rank"),
		Peers:   peers,
		Timeout: timeout,
	}
	if w.Rank < 0 || w.Rank >= len(w.Peers) {
		return nil, fmt.Errorf("oceancore: Worker.Rank %d outside of the %d Worker.Peers", w.Rank, len(w.Peers))
	}
	return w, nil
}

// GetIntSlice returns an integer slice from the configuration variable
// varName, which may be a list or a comma-separated string (as
// when it is set by an environment variable).
func GetIntSlice(varName string, cfg *viper.Viper) ([]int, error) {
	i := cfg.Get(varName)
	if s, ok := i.(string); ok {
		i = splitList(s)
	}
	o, err := cast.ToIntSliceE(i)
	if err != nil {
		return nil, fmt.Errorf("oceancore: reading %s: %v", varName, err)
	}
	return o, nil
}

// GetStringSlice returns a string slice from the configuration variable
// varName, which may be a list or a comma-separated string. Environment
// variables within the values are expanded.
func GetStringSlice(varName string, cfg *viper.Viper) ([]string, error) {
	i := cfg.Get(varName)
	if s, ok := i.(string); ok {
		i = splitList(s)
	}
	o, err := cast.ToStringSliceE(i)
	if err != nil {
		return nil, fmt.Errorf("oceancore: reading %s: %v", varName, err)
	}
	for j := range o {
		o[j] = os.ExpandEnv(o[j])
	}
	return o, nil
}

// splitList splits a list written as "a,b", "[a b]" or "[a,b]".
func splitList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	return strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
}
