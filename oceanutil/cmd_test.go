/*
Copyright © 2019 the InMAP authors.
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
	"bytes"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore"
	"github.com/spatialmodel/oceancore/basin"
	"golang.org/x/sync/errgroup"
)

// writeConfig writes a TOML configuration file holding vals into dir.
func writeConfig(t *testing.T, dir string, vals map[string]interface{}) string {
	path := filepath.Join(dir, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(vals); err != nil {
		t.Fatal(err)
	}
	return path
}

func smallConfig(dir string) map[string]interface{} {
	return map[string]interface{}{
		"NProcs":        []int{2, 2},
		"Nx":            12,
		"Ny":            8,
		"Nz":            4,
		"Dx":            1000.0,
		"Dz":            10.0,
		"Dt":            3600.0,
		"KappaH":        20.0,
		"NumIterations": 5,
		"LogEvery":      0,
		"OutputFile":    filepath.Join(dir, "out.ncf"),
		"PlotFile":      filepath.Join(dir, "floor.png"),
	}
}

func TestBasinConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "oceanutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	cfg := viper.New()
	cfg.SetConfigFile(writeConfig(t, dir, smallConfig(dir)))
	if err := cfg.ReadInConfig(); err != nil {
		t.Fatal(err)
	}
	have, err := BasinConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := &basin.Config{NProcX: 2, NProcY: 2, Nx: 12, Ny: 8, Nz: 4,
		Dx: 1000, Dz: 10, Dt: 3600, KappaH: 20, NumIterations: 5}
	if *have != *want {
		t.Errorf("have %+v, want %+v", have, want)
	}

	cfg.Set("NProcs", "3")
	if _, err := BasinConfig(cfg); err == nil {
		t.Error("NProcs with one value should be an error")
	}
	cfg.Set("NProcs", "2, 1")
	if c, err := BasinConfig(cfg); err != nil || c.NProcX != 2 || c.NProcY != 1 {
		t.Errorf("NProcs string: have %+v, %v", c, err)
	}
}

func TestWorkerConfig(t *testing.T) {
	cfg := viper.New()
	cfg.Set("Worker.Rank", 1)
	cfg.Set("Worker.Peers", "[a:1 b:2]")
	cfg.Set("Worker.Timeout", "2m")
	w, err := WorkerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if w.Rank != 1 || len(w.Peers) != 2 || w.Peers[1] != "b:2" || w.Timeout.Minutes() != 2 {
		t.Errorf("have %+v", w)
	}
	cfg.Set("Worker.Rank", 2)
	if _, err := WorkerConfig(cfg); err == nil {
		t.Error("rank outside of peers should be an error")
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("oceancore v%s\n", oceancore.Version); buf.String() != want {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "oceanutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	Log.Out = ioutil.Discard

	Cfg.Set("config", writeConfig(t, dir, smallConfig(dir)))
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"out.ncf", "floor.png"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Error(err)
		}
	}
	f, err := os.Open(filepath.Join(dir, "out.ncf"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	temp, err := basin.ReadNetCDF(f, "temperature")
	if err != nil {
		t.Fatal(err)
	}
	if temp.Shape[0] != 12 || temp.Shape[1] != 8 || temp.Shape[2] != 4 {
		t.Errorf("shape: have %v", temp.Shape)
	}
}

// freeAddrs returns n local addresses that are not in use.
func freeAddrs(t *testing.T, n int) []string {
	addrs := make([]string, n)
	for i := range addrs {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		addrs[i] = l.Addr().String()
		l.Close()
	}
	return addrs
}

// Workers connected over RPC give the same result as a run within a
// single program.
func TestRunWorkers(t *testing.T) {
	dir, err := ioutil.TempDir("", "oceanutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	log := logrus.New()
	log.Out = ioutil.Discard

	c := &basin.Config{NProcX: 2, NProcY: 1, Nx: 8, Ny: 6, Nz: 3,
		Dx: 1000, Dz: 10, Dt: 3600, Kappa: 1e-3, KappaH: 20,
		SurfaceTemp: 280, BottomFlux: 1e-4, Cyclic: true, NumIterations: 6}
	peers := freeAddrs(t, 2)
	out := filepath.Join(dir, "workers.ncf")
	var g errgroup.Group
	for r := range peers {
		w := &Worker{Rank: r, Peers: peers}
		g.Go(func() error { return RunWorker(c, w, out, "", log) })
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	want, err := basin.RunLocal(c, log)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	have, err := basin.ReadNetCDF(f, "temperature")
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range have.Elements {
		if w := float64(float32(want.Temp.Elements[i])); v != w {
			t.Errorf("element %d: have %g, want %g", i, v, w)
		}
	}
}

func TestSplitList(t *testing.T) {
	for _, test := range []struct{ in, want string }{
		{"1,2", "1|2"},
		{"[1 2]", "1|2"},
		{" [a:1, b:2] ", "a:1|b:2"},
	} {
		if have := strings.Join(splitList(test.in), "|"); have != test.want {
			t.Errorf("%q: have %q, want %q", test.in, have, test.want)
		}
	}
}
