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

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/oceancore/basin"
	"github.com/spatialmodel/oceancore/distribute"
	"github.com/spatialmodel/oceancore/internal/hash"
)

// Run runs a simulation with all processes in the current program and
// writes the results to outputFile (netCDF) and plotFile (PNG). Empty file
// names are skipped.
func Run(c *basin.Config, outputFile, plotFile string, log logrus.FieldLogger) error {
	log.WithFields(logrus.Fields{
		"processes": fmt.Sprintf("%dx%d", c.NProcX, c.NProcY),
		"grid":      fmt.Sprintf("%dx%dx%d", c.Nx, c.Ny, c.Nz),
	}).Info("starting simulation")
	r, err := basin.RunLocal(c, log)
	if err != nil {
		return err
	}
	return writeOutputs(c, r, outputFile, plotFile, log)
}

// RunWorker runs the process of a simulation with rank w.Rank,
// communicating with the other workers over RPC. The worker with rank 0
// writes the results.
func RunWorker(c *basin.Config, w *Worker, outputFile, plotFile string, log logrus.FieldLogger) error {
	if len(w.Peers) != c.NProcX*c.NProcY {
		return fmt.Errorf("oceancore: %d Worker.Peers for %dx%d processes", len(w.Peers), c.NProcX, c.NProcY)
	}
	net, err := distribute.ListenRPC(w.Rank, w.Peers[w.Rank])
	if err != nil {
		return err
	}
	defer net.Close()
	net.Timeout = w.Timeout
	net.Log = log
	if err := net.SetPeers(w.Peers); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"rank":    w.Rank,
		"address": net.Addr(),
	}).Info("worker listening")

	r, err := basin.RunRank(c, net, log)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}
	return writeOutputs(c, r, outputFile, plotFile, log)
}

func writeOutputs(c *basin.Config, r *basin.Result, outputFile, plotFile string, log logrus.FieldLogger) error {
	log.WithFields(logrus.Fields{
		"iterations": r.Iterations,
		"config":     hash.Value(c),
		"digest":     hash.Field(r.Temp),
	}).Info("simulation finished")

	if outputFile != "" {
		outputFile = os.ExpandEnv(outputFile)
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("oceancore: creating output file: %v", err)
		}
		if err := basin.WriteNetCDF(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("oceancore: closing output file: %v", err)
		}
		log.WithField("file", outputFile).Info("wrote output")
	}
	if plotFile != "" {
		plotFile = os.ExpandEnv(plotFile)
		f, err := os.Create(plotFile)
		if err != nil {
			return fmt.Errorf("oceancore: creating plot file: %v", err)
		}
		if err := basin.PlotFloor(f, r); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("oceancore: closing plot file: %v", err)
		}
		log.WithField("file", plotFile).Info("wrote plot")
	}
	return nil
}
