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

// Command harmonize runs the shape-harmonization engine from the command
// line: it reads a coarse partition and a detailed partition, harmonizes
// the detailed layer against the coarse one, and writes the result back
// out as a shapefile.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/collijk/geofuse"
	"github.com/collijk/geofuse/internal/config"
)

func main() {
	cfg := config.New()

	cfg.Root.RunE = func(cmd *cobra.Command, args []string) error {
		return run(context.Background(), cfg)
	}

	if err := cfg.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Cfg) error {
	level, err := log.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("harmonize: parsing LogLevel: %w", err)
	}
	log.SetLevel(level)

	coarsePath, err := config.CheckInputFile(cfg.GetString("CoarseShapefile"))
	if err != nil {
		return fmt.Errorf("harmonize: %w", err)
	}
	detailedPath, err := config.CheckInputFile(cfg.GetString("DetailedShapefile"))
	if err != nil {
		return fmt.Errorf("harmonize: %w", err)
	}

	coarse, err := geofuse.ReadCoarseShapefile(coarsePath)
	if err != nil {
		return err
	}
	detailed, err := geofuse.ReadDetailedShapefile(detailedPath)
	if err != nil {
		return err
	}

	h := geofuse.NewHarmonizer()
	h.ClassifyParams.CompactnessThreshold = cfg.GetFloat64("CompactnessThreshold")
	h.ClassifyParams.DetailedAreaThreshold = cfg.GetFloat64("DetailedAreaThreshold")
	h.ClassifyParams.CoarseAreaThreshold = cfg.GetFloat64("CoarseAreaThreshold")
	h.MaxIterations = cfg.GetInt("MaxIterations")
	if cfg.GetString("MergeStrategy") == "base" {
		h.Strategy = geofuse.Base
	}

	report, err := h.Run(ctx, coarse, detailed)
	if err != nil {
		return fmt.Errorf("harmonize: %w", err)
	}

	for _, p := range report.Parents {
		if p.Status == geofuse.StatusFatal {
			log.WithFields(log.Fields{"parent_id": p.ParentID, "error": p.Err}).Error("parent failed")
		}
	}

	if err := geofuse.WriteCoarseShapefile(cfg.GetString("OutputShapefile"), report.Rows); err != nil {
		return fmt.Errorf("harmonize: %w", err)
	}

	log.WithFields(log.Fields{
		"parents": len(report.Parents),
		"rows":    len(report.Rows),
	}).Info("harmonization complete")
	return nil
}
