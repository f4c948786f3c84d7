package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources is the content of a sources file: trips with their activities and
// transport legs nested under each trip.
type Sources struct {
	Trips []Trip `json:"trips" yaml:"trips"`
}

// LoadSources reads a sources file. Files ending in .yaml or .yml are YAML,
// everything else is JSON.
func LoadSources(path string) (*Sources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sources file: %w", err)
	}
	defer f.Close()

	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return DecodeSources(f, format)
}

// DecodeSources decodes a sources document in the given format ("json" or "yaml").
func DecodeSources(r io.Reader, format string) (*Sources, error) {
	var src Sources
	var err error
	switch format {
	case "yaml":
		err = yaml.NewDecoder(r).Decode(&src)
	case "json":
		err = json.NewDecoder(r).Decode(&src)
	default:
		return nil, fmt.Errorf("unsupported sources format %q", format)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse sources: %w", err)
	}
	return &src, nil
}

// Report holds the per-kind results of SyncAll.
type Report struct {
	Trips      Result `json:"trips"`
	Activities Result `json:"activities"`
	Transports Result `json:"transports"`
}

// Total sums the three results.
func (r Report) Total() Result {
	return r.Trips.Add(r.Activities).Add(r.Transports)
}

// SyncAll syncs every trip, then the activities and transports of each trip.
// It stops at the first storage error; per-record failures only count.
func (e *Engine) SyncAll(ctx context.Context, src *Sources) (Report, error) {
	var report Report

	res, err := e.SyncFromTrips(ctx, src.Trips)
	report.Trips = res
	if err != nil {
		return report, err
	}

	for _, t := range src.Trips {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(t.Activities) > 0 {
			res, err := e.SyncFromActivities(ctx, t.Activities, t.ID)
			report.Activities = report.Activities.Add(res)
			if err != nil {
				return report, err
			}
		}
		if len(t.Transports) > 0 {
			res, err := e.SyncFromTransports(ctx, t.Transports, t.ID)
			report.Transports = report.Transports.Add(res)
			if err != nil {
				return report, err
			}
		}
	}

	return report, nil
}
