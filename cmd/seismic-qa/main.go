// Command seismic-qa runs the noise-model-deviation and channel-pair
// coherence metrics over a station-day fixture bundle and persists the
// results to a sqlite store.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/banshee-data/seismic-qa/internal/config"
	"github.com/banshee-data/seismic-qa/internal/fixture"
	"github.com/banshee-data/seismic-qa/internal/monitoring"
	"github.com/banshee-data/seismic-qa/internal/seismic"
	"github.com/banshee-data/seismic-qa/internal/seismic/engine"
	"github.com/banshee-data/seismic-qa/internal/seismic/metric"
	"github.com/banshee-data/seismic-qa/internal/store/sqlite"
)

const version = "0.1.0"

func main() {
	var bundlePath string
	var configPath string
	var network string
	var station string
	var dateStr string
	var coherencePairs string
	var force bool
	var showVersion bool

	pflag.StringVarP(&bundlePath, "bundle", "b", "", "path to a station-day fixture bundle (JSON)")
	pflag.StringVarP(&configPath, "config", "c", "", "path to a tuning config file (JSON), overrides defaults")
	pflag.StringVar(&network, "network", "", "network code, overrides the bundle's own network field")
	pflag.StringVar(&station, "station", "", "station code, overrides the bundle's own station field")
	pflag.StringVar(&dateStr, "date", "", "evaluation date, YYYY-MM-DD")
	pflag.StringVar(&coherencePairs, "coherence-pairs", "", "semicolon-separated LOC,CODE|LOC,CODE pairs to run ChannelCoherence against")
	pflag.BoolVarP(&force, "force", "f", false, "bypass change detection and re-evaluate every channel")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "seismic-qa - noise-model deviation and channel coherence for one station-day\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s --bundle FILE --date YYYY-MM-DD [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if showVersion {
		fmt.Printf("seismic-qa version %s\n", version)
		return
	}

	if bundlePath == "" || dateStr == "" {
		pflag.Usage()
		os.Exit(1)
	}

	if err := run(bundlePath, configPath, network, station, dateStr, coherencePairs, force); err != nil {
		monitoring.Errorf("seismic-qa: %v", err)
		os.Exit(1)
	}
}

func run(bundlePath, configPath, network, station, dateStr, coherencePairs string, force bool) error {
	cfg := config.EmptyTuningConfig()
	if configPath != "" {
		loaded, err := config.LoadTuningConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	b, err := fixture.Load(bundlePath)
	if err != nil {
		return err
	}
	if network != "" {
		b.Network = network
	}
	if station != "" {
		b.Station = station
	}
	provider := fixture.NewProvider(b)

	date, err := parseDate(dateStr)
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}

	db, err := sqlite.Open(cfg.GetDatabasePath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	st := sqlite.NewStore(db)

	nlnm, err := metric.NewDeviation("NLNMDeviationMetric", 1, cfg.GetNLNMModelPath())
	if err != nil {
		return fmt.Errorf("load NLNM model: %w", err)
	}
	if err := nlnm.Set("period_low", cfg.GetPeriodLow()); err != nil {
		return err
	}
	if err := nlnm.Set("period_high", cfg.GetPeriodHigh()); err != nil {
		return err
	}

	nhnm, err := metric.NewDeviation("NHNMDeviationMetric", 1, cfg.GetNHNMModelPath())
	if err != nil {
		return fmt.Errorf("load NHNM model: %w", err)
	}
	if err := nhnm.Set("period_low", cfg.GetPeriodLow()); err != nil {
		return err
	}
	if err := nhnm.Set("period_high", cfg.GetPeriodHigh()); err != nil {
		return err
	}

	metrics := []metric.Metric{nlnm, nhnm}

	pairs, err := parseCoherencePairs(coherencePairs)
	if err != nil {
		return fmt.Errorf("parse coherence pairs: %w", err)
	}
	for i, pair := range pairs {
		c := metric.NewCoherence(fmt.Sprintf("ChannelCoherence%d", i), 1)
		if err := c.Set("period_low", cfg.GetPeriodLow()); err != nil {
			return err
		}
		if err := c.Set("period_high", cfg.GetPeriodHigh()); err != nil {
			return err
		}
		if err := c.Set("channel_x", pair[0]); err != nil {
			return err
		}
		if err := c.Set("channel_y", pair[1]); err != nil {
			return err
		}
		metrics = append(metrics, c)
	}

	stationKey := seismic.StationKey{Network: b.Network, Station: b.Station}
	eng := engine.NewWithTuning(provider, provider, st, metrics, cfg.GetTaperFraction(), cfg.GetSmoothHalfWidth())

	results, err := eng.Run(context.Background(), stationKey, date, force || cfg.GetForceRecompute())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	for _, r := range results {
		monitoring.Infof("metric %s: %d emissions", r.MetricName, len(r.PerChannel))
		for id, v := range r.PerChannel {
			fmt.Printf("%s\t%s\t%g\n", r.MetricName, id, v.Value)
		}
	}
	return nil
}

func parseDate(s string) (seismic.Date, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(s, "%04d-%02d-%02d", &y, &m, &d); err != nil {
		return seismic.Date{}, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return seismic.Date{Year: y, Month: m, Day: d}, nil
}

func parseCoherencePairs(s string) ([][2]seismic.ChannelKey, error) {
	if s == "" {
		return nil, nil
	}
	var pairs [][2]seismic.ChannelKey
	for _, entry := range strings.Split(s, ";") {
		halves := strings.SplitN(entry, "|", 2)
		if len(halves) != 2 {
			return nil, fmt.Errorf("malformed pair %q, want LOC,CODE|LOC,CODE", entry)
		}
		x, err := parseChannelKey(halves[0])
		if err != nil {
			return nil, err
		}
		y, err := parseChannelKey(halves[1])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]seismic.ChannelKey{x, y})
	}
	return pairs, nil
}

func parseChannelKey(s string) (seismic.ChannelKey, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return seismic.ChannelKey{}, fmt.Errorf("malformed channel id %q, want LOC,CODE", s)
	}
	return seismic.ChannelKey{Location: parts[0], Code: parts[1]}, nil
}
