package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/geodov/godov/internal/core/config"
	"github.com/geodov/godov/internal/logger"
	"github.com/geodov/godov/internal/metrics"
	"github.com/geodov/godov/pkg/dov"
	"github.com/geodov/godov/pkg/query"
)

var (
	Version  = dov.Version
	Revision = ""
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("dovsearch", flag.ContinueOnError)
	family := fs.String("type", "boring", "object family, e.g. boring, sondering, grondwaterfilter")
	q := fs.String("query", "", "attribute equalities, field=value[,field=value]")
	fields := fs.String("fields", "", "comma separated return fields (default all)")
	sortBy := fs.String("sort", "", "comma separated sort fields, prefix - for descending")
	bbox := fs.String("bbox", "", "minx,miny,maxx,maxy in Lambert 72")
	area := fs.String("area", "", "GeoJSON, GML or FlatGeobuf file to intersect with")
	maxFeatures := fs.Int("max", 0, "maximum number of objects (0 = no limit)")
	format := fs.String("format", "csv", "output: csv, geojson or fields")
	nosub := fs.Bool("no-subtype", false, "one row per object, without subtype columns")
	record := fs.String("record", "", "record remote responses to this zip archive")
	replay := fs.String("replay", "", "answer remote requests from this zip archive")
	watch := fs.Bool("watch-invalidations", false, "drop cached objects named by Kafka update events until interrupted")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "dovsearch",
	}, os.Stderr)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []dov.Option{dov.WithConfig(cfg), dov.WithLogger(appLog)}
	if *record != "" {
		opts = append(opts, dov.WithRecorder(*record))
	}
	if *replay != "" {
		opts = append(opts, dov.WithReplay(*replay))
	}
	if cfg.Metrics || *metricsAddr != "" {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    *metricsAddr,
			Path:    "/metrics",
			Build:   metrics.BuildInfo{Version: Version, Revision: Revision},
		})
		opts = append(opts, dov.WithMetrics(p.Metrics()))
		go func() {
			if err := p.Serve(ctx); err != nil {
				appLog.Error("metrics server failed", "err", err)
			}
		}()
	}

	client, err := dov.New(ctx, opts...)
	if err != nil {
		appLog.Error("client setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			appLog.Error("close failed", "err", err)
		}
	}()

	if *watch {
		if err := client.WatchInvalidations(ctx); err != nil {
			appLog.Error("invalidation consumer failed", "err", err)
			return 1
		}
		return 0
	}

	s, err := client.Family(*family)
	if err != nil {
		appLog.Error("unknown type", "err", err)
		return 2
	}
	if *nosub {
		if s, err = s.WithSubtype(nil); err != nil {
			appLog.Error("subtype", "err", err)
			return 2
		}
	}

	if *format == "fields" {
		fm, err := s.Fields(ctx)
		if err != nil {
			appLog.Error("fields failed", "err", err)
			return 1
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(fm); err != nil {
			appLog.Error("write failed", "err", err)
			return 1
		}
		return 0
	}

	req := dov.Request{SortBy: parseSort(*sortBy), MaxFeatures: *maxFeatures}
	if req.Query, err = parseQuery(*q); err != nil {
		appLog.Error("bad query", "err", err)
		return 2
	}
	if req.Location, err = buildLocation(*bbox, *area); err != nil {
		appLog.Error("bad location", "err", err)
		return 2
	}
	if names := splitList(*fields); len(names) > 0 {
		req.ReturnFields = query.Fields(names...)
	}

	tbl, err := s.Search(ctx, req)
	if err != nil {
		appLog.Error("search failed", "type", *family, "err", err)
		return 1
	}

	switch *format {
	case "geojson":
		data, err := tbl.FeatureCollection().MarshalJSON()
		if err == nil {
			_, err = stdout.Write(append(data, '\n'))
		}
		if err != nil {
			appLog.Error("write failed", "err", err)
			return 1
		}
	default:
		if err := tbl.WriteCSV(stdout); err != nil {
			appLog.Error("write failed", "err", err)
			return 1
		}
	}
	appLog.Info("search done", "type", *family, "rows", tbl.Len())
	return 0
}
