package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/verdict-labs/verdict/pkg/broker"
	"github.com/verdict-labs/verdict/pkg/config"
	"github.com/verdict-labs/verdict/pkg/gate"
	"github.com/verdict-labs/verdict/pkg/ident"
	"github.com/verdict-labs/verdict/pkg/observability"
	"github.com/verdict-labs/verdict/pkg/orchestrator"
	"github.com/verdict-labs/verdict/pkg/provider"
	"github.com/verdict-labs/verdict/pkg/provider/clockprov"
	"github.com/verdict-labs/verdict/pkg/provider/envprov"
	"github.com/verdict-labs/verdict/pkg/provider/httpprov"
	"github.com/verdict-labs/verdict/pkg/provider/staticprov"
	"github.com/verdict-labs/verdict/pkg/spec"
	"github.com/verdict-labs/verdict/pkg/store/memstore"
	"github.com/verdict-labs/verdict/pkg/store/pgstore"
	"github.com/verdict-labs/verdict/pkg/store/s3store"
	"github.com/verdict-labs/verdict/pkg/store/sqlitestore"
	"github.com/verdict-labs/verdict/pkg/value"
)

func runEval(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	specPath := fs.String("spec", "", "path to the scenario spec (.yaml or .json)")
	factsPath := fs.String("facts", "", "optional JSON file of asserted facts for the static provider")
	packOut := fs.String("pack-out", "", "optional path to write the sealed runpack")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *specPath == "" {
		fmt.Fprintln(stderr, "eval: -spec is required")
		return 2
	}

	res, err := evaluate(context.Background(), *specPath, *factsPath)
	if err != nil {
		fmt.Fprintf(stderr, "eval: %v\n", err)
		return 1
	}

	out := map[string]any{
		"run_id":      res.RunID,
		"scenario_id": res.ScenarioID,
		"state":       res.State,
		"outcome":     res.Outcome,
	}
	if res.Reason != "" {
		out["reason"] = res.Reason
	}
	if res.Pack != nil {
		out["fingerprint"] = res.Pack.Fingerprint
		out["steps"] = len(res.Pack.Steps)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "eval: %v\n", err)
		return 1
	}

	if *packOut != "" && res.Pack != nil {
		raw, err := res.Pack.Encode()
		if err != nil {
			fmt.Fprintf(stderr, "eval: encode pack: %v\n", err)
			return 1
		}
		if err := os.WriteFile(*packOut, raw, 0600); err != nil {
			fmt.Fprintf(stderr, "eval: write pack: %v\n", err)
			return 1
		}
	}

	if res.State == gate.StateFailed {
		return 1
	}
	return 0
}

func evaluate(ctx context.Context, specPath, factsPath string) (*gate.Result, error) {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogJSON)

	obsCfg := observability.DefaultConfig()
	obsCfg.Enabled = cfg.TelemetryEnabled
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	s, err := loadSpec(specPath)
	if err != nil {
		return nil, err
	}

	reg := provider.NewRegistry()
	reg.Register(envprov.New())
	reg.Register(clockprov.New())
	reg.Register(httpprov.New("http"))
	if factsPath != "" {
		facts, err := loadFacts(factsPath)
		if err != nil {
			return nil, err
		}
		reg.Register(staticprov.New("static", facts))
	}

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeSink != nil {
		defer closeSink()
	}

	var announcer gate.Announcer
	if cfg.RedisAddr != "" {
		b, err := broker.New(ctx, broker.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		defer func() { _ = b.Close() }()
		announcer = b
	}

	engine, err := gate.New(gate.Config{
		Orchestrator: orchestrator.New(orchestrator.Config{Registry: reg, Logger: logger}),
		Logger:       logger,
		Sink:         sink,
		Announcer:    announcer,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res := engine.Start(ctx, s)
	obs.RecordEvaluation(ctx, string(res.State), time.Since(start))
	return res, nil
}

func loadSpec(path string) (*spec.Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".json") {
		return spec.LoadJSON(raw)
	}
	return spec.LoadYAML(raw)
}

// loadFacts reads a flat JSON object of evidence id to tagged value, e.g.
// {"applicant.age": {"kind": "number", "value": "18"}}.
func loadFacts(path string) (map[ident.EvidenceID]value.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]value.Value
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("facts %s: %w", path, err)
	}
	facts := make(map[ident.EvidenceID]value.Value, len(doc))
	for k, v := range doc {
		id, err := ident.ParseEvidenceID(k)
		if err != nil {
			return nil, fmt.Errorf("facts %s: %w", path, err)
		}
		facts[id] = v
	}
	return facts, nil
}

func openSink(ctx context.Context, cfg *config.Config) (gate.Sink, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendPostgres:
		s, err := pgstore.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.BackendS3:
		if cfg.S3Bucket == "" {
			return nil, nil, fmt.Errorf("store backend s3 requires VERDICT_S3_BUCKET")
		}
		s, err := s3store.New(ctx, s3store.Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return memstore.New(), nil, nil
	}
}
