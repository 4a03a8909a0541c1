/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/backend"
	"github.com/valpere/playconv/internal/detector"
	"github.com/valpere/playconv/internal/orchestrator"
	"github.com/valpere/playconv/internal/refiner"
	"github.com/valpere/playconv/internal/sink"
	"github.com/valpere/playconv/internal/store"
	"github.com/valpere/playconv/internal/translator"
	"github.com/valpere/playconv/internal/validator"
)

// runOptions are the flags shared by convert, analyze and batch.
type runOptions struct {
	backendKind string
	remote      bool
	stream      bool
	outputDir   string
	noCache     bool
	workers     int
	language    string
}

// buildAdapter constructs the backend named by kind, rate limited when
// backend.rate_limit is set.
func buildAdapter(ctx context.Context, s *settings, kind string, ep endpointSettings) (backend.Adapter, error) {
	var a backend.Adapter
	switch kind {
	case "agent":
		a = backend.NewAgentAdapter(nil)
	case "completion":
		a = backend.NewCompletionAdapter(nil)
	case "chat":
		a = backend.NewChatAdapter(nil)
	case "gemini":
		g, err := backend.NewGeminiAdapter(ctx, ep.APIKey)
		if err != nil {
			return nil, err
		}
		a = g
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
	return backend.RateLimited(a, backend.NewLimiter(s.Backend.RateLimit, s.Backend.Burst)), nil
}

// buildSink returns the file sink plus the object sink when output.s3 is configured.
func buildSink(s *settings, outputDir string) (sink.Sink, error) {
	if outputDir == "" {
		outputDir = s.Output.Dir
	}
	fs, err := sink.NewFileSink(outputDir)
	if err != nil {
		return nil, err
	}
	if s.Output.S3.Endpoint == "" {
		return fs, nil
	}
	obj, err := sink.NewObjectSink(s.Output.S3)
	if err != nil {
		return nil, err
	}
	return sink.Multi{fs, obj}, nil
}

// pipeline is an assembled orchestrator and the resources it holds open.
type pipeline struct {
	orch *orchestrator.Orchestrator
	db   *store.Store
	cfg  backend.Config
	kind string
}

func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

func buildPipeline(ctx context.Context, mode internal.Mode, opts runOptions, extra ...orchestrator.Option) (*pipeline, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, err
	}

	kind := opts.backendKind
	if kind == "" {
		kind = s.Backend.Kind
	}
	ep, err := s.endpoint(kind, opts.remote)
	if err != nil {
		return nil, err
	}
	adapter, err := buildAdapter(ctx, s, kind, ep)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	cfg := s.backendConfig(ep, opts.stream || s.Backend.Streaming)

	out, err := buildSink(s, opts.outputDir)
	if err != nil {
		return nil, err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = s.Workers
	}
	language := opts.language
	if language == "" {
		language = s.Analysis.Language
	}

	p := &pipeline{cfg: cfg, kind: kind}
	var options []orchestrator.Option

	if s.DB != "" {
		db, err := openStore(s.DB)
		if err != nil {
			return nil, err
		}
		p.db = db
		options = append(options, orchestrator.WithHistory(db), orchestrator.WithHints(db), orchestrator.WithCheckpoints(db))
		if !opts.noCache {
			mem, err := store.NewCachedMemory(db, s.CacheSize)
			if err != nil {
				db.Close()
				return nil, err
			}
			options = append(options, orchestrator.WithMemory(mem))
		}
	}

	if mode == internal.ModeConvert && s.Repair.Enabled {
		options = append(options, orchestrator.WithRepairer(refiner.NewOllamaRepairer(s.Repair.Model, s.Repair.URL)))
	}

	if mode == internal.ModeAnalyze && language != "" {
		det := detector.New()
		options = append(options, orchestrator.WithValidator(validator.New(det)))
		if s.Analysis.Credentials != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
			options = append(options, orchestrator.WithLocalizer(translator.NewGoogleLocalizer(translator.Config{
				Credentials:  s.Analysis.Credentials,
				ProjectID:    s.Analysis.ProjectID,
				Language:     language,
				SegmentRunes: s.Analysis.SegmentRunes,
			}, det)))
		}
	}

	options = append(options, extra...)
	p.orch = orchestrator.New(adapter, out, orchestrator.OrchestratorConfig{
		Mode:     mode,
		Backend:  cfg,
		Workers:  workers,
		Timeout:  cfg.Timeout,
		Language: language,
	}, options...)
	return p, nil
}

// openStore opens the sqlite database, creating its directory if needed.
func openStore(path string) (*store.Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.backendKind, "backend", "", "Backend: agent, completion, chat, gemini (default from config)")
	flags.BoolVar(&opts.remote, "remote", false, "Use the remote llama-stack server from config")
	flags.BoolVar(&opts.stream, "stream", false, "Stream the backend response")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Directory for generated artifacts (default from config)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Disable conversion memory")
}
