package infrastructure

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/gather/adapter"
	"github.com/JaimeStill/gather/internal/config"
	"github.com/JaimeStill/gather/internal/pipeline"
	"github.com/JaimeStill/gather/internal/prompts"
	"github.com/JaimeStill/gather/internal/services/classify"
	"github.com/JaimeStill/gather/internal/services/export"
	"github.com/JaimeStill/gather/internal/services/extract"
	"github.com/JaimeStill/gather/internal/services/fetch"
	"github.com/JaimeStill/gather/internal/services/links"
	"github.com/JaimeStill/gather/internal/services/llm"
	"github.com/JaimeStill/gather/internal/services/registry"
	"github.com/JaimeStill/gather/internal/services/transcribe"
	"github.com/JaimeStill/gather/pkg/storage"
)

// newDeps builds the pipeline adapters selected by cfg.Services. blobs may
// be nil when export is disabled.
func newDeps(cfg *config.Config, blobs storage.System, logger *slog.Logger) (pipeline.Deps, error) {
	svc := &cfg.Services

	ps, err := prompts.NewSet(svc.Prompts)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("prompts: %w", err)
	}

	hc := &http.Client{}
	deps := pipeline.Deps{
		Fetcher:  newFetcher(svc, hc, logger),
		Articles: extract.NewHTML(svc.Extract.MinWords),
		Documents: extract.NewMux().
			Handle(extract.KindHTML, extract.NewHTML(svc.Extract.MinWords)).
			Handle(extract.KindPDF, extract.NewPDF(svc.Extract.PDFMaxPages, logger)).
			Handle(extract.KindText, extract.Text{}),
		Logger: logger,
	}

	if svc.UsesOpenAI() {
		client := llm.NewClient(&svc.OpenAI)
		if svc.Classifier == config.ClassifierOpenAI {
			deps.Classifier = classify.NewOpenAI(client, &svc.OpenAI, ps, logger)
		}
		if svc.LinkFinder == config.LinksOpenAI {
			deps.Links = links.NewOpenAI(client, &svc.OpenAI, ps, cfg.Pipeline.PDFLinkLimit, logger)
		}
	}
	if deps.Classifier == nil {
		deps.Classifier = classify.NewHeuristic()
	}
	if svc.LinkFinder == config.LinksScan {
		deps.Links = links.NewScan(cfg.Pipeline.PDFLinkLimit)
	}

	if !svc.Registry.Disabled {
		deps.Resolver, deps.Registries = newRegistries(&svc.Registry, hc, logger)
	}

	if !svc.Transcribe.Disabled {
		deps.Transcriber = transcribe.New(svc.Transcribe.Path, svc.Transcribe.Language, hc, svc.Transcribe.TimeoutDuration(), logger)
	}

	if svc.Export.Enabled {
		if blobs == nil {
			return pipeline.Deps{}, fmt.Errorf("export requires storage")
		}
		deps.Exporter = export.NewBlob(blobs, svc.Export.Prefix, svc.Export.TimeoutDuration(), logger)
	}

	return deps, nil
}

func newFetcher(svc *config.ServicesConfig, hc *http.Client, logger *slog.Logger) adapter.Fetcher {
	router := &fetch.Router{
		Plain: fetch.NewHTTP(hc, svc.Fetch.UserAgent, svc.Fetch.MaxBytes.Bytes(), logger),
	}
	if svc.Fetch.BrowserPath != "" {
		router.Browser = fetch.NewCommand(svc.Fetch.BrowserPath, svc.Fetch.BrowserArgs, svc.Fetch.HumanizeArgs, logger)
	}
	return router
}

// newRegistries returns OpenAlex as the resolver and both registries for
// metadata lookup.
func newRegistries(cfg *config.RegistryConfig, hc *http.Client, logger *slog.Logger) (adapter.Registry, []adapter.Registry) {
	opts := func(base string) registry.Options {
		return registry.Options{
			BaseURL:   base,
			Mailto:    cfg.Mailto,
			UserAgent: cfg.UserAgent,
			RPS:       cfg.RPS,
			Retries:   uint64(cfg.Retries),
			Timeout:   cfg.TimeoutDuration(),
		}
	}

	openalex := registry.NewOpenAlex(hc, opts(cfg.OpenAlexURL), logger)
	crossref := registry.NewCrossref(hc, opts(cfg.CrossrefURL), logger)
	return openalex, []adapter.Registry{openalex, crossref}
}
