package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/gleanlabs/glean/internal/annotate"
	"github.com/gleanlabs/glean/internal/config"
	"github.com/gleanlabs/glean/internal/export"
	"github.com/gleanlabs/glean/internal/ingest"
	"github.com/gleanlabs/glean/internal/providers"
	"github.com/gleanlabs/glean/internal/schema"
)

var extractFlags struct {
	taskFile string
	preset   string

	providerName string
	model        string
	modelURL     string
	apiKey       string

	passes        int
	workers       int
	maxCharBuffer int
	temperature   float64
	timeout       time.Duration
	fence         bool
	useSchema     bool

	format  string
	output  string
	classes []string
}

var extractCmd = &cobra.Command{
	Use:   "extract [source]",
	Short: "Extract grounded entities from a document",
	Long: `Extract runs the full pipeline over one document. The source is a file
path, an http(s) URL, or "-" for stdin. The task comes from --task (a
YAML/JSON task definition) or --preset (a built-in task).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		task, err := loadTask()
		if err != nil {
			return err
		}

		provider, err := buildProvider(cfgManager.Get())
		if err != nil {
			return err
		}

		document, err := ingest.Read(cmd.Context(), args[0], os.Stdin)
		if err != nil {
			return err
		}

		fence, useSchema := providers.OutputDefaults(provider.Name())
		if cmd.Flags().Changed("fence") {
			fence = extractFlags.fence
		}
		if cmd.Flags().Changed("schema") {
			useSchema = extractFlags.useSchema
		}

		ann, err := annotate.New(provider, task, annotateOptions(cfgManager.Get(), fence, useSchema))
		if err != nil {
			return err
		}
		res, err := ann.Annotate(cmd.Context(), document)
		if err != nil {
			return err
		}
		res.Extractions = export.FilterClasses(res.Extractions, extractFlags.classes)

		out, closeOut, err := openOutput(extractFlags.output)
		if err != nil {
			return err
		}
		defer closeOut()

		switch extractFlags.format {
		case "jsonl":
			return export.WriteJSONL(out, res)
		case "json":
			return export.WriteJSON(out, res)
		case "html":
			return export.WriteHTML(out, task.Name, res)
		default:
			return fmt.Errorf("unknown format %q (want jsonl, json, or html)", extractFlags.format)
		}
	},
}

func init() {
	f := extractCmd.Flags()
	f.StringVarP(&extractFlags.taskFile, "task", "t", "", "task definition file (YAML or JSON)")
	f.StringVar(&extractFlags.preset, "preset", "", "built-in task preset (see 'glean task presets')")

	f.StringVar(&extractFlags.providerName, "provider", "", "configured provider entry to use")
	f.StringVarP(&extractFlags.model, "model", "m", "", "model ID, e.g. gemini-2.5-flash or gpt-4o-mini")
	f.StringVar(&extractFlags.modelURL, "model-url", "", "base URL for a local Ollama-compatible backend")
	f.StringVar(&extractFlags.apiKey, "api-key", "", "API key (overrides configuration)")

	f.IntVar(&extractFlags.passes, "passes", 0, "extraction passes (more passes improve recall)")
	f.IntVar(&extractFlags.workers, "workers", 0, "max concurrent model calls")
	f.IntVar(&extractFlags.maxCharBuffer, "max-char-buffer", -1, "chunk size budget in bytes (0 = single chunk)")
	f.Float64Var(&extractFlags.temperature, "temperature", -1, "sampling temperature (default from configuration)")
	f.DurationVar(&extractFlags.timeout, "timeout", 0, "per-request timeout")
	f.BoolVar(&extractFlags.fence, "fence", false, "ask for fenced JSON output (default depends on the backend)")
	f.BoolVar(&extractFlags.useSchema, "schema", false, "use backend-native schema constraints (default depends on the backend)")

	f.StringVarP(&extractFlags.format, "format", "f", "jsonl", "output format: jsonl, json, or html")
	f.StringVarP(&extractFlags.output, "output", "o", "", "output file (default stdout)")
	f.StringSliceVar(&extractFlags.classes, "classes", nil, "keep only these extraction classes")
}

func loadTask() (*schema.TaskDefinition, error) {
	switch {
	case extractFlags.taskFile != "" && extractFlags.preset != "":
		return nil, fmt.Errorf("--task and --preset are mutually exclusive")
	case extractFlags.taskFile != "":
		return schema.LoadTask(extractFlags.taskFile)
	case extractFlags.preset != "":
		return schema.Preset(extractFlags.preset)
	default:
		return nil, fmt.Errorf("no task specified: pass --task or --preset")
	}
}

// buildProvider resolves the backend from flags and configuration.
// Explicit --model/--model-url flags win over the configured entry; a
// bare --model still borrows the API key of a configured entry in the
// same backend family.
func buildProvider(cfg *config.Config) (providers.Provider, error) {
	backend := providers.BackendConfig{
		ModelID:  extractFlags.model,
		ModelURL: extractFlags.modelURL,
		APIKey:   extractFlags.apiKey,
		Timeout:  extractFlags.timeout,
	}

	if backend.ModelID == "" && backend.ModelURL == "" {
		name := extractFlags.providerName
		if name == "" {
			name = cfg.Defaults.Provider
		}
		configured, err := cfg.ToBackendConfig(name)
		if err != nil {
			return nil, err
		}
		configured.Timeout = backend.Timeout
		if backend.APIKey != "" {
			configured.APIKey = backend.APIKey
		}
		backend = configured
	} else if backend.APIKey == "" && backend.ModelURL == "" {
		backend.APIKey = configuredKeyFor(cfg, backend.ModelID)
	}

	return providers.ForModel(backend)
}

// configuredKeyFor finds an API key for a model given only by flag:
// the configured entry in the same backend family, preferring the
// default entry, then the rest in name order.
func configuredKeyFor(cfg *config.Config, model string) string {
	family := providers.Family(model)
	if family == "" {
		return ""
	}
	if def, ok := cfg.Providers[cfg.Defaults.Provider]; ok {
		if providers.Family(def.Model) == family && def.APIKey != "" {
			return config.ResolveEnvVars(def.APIKey)
		}
	}
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := cfg.Providers[name]
		if providers.Family(p.Model) == family && p.APIKey != "" {
			return config.ResolveEnvVars(p.APIKey)
		}
	}
	return ""
}

func annotateOptions(cfg *config.Config, fence, useSchema bool) annotate.Options {
	temperature := cfg.Defaults.Temperature
	if extractFlags.temperature >= 0 {
		temperature = extractFlags.temperature
	}
	opts := annotate.Options{
		Passes:               cfg.Defaults.Passes,
		MaxWorkers:           cfg.Defaults.MaxWorkers,
		MaxCharBuffer:        cfg.Defaults.MaxCharBuffer,
		Temperature:          &temperature,
		FenceOutput:          fence,
		UseSchemaConstraints: useSchema,
		Timeout:              extractFlags.timeout,
		Logger:               logger,
	}
	if extractFlags.passes > 0 {
		opts.Passes = extractFlags.passes
	}
	if extractFlags.workers > 0 {
		opts.MaxWorkers = extractFlags.workers
	}
	if extractFlags.maxCharBuffer >= 0 {
		opts.MaxCharBuffer = extractFlags.maxCharBuffer
	}
	return opts
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
