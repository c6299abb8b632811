package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"agmipx/internal/app"
	"agmipx/internal/config"
	"agmipx/internal/dataset"
	"agmipx/internal/exporter"
	"agmipx/internal/infrastructure"
	"agmipx/internal/middleware"
	"agmipx/internal/services"
	"agmipx/internal/validation"
	api "agmipx/pkg/contracts/api/v1"
)

func addCommands(root *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the explorer HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve}
	cmd.Flags().Int("port", 0, "listen port (default from config)")
	cmd.Flags().String("data", "", "dataset file (default from config)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "prep dataset|directory",
		Short: "Build the uniques cache next to a dataset file, or every dataset in a directory",
		Args:  cobra.ExactArgs(1),
		RunE:  prep}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "run",
		Short: "Search, reshape and export without a server",
		Args:  cobra.NoArgs,
		RunE:  run}
	cmd.Flags().String("data", "", "dataset file (default from config)")
	cmd.Flags().StringArray("select", nil, "selection as Field=v1,v2 (repeatable)")
	cmd.Flags().IntSlice("years", nil, "explicit years")
	cmd.Flags().Int("year-from", 0, "first year of a range")
	cmd.Flags().Int("year-to", 0, "last year of a range")
	cmd.Flags().String("preset", "", "plot preset name")
	cmd.Flags().String("row", "", "row field")
	cmd.Flags().String("col", "", "column field")
	cmd.Flags().String("value", "", "value field (default Value)")
	cmd.Flags().String("agg", "", "aggregation: sum, mean, count, none")
	cmd.Flags().String("fill", "", "fill method: linear, spline, pad")
	cmd.Flags().String("index", "", "index reference label")
	cmd.Flags().String("index-axis", "row", "index axis: row or col")
	cmd.Flags().String("harmonize-row", "", "harmonize base row label")
	cmd.Flags().String("harmonize-col", "", "harmonize base column label")
	cmd.Flags().String("target", services.TargetPivot, "what to export: results or pivot")
	cmd.Flags().String("format", "csv", "export format")
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	root.AddCommand(cmd)
}

// loadConfig reads the config named by --config and applies --log-level
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// cliLogger logs to stderr so exports written to stdout stay clean
func cliLogger(cfg *config.Config) *slog.Logger {
	return infrastructure.NewLogger(os.Stderr, cfg.Logging.Level)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if data, _ := cmd.Flags().GetString("data"); data != "" {
		cfg.Dataset.File = data
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run()
}

func prep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	files := validation.NewFileValidator(logger)

	targets := []string{args[0]}
	if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
		if targets, err = files.FindDatasets(args[0]); err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no dataset files in %s", args[0])
		}
	}

	loader := dataset.NewLoader(logger, false)
	for _, path := range targets {
		if err := files.ValidateDatasetFile(path); err != nil {
			return err
		}
		ds, err := loader.Load(cmd.Context(), path)
		if err != nil {
			return err
		}
		cachePath := dataset.CachePath(path)
		if err := dataset.WriteUniquesCacheFor(cachePath, path, ds.Uniques()); err != nil {
			return fmt.Errorf("failed to write uniques cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d records, %d models: wrote %s\n", ds.Len(), len(ds.Models()), cachePath)
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	flags := cmd.Flags()

	dataPath, _ := flags.GetString("data")
	if dataPath == "" {
		paths, err := cfg.ResolvePaths()
		if err != nil {
			return err
		}
		dataPath = paths.DatasetFile
	}
	files := validation.NewFileValidator(logger)
	if err := files.ValidateDatasetFile(dataPath); err != nil {
		return err
	}
	if out, _ := flags.GetString("out"); out != "" {
		if err := files.ValidateOutputFile(out); err != nil {
			return err
		}
	}

	search, err := searchRequest(cmd)
	if err != nil {
		return err
	}
	pivot := pivotRequest(cmd)
	validator := middleware.NewValidator()
	if err := validator.Struct(&search); err != nil {
		return err
	}
	target, _ := flags.GetString("target")
	formatName, _ := flags.GetString("format")
	format, err := exporter.ParseFormat(formatName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exp := exporter.New(nil, exporter.OptionsFrom(cfg.Display), logger)
	loader := dataset.NewLoader(logger, cfg.Dataset.UseCache)
	svc := services.NewExplorerService(loader, nil, exp, cfg.Display, logger)
	if err := svc.Load(ctx, dataPath); err != nil {
		return err
	}

	found, err := svc.Search(ctx, search)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d records match %s\n", found.Total, found.Criteria)

	if target == services.TargetPivot {
		if err := validator.Struct(&pivot); err != nil {
			return err
		}
		out, err := svc.Pivot(ctx, pivot)
		if err != nil {
			return err
		}
		printSteps(cmd.ErrOrStderr(), out)
	}

	return export(ctx, cmd, svc, target, format)
}

func export(ctx context.Context, cmd *cobra.Command, svc *services.ExplorerService, target string, format exporter.Format) error {
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := svc.Export(ctx, cmd.OutOrStdout(), target, format)
		return err
	}
	path, err := svc.ExportFile(ctx, target, format, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
	return nil
}

func printSteps(w io.Writer, out *api.PivotResponse) {
	fmt.Fprintf(w, "%s (%d x %d)\n", out.Title, len(out.Rows), len(out.Cols))
	for _, s := range out.Steps {
		line := fmt.Sprintf("  %-12s %-9s %4dms", s.Name, s.Status, s.DurationMS)
		if s.Message != "" {
			line += "  " + s.Message
		}
		fmt.Fprintln(w, line)
	}
}

func searchRequest(cmd *cobra.Command) (api.SearchRequest, error) {
	flags := cmd.Flags()
	raw, _ := flags.GetStringArray("select")
	selections, err := parseSelections(raw)
	if err != nil {
		return api.SearchRequest{}, err
	}

	req := api.SearchRequest{Selections: selections}
	req.Years, _ = flags.GetIntSlice("years")
	if flags.Changed("year-from") {
		from, _ := flags.GetInt("year-from")
		req.YearFrom = &from
	}
	if flags.Changed("year-to") {
		to, _ := flags.GetInt("year-to")
		req.YearTo = &to
	}
	return req, nil
}

// parseSelections turns Field=v1,v2 pairs into a selection map. Repeating a
// field adds to its values.
func parseSelections(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string][]string, len(pairs))
	for _, pair := range pairs {
		name, values, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid selection %q: want Field=value[,value]", pair)
		}
		f, err := dataset.ParseField(name)
		if err != nil {
			return nil, err
		}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out[f.String()] = append(out[f.String()], v)
			}
		}
	}
	return out, nil
}

func pivotRequest(cmd *cobra.Command) api.PivotRequest {
	flags := cmd.Flags()
	get := func(name string) string {
		v, _ := flags.GetString(name)
		return v
	}

	req := api.PivotRequest{
		Preset:      get("preset"),
		Row:         get("row"),
		Col:         get("col"),
		Value:       get("value"),
		Aggregation: get("agg"),
		Fill:        get("fill"),
	}
	if ref := get("index"); ref != "" {
		req.Index = &api.IndexRequest{Reference: ref, Axis: get("index-axis")}
	}
	if row, col := get("harmonize-row"), get("harmonize-col"); row != "" || col != "" {
		req.Harmonize = &api.HarmonizeRequest{BaseRow: row, BaseCol: col}
	}
	return req
}
