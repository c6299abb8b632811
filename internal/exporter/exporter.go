package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"agmipx/internal/config"
	"agmipx/internal/infrastructure"
)

// ErrUnsupportedFormat is returned for unknown export formats
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Exporter renders frames to writers or to files in the exports directory
type Exporter struct {
	paths   *config.Paths
	opts    Options
	logger  *slog.Logger
	metrics *infrastructure.Metrics
}

// New creates an exporter. paths may be nil when Save is not used.
func New(paths *config.Paths, opts Options, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		paths:  paths,
		opts:   opts,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// WithMetrics records export counts and sizes on m
func (e *Exporter) WithMetrics(m *infrastructure.Metrics) *Exporter {
	e.metrics = m
	return e
}

// Options returns the rendering options
func (e *Exporter) Options() Options {
	return e.opts
}

// FileName returns the download file name for format
func (e *Exporter) FileName(format Format) string {
	return e.opts.FileName(format)
}

// Write renders f to w and returns the number of bytes written
func (e *Exporter) Write(ctx context.Context, w io.Writer, f *Frame, format Format) (int64, error) {
	cw := &countingWriter{w: w}
	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(cw, f, e.opts)
	case FormatJSON:
		err = WriteJSON(cw, f)
	case FormatHTML:
		err = WriteHTML(cw, f, e.opts)
	case FormatXLSX:
		err = WriteXLSX(cw, f)
	case FormatArrow:
		err = WriteArrow(cw, f)
	case FormatMsgpack:
		err = WriteMsgpack(cw, f)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	status := "success"
	if err != nil {
		status = "failure"
		e.logger.ErrorContext(ctx, "export failed",
			slog.String("format", string(format)),
			slog.String("error", err.Error()))
	} else {
		e.logger.InfoContext(ctx, "export written",
			slog.String("format", string(format)),
			slog.Int("rows", f.NumRows()),
			slog.Int("columns", len(f.Columns)),
			slog.Int64("bytes", cw.n))
	}
	if e.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("format", string(format)),
			attribute.String("status", status),
		)
		e.metrics.ExportsTotal.Add(ctx, 1, attrs)
		e.metrics.ExportBytes.Add(ctx, cw.n, attrs)
	}
	return cw.n, err
}

// Save writes f to the exports directory under the download name and returns the path
func (e *Exporter) Save(ctx context.Context, f *Frame, format Format) (string, error) {
	if e.paths == nil {
		return "", fmt.Errorf("exporter has no exports directory")
	}
	return e.SaveAs(ctx, e.paths.ExportPath(e.FileName(format)), f, format)
}

// SaveAs writes f to path
func (e *Exporter) SaveAs(ctx context.Context, path string, f *Frame, format Format) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := e.Write(ctx, file, f, format); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return path, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
