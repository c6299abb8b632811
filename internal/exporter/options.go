package exporter

import (
	"fmt"
	"strings"

	"agmipx/internal/config"
)

// DefaultDownloadName is the base file name for downloads
const DefaultDownloadName = "AgMIP_Explorer_Data"

// Options controls how values are rendered and what files are called
type Options struct {
	// Precision is the number of decimals in text formats; negative keeps full precision
	Precision    int
	CSVBOM       bool
	DownloadName string
}

// OptionsFrom builds exporter options from the display configuration
func OptionsFrom(cfg config.DisplayConfig) Options {
	return Options{
		Precision:    cfg.Precision,
		CSVBOM:       cfg.CSVBOM,
		DownloadName: cfg.DownloadName,
	}
}

// FileName returns the download name for format
func (o Options) FileName(format Format) string {
	name := o.DownloadName
	if name == "" {
		name = DefaultDownloadName
	}
	return name + format.Extension()
}

// Format is an export file format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatHTML    Format = "html"
	FormatXLSX    Format = "xlsx"
	FormatArrow   Format = "arrow"
	FormatMsgpack Format = "msgpack"
)

// Formats lists the supported formats
var Formats = []Format{FormatCSV, FormatJSON, FormatHTML, FormatXLSX, FormatArrow, FormatMsgpack}

// ParseFormat accepts a format name or a file extension
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	case "xlsx", "xls", "excel":
		return FormatXLSX, nil
	case "arrow", "feather", "ipc":
		return FormatArrow, nil
	case "msgpack", "mpk", "pickle":
		return FormatMsgpack, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	switch f {
	case FormatMsgpack:
		return ".mpk"
	default:
		return "." + string(f)
	}
}

// ContentType returns the MIME type for HTTP downloads
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatArrow:
		return "application/vnd.apache.arrow.file"
	case FormatMsgpack:
		return "application/msgpack"
	}
	return "application/octet-stream"
}
