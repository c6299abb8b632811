package exporter

import (
	"fmt"
	"html/template"
	"io"
)

var htmlPage = template.Must(template.New("frame").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{- if .Title}}
<h1>{{.Title}}</h1>
{{- end}}
<table border="1" class="dataframe">
<thead>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// WriteHTML writes the frame as a standalone HTML page
func WriteHTML(w io.Writer, f *Frame, opts Options) error {
	data := struct {
		Title  string
		Header []string
		Rows   [][]string
	}{
		Title:  f.Title,
		Header: f.Names(),
		Rows:   textRows(f, opts.Precision),
	}
	if err := htmlPage.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render html: %w", err)
	}
	return nil
}
