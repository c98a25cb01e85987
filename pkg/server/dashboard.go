package server

import (
	"embed"
	"html/template"
	"io"

	"github.com/itohio/adcscope/pkg/acquire"
)

//go:embed templates/index.html
var templates embed.FS

var dashboardTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"seconds": func(s acquire.Settings) float64 { return s.UpdateInterval.Seconds() },
}).ParseFS(templates, "templates/index.html"))

type dashboardData struct {
	SampleRate float64
	Settings   acquire.Settings
}

func renderDashboard(w io.Writer, data dashboardData) error {
	return dashboardTemplate.Execute(w, data)
}
