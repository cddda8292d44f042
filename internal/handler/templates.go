package handler

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strconv"

	"who-is-live/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// DashboardData is the model rendered by the dashboard template
type DashboardData struct {
	View  domain.View
	Query domain.ViewQuery
}

// Templates holds the parsed HTML templates
type Templates struct {
	tmpl *template.Template
}

// TemplateFuncs returns the custom template functions used across all templates
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		// trend renders a viewer trend as a signed percentage
		"trend": func(pct int) string {
			switch {
			case pct > 0:
				return fmt.Sprintf("▲ %d%%", pct)
			case pct < 0:
				return fmt.Sprintf("▼ %d%%", -pct)
			default:
				return "–"
			}
		},
		// viewers formats a viewer count with thousands separators
		"viewers": formatThousands,
		// queryURL builds a dashboard link preserving the current query
		"queryURL": func(q domain.ViewQuery, snapshotID string, showAll bool) string {
			v := url.Values{}
			if q.Search != "" {
				v.Set("search", q.Search)
			}
			if q.Filter != "" && q.Filter != domain.FilterAll {
				v.Set("filter", string(q.Filter))
			}
			if showAll {
				v.Set("showAll", "true")
				v.Set("snapshot", snapshotID)
			}
			if len(v) == 0 {
				return "/"
			}
			return "/?" + v.Encode()
		},
	}
}

// LoadTemplates parses the embedded HTML templates
func LoadTemplates() *Templates {
	tmpl := template.Must(template.New("").Funcs(TemplateFuncs()).ParseFS(templateFS, "templates/*.html"))
	return &Templates{tmpl: tmpl}
}

// RenderDashboard writes the dashboard page for data
func (t *Templates) RenderDashboard(w io.Writer, data DashboardData) error {
	return t.tmpl.ExecuteTemplate(w, "dashboard.html", data)
}

func formatThousands(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
