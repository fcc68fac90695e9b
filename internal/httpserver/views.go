package httpserver

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/blackmichael/agent-manager/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}

// explorerPage is the data behind the raw record explorer.
type explorerPage struct {
	Query    string
	Records  []domain.RawRecord
	LoadedAt time.Time
	Notices  []domain.Notice
}

func parseTemplates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"clock": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("15:04:05")
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("02 Jan 2006 15:04")
		},
		"orDash": func(s string) string {
			if s == "" {
				return "-"
			}
			return s
		},
		"lastNotice": func(notices []domain.Notice) *domain.Notice {
			if len(notices) == 0 {
				return nil
			}
			return &notices[len(notices)-1]
		},
	}).ParseFS(templateFS, "templates/*.html"))
}
