package web

import (
	"embed"
	"html/template"
	"io/fs"
	"math"
	"net/url"
	"time"

	"github.com/edvart/wotc-admin/internal/store"
)

//go:embed templates
var embeddedTemplates embed.FS

// DefaultTemplates parses the templates compiled into the binary.
func DefaultTemplates() (*template.Template, error) {
	sub, err := fs.Sub(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	return LoadTemplates(sub)
}

// LoadTemplates loads all templates from the filesystem.
func LoadTemplates(templatesFS fs.FS) (*template.Template, error) {
	tmpl := template.New("").Funcs(templateFuncs())

	patterns := []string{
		"layouts/*.html",
		"pages/*.html",
	}

	for _, pattern := range patterns {
		matches, err := fs.Glob(templatesFS, pattern)
		if err != nil {
			return nil, err
		}

		for _, match := range matches {
			content, err := fs.ReadFile(templatesFS, match)
			if err != nil {
				return nil, err
			}

			if _, err := tmpl.Parse(string(content)); err != nil {
				return nil, err
			}
		}
	}

	return tmpl, nil
}

// templateFuncs returns the common template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"pathEscape": url.PathEscape,
		"percent": func(count, total int64) int {
			if total == 0 {
				return 0
			}
			return int(math.Round(float64(count) * 100 / float64(total)))
		},
		"resultTotal": func(stats store.MatchStats) int64 {
			return statTotal(stats, store.PickHome, store.PickDraw, store.PickAway)
		},
		"ouTotal": func(stats store.MatchStats) int64 {
			return statTotal(stats, store.PickOver, store.PickUnder)
		},
		"count": func(stats store.MatchStats, pick string) int64 {
			return stats[pick]
		},
		"statsFor": func(all map[string]store.MatchStats, matchID string) store.MatchStats {
			return all[matchID]
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("2006-01-02 15:04")
		},
		"teamName": func(names map[string]string, id string) string {
			if n, ok := names[id]; ok {
				return n
			}
			return id + "?"
		},
	}
}
