package echoweb

import (
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	appfs "github.com/wartburg/mcsp/fs"
)

const pagesDir = "templates/pages"

// renderer renders the page templates. Each page is parsed together with the
// shared layout & partials (files starting with "_").
type renderer struct {
	pages   map[string]*template.Template
	observe func(name string, data echo.Map)
}

func newRenderer(app *echo.Echo) (*renderer, error) {
	funcs := template.FuncMap{
		"url": app.Reverse,
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"isodate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"fielderr": func(errs map[string]string, field string) string { return errs[field] },
	}

	var shared, pages []string
	err := fs.WalkDir(appfs.FS, pagesDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".html" {
			return err
		}
		if strings.HasPrefix(d.Name(), "_") {
			shared = append(shared, p)
		} else {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing page templates")
	}

	rdr := &renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		files := append(append([]string(nil), shared...), p)
		tmpl, err := template.New(path.Base(p)).Funcs(funcs).ParseFS(appfs.FS, files...)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", p)
		}
		rdr.pages[strings.TrimPrefix(p, pagesDir+"/")] = tmpl
	}
	return rdr, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	if r.observe != nil {
		m, _ := data.(echo.Map)
		r.observe(name, m)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}
