// Package dashboard serves the static analytics pages behind the login.
package dashboard

import (
	"bytes"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/SghaierFiras/armada-analytics-hub-sub001/herr"
	"github.com/SghaierFiras/armada-analytics-hub-sub001/route"
)

const IndexFile = "index.html"

// Pages serves a fixed set of files from fsys. "/" maps to index.html and
// each named page to "/<name>".
type Pages struct {
	fsys  fs.FS
	pages []string
}

func New(fsys fs.FS, pages []string) *Pages {
	return &Pages{fsys: fsys, pages: pages}
}

// Register adds a GET route per page to table, each running steps first.
func (p *Pages) Register(table *route.Table, steps ...route.Step) {
	table.Get("/", p.Serve(IndexFile), steps...)
	seen := map[string]bool{IndexFile: true}
	for _, page := range p.pages {
		if seen[page] {
			continue
		}
		seen[page] = true
		table.Get("/"+page, p.Serve(page), steps...)
	}
}

func (p *Pages) Serve(name string) herr.Wrap {
	return func(w http.ResponseWriter, r *http.Request) *herr.Error {
		data, err := fs.ReadFile(p.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			return herr.NotFound("dashboard page missing: " + name)
		}
		if err != nil {
			return herr.Internal(err, "reading dashboard page "+name)
		}

		modTime := time.Time{}
		if info, err := fs.Stat(p.fsys, name); err == nil {
			modTime = info.ModTime()
		}

		w.Header().Set("Cache-Control", "no-store")
		http.ServeContent(w, r, name, modTime, bytes.NewReader(data))
		return nil
	}
}
