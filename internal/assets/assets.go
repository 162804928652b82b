package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed public templates
var content embed.FS

// Templates returns the embedded HTML page templates.
func Templates() fs.FS {
	sub, err := fs.Sub(content, "templates")
	if err != nil {
		panic(fmt.Sprintf("assets: failed to load embedded templates: %v", err))
	}
	return sub
}

// Handler returns an http.Handler that serves the static files under /public.
//
// When dir is non-empty and the directory exists, files are served from the
// filesystem so stylesheets can be edited without a rebuild. Otherwise the
// embedded copy is used. Directory listings are never served.
// Panics if the embedded assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	var fileSystem http.FileSystem

	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			fileSystem = http.Dir(dir)
		}
	}

	if fileSystem == nil {
		publicFS, err := fs.Sub(content, "public")
		if err != nil {
			panic(fmt.Sprintf("assets: failed to load embedded public files: %v", err))
		}
		fileSystem = http.FS(publicFS)
	}

	fileServer := http.FileServer(fileSystem)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upath := path.Clean("/" + r.URL.Path)
		if upath == "/" {
			http.NotFound(w, r)
			return
		}

		f, err := fileSystem.Open(upath[1:])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		info, err := f.Stat()
		f.Close()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}
