// Package web holds the page that the monitoring server shows.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevEnv names the variable that makes the server read the page from disk
// instead of the binary. It is either a boolean, to use the dist directory
// next to this file, or the path of a directory.
const DevEnv = "AVALONSIM_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// GetAssets returns the files of the monitoring page.
func GetAssets() http.FileSystem {
	if dir := devDir(); dir != "" {
		fmt.Fprintf(os.Stderr, "Serving the monitoring page from %s\n", dir)
		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func devDir() string {
	v := os.Getenv(DevEnv)
	if v == "" {
		return ""
	}

	on, err := strconv.ParseBool(v)
	if err != nil {
		return v
	}

	if !on {
		return ""
	}

	_, self, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the monitoring page sources")
	}

	return filepath.Join(filepath.Dir(self), "dist")
}
