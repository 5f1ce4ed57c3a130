package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// spaHandler serves the static web UI assets out of webDir. Any path that
// does not match an existing file falls back to index.html.
func spaHandler(webDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		absWebDir, err := filepath.Abs(webDir)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}

		reqPath := c.Request.URL.Path
		if reqPath == "/" {
			reqPath = "/index.html"
		}

		cleanPath := filepath.Clean(reqPath)
		filePath := filepath.Join(absWebDir, cleanPath)

		absFilePath, err := filepath.Abs(filePath)
		if err != nil || (!strings.HasPrefix(absFilePath, absWebDir+string(filepath.Separator)) && absFilePath != absWebDir) {
			absFilePath = filepath.Join(absWebDir, "index.html")
		}

		if serveIfExists(c, absFilePath) {
			return
		}

		indexPath := filepath.Join(absWebDir, "index.html")
		if serveIfExists(c, indexPath) {
			return
		}

		slog.Warn("web UI not built", "web_dir", webDir)
		c.String(http.StatusNotFound, "web UI assets not found")
	}
}

func serveIfExists(c *gin.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFile(c.Writer, c.Request, path)
	return true
}
