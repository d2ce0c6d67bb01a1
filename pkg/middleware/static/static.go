// Package static serves files from a directory, either as middleware in front
// of other handlers or as the terminal fallback of a router.
package static

import (
	"net/http"
	"path"
	"strings"

	"github.com/nimburion/devserver/pkg/server/router"
)

// ServeFileSystem extends http.FileSystem with an Exists helper that
// understands the URL prefix that static middleware uses before delegating
// to the underlying filesystem.
type ServeFileSystem interface {
	http.FileSystem
	Exists(prefix, requestPath string) bool
}

// Serve returns middleware that serves files from the provided filesystem.
// If the requested path exists, the middleware writes the file and stops the
// chain; otherwise it calls the next handler.
func Serve(urlPrefix string, fs ServeFileSystem) router.MiddlewareFunc {
	prefix := normalizePrefix(urlPrefix)

	fileserver := http.FileServer(fs)
	if prefix != "" {
		fileserver = http.StripPrefix(prefix, fileserver)
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if readMethod(c.Request().Method) && fs.Exists(prefix, c.Request().URL.Path) {
				fileserver.ServeHTTP(c.Response(), c.Request())
				return nil
			}
			return next(c)
		}
	}
}

// Handler returns a terminal handler resolving requests against fs:
// an existing file is served with a content type inferred from its name, a
// directory serves its index.html (redirecting to the trailing-slash form
// first), and anything else is a 404.
func Handler(fs ServeFileSystem) router.HandlerFunc {
	serve := Serve("", fs)
	return serve(router.NotFound)
}

// Root is Handler over the local directory root.
func Root(root string) router.HandlerFunc {
	return Handler(LocalFile(root, true))
}

func readMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return ""
	}
	cleaned := path.Clean("/" + strings.Trim(prefix, "/"))
	if cleaned == "/" {
		return ""
	}
	return cleaned
}

func sanitizeRequestPath(prefix, requestPath string) (string, bool) {
	cleaned := path.Clean("/" + requestPath)

	normalizedPrefix := normalizePrefix(prefix)
	if normalizedPrefix == "" {
		return cleaned, true
	}

	if cleaned == normalizedPrefix {
		return "/", true
	}

	if strings.HasPrefix(cleaned, normalizedPrefix+"/") {
		return strings.TrimPrefix(cleaned, normalizedPrefix), true
	}

	return "", false
}
