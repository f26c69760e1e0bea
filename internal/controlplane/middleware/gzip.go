package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	// event streams must be flushed as written
	excludedPaths = []string{
		"/v1/events",
	}
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg",
	}
)

func Gzip() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
