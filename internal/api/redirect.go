package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRedirectRouter answers every GET and POST, whatever the path, with a
// 302 to target.
func NewRedirectRouter(target string, logger *logrus.Logger) http.Handler {
	if target == "" {
		target = "/api/"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.NoRoute(func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodPost:
			c.Redirect(http.StatusFound, target)
		default:
			c.Header("Allow", "GET, POST")
			c.AbortWithStatus(http.StatusMethodNotAllowed)
		}
	})
	return r
}
