package server

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var proxiedMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

func hasForwardedBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// backendURL maps /api/proxy/<path>?<query> onto the backend
func (s *Server) backendURL(c *gin.Context) string {
	target := s.config.Server.BackendURL + "/" + strings.TrimPrefix(c.Param("path"), "/")
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}
	return target
}

func (s *Server) proxyFailed(c *gin.Context, err error) {
	s.logger.Error().
		Err(err).
		Str(requestIDKey, c.GetString(requestIDKey)).
		Str("path", c.Request.URL.Path).
		Msg("Proxy request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Proxy request failed",
		"details": err.Error(),
	})
}

func (s *Server) proxy(c *gin.Context) {
	method := c.Request.Method

	var body io.Reader
	if hasForwardedBody(method) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			s.proxyFailed(c, err)
			return
		}
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), method, s.backendURL(c), body)
	if err != nil {
		s.proxyFailed(c, err)
		return
	}

	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if hasForwardedBody(method) {
		if contentType := c.GetHeader("Content-Type"); contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
	}

	resp, err := s.proxyClient.Do(req)
	if err != nil {
		s.proxyFailed(c, err)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.proxyFailed(c, err)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	s.logger.Debug().
		Str(requestIDKey, c.GetString(requestIDKey)).
		Str("method", method).
		Str("target", req.URL.String()).
		Int("status", resp.StatusCode).
		Msg("Proxied request")

	c.Data(resp.StatusCode, contentType, data)
}
