package main

import (
	"net/http"

	"github.com/rs/zerolog"

	"playlistqa/internal/config"
	"playlistqa/internal/http/middleware"
	"playlistqa/internal/httpapi"
)

func newHTTPHandler(cfg config.Config, svc httpapi.PlaylistService, logger zerolog.Logger) http.Handler {
	var handler http.Handler = httpapi.New(svc, logger).Routes()
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.RequestLogging(logger)(handler)
	return middleware.CORS(cfg.CORS.AllowedOrigins)(handler)
}
