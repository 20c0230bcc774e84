package api

import (
	"errors"
	"os"
	"strings"
)

func (s *Server) registerRoutes() error {
	if s == nil || s.router == nil {
		return nil
	}

	api := s.router.Group("/api")
	apiKey := strings.TrimSpace(os.Getenv("CORPUS_API_KEY"))
	if apiKey != "" {
		api.Use(apiKeyAuthMiddleware(apiKey))
	} else if strings.EqualFold(strings.TrimSpace(os.Getenv("CORPUS_DISABLE_AUTH")), "true") {
		// Explicitly allow unauthenticated access.
	} else {
		return errors.New("api: missing auth configuration: set CORPUS_API_KEY or set CORPUS_DISABLE_AUTH=true")
	}

	api.GET("/health", s.handleHealth)

	api.GET("/builds", s.handleListBuilds)
	api.GET("/builds/:id", s.handleGetBuild)
	api.GET("/builds/:id/variants", s.handleGetBuildVariants)

	api.GET("/variants", s.handleListVariants)
	api.GET("/sources", s.handleListSources)

	return nil
}
