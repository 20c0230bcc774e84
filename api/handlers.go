package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/health-corpus/internal/store"
	"github.com/stellarlinkco/health-corpus/internal/variant"
)

const defaultBuildsLimit = 50

type buildResponse struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Corpus       string         `json:"corpus"`
	Seed         int64          `json:"seed"`
	TrainRatio   float64        `json:"train_ratio"`
	TotalSources int            `json:"total_sources"`
	Skipped      []string       `json:"skipped,omitempty"`
	TrainSize    int            `json:"train_size"`
	TestSize     int            `json:"test_size"`
	Config       map[string]any `json:"config,omitempty"`
}

type variantResponse struct {
	ID         string    `json:"id"`
	BuildID    string    `json:"build_id"`
	Variant    string    `json:"variant"`
	TrainSize  int       `json:"train_size"`
	TestSize   int       `json:"test_size"`
	OutputPath string    `json:"output_path"`
	Published  bool      `json:"published"`
	CreatedAt  time.Time `json:"created_at"`
}

type variantInfo struct {
	Name   string `json:"name"`
	System string `json:"system"`
}

type sourceInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListBuilds(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), defaultBuildsLimit)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	builds, err := s.store.ListBuilds(c.Request.Context(), store.BuildFilter{
		Corpus: strings.TrimSpace(c.Query("corpus")),
		Since:  since,
		Until:  until,
		Limit:  limit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]buildResponse, 0, len(builds))
	for _, b := range builds {
		out = append(out, toBuildResponse(b))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetBuild(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing build id"))
		return
	}

	build, err := s.store.GetBuild(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("build %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, toBuildResponse(build))
}

func (s *Server) handleGetBuildVariants(c *gin.Context) {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, errors.New("store not configured"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing build id"))
		return
	}

	if _, err := s.store.GetBuild(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("build %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	variants, err := s.store.GetVariants(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]variantResponse, 0, len(variants))
	for _, v := range variants {
		out = append(out, variantResponse{
			ID:         v.ID,
			BuildID:    v.BuildID,
			Variant:    v.Variant,
			TrainSize:  v.TrainSize,
			TestSize:   v.TestSize,
			OutputPath: v.OutputPath,
			Published:  v.Published,
			CreatedAt:  v.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListVariants(c *gin.Context) {
	var variantsDir string
	if s.config != nil {
		variantsDir = s.config.Corpus.VariantsDir
	}

	known, err := variant.Known(variantsDir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	out := make([]variantInfo, 0, len(known))
	for _, v := range known {
		out = append(out, variantInfo{Name: v.Name, System: v.System})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListSources(c *gin.Context) {
	var sources map[string]string
	if s.config != nil {
		sources = s.config.Corpus.Sources
	}

	out := make([]sourceInfo, 0, len(sources))
	for name, path := range sources {
		out = append(out, sourceInfo{Name: name, Path: path})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

func toBuildResponse(b *store.BuildRecord) buildResponse {
	if b == nil {
		return buildResponse{}
	}
	return buildResponse{
		ID:           b.ID,
		StartedAt:    b.StartedAt,
		FinishedAt:   b.FinishedAt,
		Corpus:       b.Corpus,
		Seed:         b.Seed,
		TrainRatio:   b.TrainRatio,
		TotalSources: b.TotalSources,
		Skipped:      b.Skipped,
		TrainSize:    b.TrainSize,
		TestSize:     b.TestSize,
		Config:       b.Config,
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}
