// Package backup mirrors meals into a GitHub repository as one JSON file
// per month through the contents API.
package backup

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"macro-tracker-api/internal/config"
	"macro-tracker-api/internal/nutrition"
)

var ErrDisabled = errors.New("github backup is not configured")

type GitHub struct {
	cfg    config.GitHubConfig
	client *http.Client
	log    *zap.Logger
	loc    *time.Location
}

// New returns a client for cfg. loc decides which month a meal falls in.
func New(cfg config.GitHubConfig, loc *time.Location, log *zap.Logger) *GitHub {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	return &GitHub{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
		loc:    loc,
	}
}

func (g *GitHub) Enabled() bool { return g.cfg.Enabled() }

// MonthPath is the repository path holding the meals of one month.
func (g *GitHub) MonthPath(year int, month time.Month) string {
	return fmt.Sprintf("%s/%d/%02d.json", strings.Trim(g.cfg.Dir, "/"), year, month)
}

// Sync groups meals by month and writes every month file. It returns the
// number of files written.
func (g *GitHub) Sync(ctx context.Context, meals []nutrition.Meal) (int, error) {
	if !g.Enabled() {
		return 0, ErrDisabled
	}
	start := time.Now()
	grouped := make(map[string][]nutrition.Meal)
	for _, meal := range meals {
		t := meal.DateTime.In(g.loc)
		key := g.MonthPath(t.Year(), t.Month())
		grouped[key] = append(grouped[key], meal)
	}

	paths := make([]string, 0, len(grouped))
	for p := range grouped {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	written := 0
	for _, path := range paths {
		records := grouped[path]
		sort.Slice(records, func(i, j int) bool { return records[i].DateTime.Before(records[j].DateTime) })
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return written, fmt.Errorf("encode %s: %w", path, err)
		}
		if err := g.putFile(ctx, path, data); err != nil {
			return written, err
		}
		written++
	}
	g.log.Info("github sync complete",
		zap.Int("files", written),
		zap.Int("meals", len(meals)),
		zap.Duration("took", time.Since(start)))
	return written, nil
}

// Fetch reads one month file back. A missing file yields no meals.
func (g *GitHub) Fetch(ctx context.Context, year int, month time.Month) ([]nutrition.Meal, error) {
	if !g.Enabled() {
		return nil, ErrDisabled
	}
	path := g.MonthPath(year, month)
	file, err := g.getFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return []nutrition.Meal{}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	var meals []nutrition.Meal
	if err := json.Unmarshal(raw, &meals); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	g.log.Debug("loaded month from github", zap.String("path", path), zap.Int("meals", len(meals)))
	return meals, nil
}

type contentFile struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (g *GitHub) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/contents/%s", strings.TrimRight(g.cfg.BaseURL, "/"), g.cfg.Repo, path)
}

func (g *GitHub) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+g.cfg.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// getFile returns nil, nil when the path does not exist yet.
func (g *GitHub) getFile(ctx context.Context, path string) (*contentFile, error) {
	url := g.contentsURL(path)
	if g.cfg.Branch != "" {
		url += "?ref=" + g.cfg.Branch
	}
	req, err := g.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("github get %s: status %d", path, resp.StatusCode)
	}
	var file contentFile
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("github get %s: %w", path, err)
	}
	return &file, nil
}

// putFile creates or replaces path; replacing needs the current blob SHA.
func (g *GitHub) putFile(ctx context.Context, path string, data []byte) error {
	existing, err := g.getFile(ctx, path)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"message": fmt.Sprintf("Update %s", path),
		"content": base64.StdEncoding.EncodeToString(data),
	}
	if g.cfg.Branch != "" {
		payload["branch"] = g.cfg.Branch
	}
	if existing != nil && existing.SHA != "" {
		payload["sha"] = existing.SHA
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := g.newRequest(ctx, http.MethodPut, g.contentsURL(path), bytes.NewReader(body))
	if err != nil {
		return err
	}
	g.log.Debug("github api request", zap.String("method", req.Method), zap.String("path", path))
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("github put %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("github put %s: status %d", path, resp.StatusCode)
	}
	g.log.Info("updated github file", zap.String("path", path))
	return nil
}
