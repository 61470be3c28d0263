package backup

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-tracker-api/internal/config"
	"macro-tracker-api/internal/nutrition"
)

// fakeGitHub implements just enough of the contents API.
type fakeGitHub struct {
	mu    sync.Mutex
	files map[string]contentFile
	puts  int
	auth  []string
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	path, ok := strings.CutPrefix(r.URL.Path, "/repos/owner/meals/contents/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		file, ok := f.files[path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(file)
	case http.MethodPut:
		var body struct {
			Content string `json:"content"`
			SHA     string `json:"sha"`
			Branch  string `json:"branch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		existing, exists := f.files[path]
		if exists && existing.SHA != body.SHA {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.puts++
		f.files[path] = contentFile{SHA: fmt.Sprintf("sha-%d", f.puts), Content: body.Content, Encoding: "base64"}
		if exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFake(t *testing.T) (*fakeGitHub, *GitHub) {
	t.Helper()
	fake := &fakeGitHub{files: map[string]contentFile{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	g := New(config.GitHubConfig{
		Token:   "secret",
		Repo:    "owner/meals",
		Branch:  "main",
		Dir:     "meal_data",
		BaseURL: srv.URL,
	}, time.UTC, nil)
	return fake, g
}

func TestSyncWritesMonthFiles(t *testing.T) {
	fake, g := newFake(t)
	ctx := context.Background()

	meals := []nutrition.Meal{
		{ID: 1, Name: "A", DateTime: time.Date(2024, 2, 28, 9, 0, 0, 0, time.UTC), Ingredients: []nutrition.Ingredient{}},
		{ID: 2, Name: "B", DateTime: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), Ingredients: []nutrition.Ingredient{}},
		{ID: 3, Name: "C", DateTime: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), Ingredients: []nutrition.Ingredient{}},
	}
	n, err := g.Sync(ctx, meals)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, fake.files, "meal_data/2024/02.json")
	assert.Contains(t, fake.files, "meal_data/2024/03.json")
	assert.Equal(t, "token secret", fake.auth[0])

	raw, err := base64.StdEncoding.DecodeString(fake.files["meal_data/2024/03.json"].Content)
	require.NoError(t, err)
	var march []nutrition.Meal
	require.NoError(t, json.Unmarshal(raw, &march))
	require.Len(t, march, 2)
	assert.Equal(t, "C", march[0].Name, "month files are chronological")

	// a second sync replaces the files using their current sha
	n, err = g.Sync(ctx, meals[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, fake.puts)
}

func TestFetch(t *testing.T) {
	_, g := newFake(t)
	ctx := context.Background()

	meals := []nutrition.Meal{{ID: 9, Name: "Dinner", DateTime: time.Date(2024, 5, 4, 19, 0, 0, 0, time.UTC), Ingredients: []nutrition.Ingredient{{Name: "Rice", Quantity: 1}}}}
	_, err := g.Sync(ctx, meals)
	require.NoError(t, err)

	got, err := g.Fetch(ctx, 2024, time.May)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dinner", got[0].Name)
	assert.Equal(t, "Rice", got[0].Ingredients[0].Name)

	none, err := g.Fetch(ctx, 2023, time.January)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDisabled(t *testing.T) {
	g := New(config.GitHubConfig{}, nil, nil)
	assert.False(t, g.Enabled())
	_, err := g.Sync(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = g.Fetch(context.Background(), 2024, time.January)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSyncReportsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)
	g := New(config.GitHubConfig{Token: "bad", Repo: "o/r", Dir: "d", BaseURL: srv.URL}, time.UTC, nil)

	_, err := g.Sync(context.Background(), []nutrition.Meal{{Name: "x", DateTime: time.Now()}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
