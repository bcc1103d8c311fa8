package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "hunter2"

// memBackend serves the catalog REST API from memory.
type memBackend struct {
	mu     sync.Mutex
	nextID int
	rows   []map[string]any
	down   bool
}

func (b *memBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/storage/") {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
		return
	}
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		rows := slices.Clone(b.rows)
		slices.Reverse(rows)
		_ = json.NewEncoder(w).Encode(rows)
	case http.MethodPost:
		var row map[string]any
		_ = json.NewDecoder(r.Body).Decode(&row)
		b.nextID++
		row["id"] = b.nextID
		row["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
		b.rows = append(b.rows, row)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode([]any{row})
	case http.MethodPatch:
		var patch map[string]any
		_ = json.NewDecoder(r.Body).Decode(&patch)
		for _, row := range b.rows {
			if strconv.Itoa(row["id"].(int)) == id {
				for k, v := range patch {
					row[k] = v
				}
			}
		}
		_, _ = w.Write([]byte(`[]`))
	case http.MethodDelete:
		b.rows = slices.DeleteFunc(b.rows, func(row map[string]any) bool {
			return strconv.Itoa(row["id"].(int)) == id
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *memBackend) row(id int) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range b.rows {
		if row["id"].(int) == id {
			return row
		}
	}
	return nil
}

func (b *memBackend) setDown(down bool) {
	b.mu.Lock()
	b.down = down
	b.mu.Unlock()
}

type cliTestEnv struct {
	backend    *memBackend
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	backend := &memBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte(testSecret), bcrypt.MinCost)
	require.NoError(t, err)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "posterctl.yaml")
	yaml := fmt.Sprintf(`log:
  level: error
catalog:
  baseurl: %s
  anonkey: anon
auth:
  secrethash: %q
  signingkey: %q
  sessionttl: 1h
mirror:
  path: %s
`, srv.URL, string(hash), strings.Repeat("k", 32), filepath.Join(dir, "posterctl.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0o600))
	return &cliTestEnv{backend: backend, configPath: configPath}
}

func (e *cliTestEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := Execute(context.Background(), append([]string{"--config", e.configPath}, args...), strings.NewReader(stdin), &out, &errOut)
	return out.String(), err
}

func (e *cliTestEnv) login(t *testing.T) {
	t.Helper()
	out, err := e.run(t, "", "login", "--secret", testSecret)
	require.NoError(t, err)
	require.Contains(t, out, "Logged in until")
}

func TestAdminCommandsRequireLogin(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "", "add", "--name", "Dune")

	require.Error(t, err)
	assert.Equal(t, "Please log in as admin first.", err.Error())
}

func TestLogin(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := env.run(t, "", "login", "--secret", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid password!", err.Error())

	out, err := env.run(t, testSecret+"\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in until")

	out, err = env.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = env.run(t, "", "toggle", "1")
	require.Error(t, err)
	assert.Equal(t, "Please log in as admin first.", err.Error())
}

func TestAddListToggleDelete(t *testing.T) {
	// given
	env := setupCLITestEnv(t)
	env.login(t)

	// when
	out, err := env.run(t, "", "add", "--name", "Dune", "--quantity", "2", "--price", "499")

	// then
	require.NoError(t, err)
	assert.Contains(t, out, "Poster added successfully! (ID 1)")

	out, err = env.run(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "₹499")
	assert.Contains(t, out, "In Stock")
	assert.Contains(t, out, "placeholder")

	// when
	out, err = env.run(t, "", "toggle", "1")

	// then
	require.NoError(t, err)
	assert.Contains(t, out, "Poster 1 is now unavailable")
	assert.Equal(t, false, env.backend.row(1)["is_available"])

	out, err = env.run(t, "", "list", "--in-stock")
	require.NoError(t, err)
	assert.Contains(t, out, "No posters found")

	// when
	out, err = env.run(t, "", "delete", "1", "--yes")

	// then
	require.NoError(t, err)
	assert.Contains(t, out, "Poster 1 deleted")
	assert.Nil(t, env.backend.row(1))
}

func TestAddRejectsInvalidInput(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)

	_, err := env.run(t, "", "add", "--name", "Dune", "--price", "cheap")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")

	_, err = env.run(t, "", "add", "--name", "  ", "--quantity=-1")
	require.Error(t, err)
	assert.Nil(t, env.backend.row(1), "nothing reaches the backend")
}

func TestUpdateSendsOnlyChangedFields(t *testing.T) {
	// given
	env := setupCLITestEnv(t)
	env.login(t)
	_, err := env.run(t, "", "add", "--name", "Dune", "--quantity", "2", "--price", "499")
	require.NoError(t, err)

	// when
	out, err := env.run(t, "", "update", "1", "--quantity", "5", "--clear-price")

	// then
	require.NoError(t, err)
	assert.Contains(t, out, "Poster 1 updated")
	row := env.backend.row(1)
	assert.Equal(t, "Dune", row["name"])
	assert.EqualValues(t, 5, row["quantity"])
	assert.Nil(t, row["price"])
	assert.NotEmpty(t, row["updated_at"])

	_, err = env.run(t, "", "update", "1")
	assert.Error(t, err, "an empty update is rejected")
}

func TestToggleUnknownPoster(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)

	_, err := env.run(t, "", "toggle", "42")

	require.Error(t, err)
	assert.Equal(t, "Poster not found.", err.Error())
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	env := setupCLITestEnv(t)
	env.login(t)
	_, err := env.run(t, "", "add", "--name", "Dune")
	require.NoError(t, err)

	out, err := env.run(t, "n\n", "delete", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")
	assert.NotNil(t, env.backend.row(1))
}

func TestListFallsBackToCachedCatalog(t *testing.T) {
	// given
	env := setupCLITestEnv(t)
	env.login(t)
	_, err := env.run(t, "", "add", "--name", "Dune", "--quantity", "1")
	require.NoError(t, err)
	_, err = env.run(t, "", "list")
	require.NoError(t, err)

	// when
	env.backend.setDown(true)
	_, listErr := env.run(t, "", "list")
	cached, cachedErr := env.run(t, "", "list", "--cached")

	// then
	require.Error(t, listErr)
	assert.Equal(t, loadFailedMessage, listErr.Error())
	require.NoError(t, cachedErr)
	assert.Contains(t, cached, "Cached catalog from")
	assert.Contains(t, cached, "Dune")
}
