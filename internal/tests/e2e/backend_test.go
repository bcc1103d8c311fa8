package e2e

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory stand-in for the REST and object-storage APIs of
// the catalog backend. It keeps rows as loose JSON maps, like the real thing.
type fakeBackend struct {
	mu      sync.Mutex
	nextID  int
	rows    []map[string]any
	objects map[string][]byte
	down    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 1, objects: make(map[string][]byte)}
}

func (f *fakeBackend) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = 1
	f.rows = nil
	f.objects = make(map[string][]byte)
	f.down = false
}

func (f *fakeBackend) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeBackend) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		http.Error(w, `{"message":"unavailable"}`, http.StatusServiceUnavailable)
		return
	}
	if r.Header.Get("apikey") == "" || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		http.Error(w, `{"message":"missing api key"}`, http.StatusUnauthorized)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/rest/v1/posters"):
		f.serveRows(w, r)
	case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
		f.serveObjects(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) serveRows(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	switch r.Method {
	case http.MethodGet:
		rows := slices.Clone(f.rows)
		slices.SortStableFunc(rows, func(a, b map[string]any) int {
			return strings.Compare(b["created_at"].(string), a["created_at"].(string))
		})
		writeJSON(w, http.StatusOK, rows)
	case http.MethodPost:
		var row map[string]any
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		row["id"] = f.nextID
		row["created_at"] = time.Now().UTC().Add(time.Duration(f.nextID) * time.Millisecond).Format(time.RFC3339Nano)
		f.nextID++
		f.rows = append(f.rows, row)
		writeJSON(w, http.StatusCreated, []map[string]any{row})
	case http.MethodPatch:
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range f.rows {
			if strconv.Itoa(row["id"].(int)) == id {
				for k, v := range patch {
					row[k] = v
				}
			}
		}
		writeJSON(w, http.StatusOK, []any{})
	case http.MethodDelete:
		f.rows = slices.DeleteFunc(f.rows, func(row map[string]any) bool {
			return strconv.Itoa(row["id"].(int)) == id
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (f *fakeBackend) serveObjects(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/images/")
	switch r.Method {
	case http.MethodPost:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		writeJSON(w, http.StatusOK, map[string]string{"Key": "images/" + key})
	case http.MethodDelete:
		delete(f.objects, key)
		writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
