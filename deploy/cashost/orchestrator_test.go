package cashost

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktabahmedia/ZipToRepo/analysis"
	"github.com/maktabahmedia/ZipToRepo/deploy"
	"github.com/maktabahmedia/ZipToRepo/patch"
)

// fakeHost is an in-memory content-addressed hosting service. Objects
// survive across versions, which is what makes the second deploy of an
// unchanged site upload nothing.
type fakeHost struct {
	mu sync.Mutex

	url     string
	objects map[string][]byte            // hash → content
	files   map[string]map[string]string // versionID → path → hash

	nextVersion    int
	finalized      map[string]bool
	released       []string
	uploads        int
	uploadFailures int               // fail this many uploads with 500 before succeeding
	contentTypes   map[string]string // hash → Content-Type seen on upload
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		objects:      map[string][]byte{},
		files:        map[string]map[string]string{},
		finalized:    map[string]bool{},
		contentTypes: map[string]string{},
	}
}

func (h *fakeHost) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("POST /v1/sites/{site}/versions", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		h.nextVersion++
		id := fmt.Sprintf("v%d", h.nextVersion)
		h.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	})

	mux.HandleFunc("PUT /v1/versions/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Files map[string]string `json:"files"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		h.mu.Lock()
		h.files[r.PathValue("id")] = body.Files
		var required []string
		uploadURLs := map[string]string{}
		seen := map[string]bool{}
		for _, hash := range body.Files {
			if seen[hash] {
				continue
			}
			seen[hash] = true
			if _, ok := h.objects[hash]; !ok {
				required = append(required, hash)
				uploadURLs[hash] = h.url + "/upload/" + hash
			}
		}
		h.mu.Unlock()

		writeJSON(w, http.StatusOK, RegisterResult{Required: required, UploadURLs: uploadURLs})
	})

	mux.HandleFunc("POST /upload/{hash}", func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		if h.uploadFailures > 0 {
			h.uploadFailures--
			h.mu.Unlock()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "storage hiccup"})
			return
		}
		h.mu.Unlock()

		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		sum := sha256.Sum256(data)
		hash := hex.EncodeToString(sum[:])
		if hash != r.PathValue("hash") {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "content does not match hash"})
			return
		}

		h.mu.Lock()
		h.objects[hash] = data
		h.uploads++
		h.contentTypes[hash] = r.Header.Get("Content-Type")
		h.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /v1/versions/{id}/finalize", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, hash := range h.files[id] {
			if _, ok := h.objects[hash]; !ok {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": "version has missing objects"})
				return
			}
		}
		h.finalized[id] = true
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /v1/sites/{site}/releases", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VersionID string `json:"versionId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		h.mu.Lock()
		defer h.mu.Unlock()
		if !h.finalized[body.VersionID] {
			writeJSON(w, http.StatusConflict, map[string]string{"message": "version is not finalized"})
			return
		}
		h.released = append(h.released, body.VersionID)
		writeJSON(w, http.StatusCreated, map[string]string{
			"url": fmt.Sprintf("https://%s.example.app", r.PathValue("site")),
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	h.url = srv.URL
	return srv
}

func memFile(path, content string) analysis.ManifestFile {
	return analysis.NewManifestFile(path, int64(len(content)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte(content))), nil
	})
}

func staticAnalysis() analysis.ProjectAnalysis {
	return analysis.ProjectAnalysis{
		Manifest: []analysis.ManifestFile{
			memFile("index.html", "<html></html>"),
			memFile("css/style.css", "body {}"),
		},
		FileCount:   2,
		TotalSize:   20,
		ProjectType: analysis.TypeStaticSite,
	}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []deploy.Event
}

func (r *eventRecorder) sink() deploy.Sink {
	return func(e deploy.Event) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	}
}

func (r *eventRecorder) all() []deploy.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]deploy.Event(nil), r.events...)
}

func (r *eventRecorder) errors() []deploy.Event {
	var out []deploy.Event
	for _, e := range r.all() {
		if e.Kind == deploy.KindError {
			out = append(out, e)
		}
	}
	return out
}

func TestDeployFullFlow(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)

	rec := &eventRecorder{}
	orch := New(srv.URL)

	url, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
		Sink:       rec.sink(),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mysite.example.app", url)

	assert.Equal(t, 2, host.uploads, "both objects are new and get uploaded")
	assert.True(t, host.finalized["v1"])
	assert.Equal(t, []string{"v1"}, host.released)

	assert.Empty(t, rec.errors())
	events := rec.all()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, StepDone, last.Step)
	assert.Equal(t, deploy.KindSuccess, last.Kind)
}

func TestDeployUnchangedSiteUploadsNothing(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)
	orch := New(srv.URL)

	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.NoError(t, err)
	require.Equal(t, 2, host.uploads)

	rec := &eventRecorder{}
	url, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
		Sink:       rec.sink(),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://mysite.example.app", url)

	assert.Equal(t, 2, host.uploads, "the host already holds every object; nothing is re-uploaded")
	assert.Equal(t, []string{"v1", "v2"}, host.released, "a release still happens for the new version")

	var skipped bool
	for _, e := range rec.all() {
		if e.Step == StepUpload && e.Kind == deploy.KindInfo && e.Details != "" {
			skipped = true
		}
	}
	assert.True(t, skipped, "the skip is reported on the sink")
}

func TestDeployDuplicateContentUploadsOnce(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)
	orch := New(srv.URL)

	a := analysis.ProjectAnalysis{
		Manifest: []analysis.ManifestFile{
			memFile("index.html", "same bytes"),
			memFile("copy.html", "same bytes"),
		},
		FileCount:   2,
		ProjectType: analysis.TypeStaticSite,
	}

	_, err := orch.Deploy(context.Background(), a, nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, host.uploads, "two paths with identical content are one object")

	require.Contains(t, host.files, "v1")
	assert.Len(t, host.files["v1"], 2, "both paths are registered")
}

func TestDeployPatchContentWins(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)
	orch := New(srv.URL)

	patches := []patch.Patch{{Path: "index.html", Content: "patched"}}
	_, err := orch.Deploy(context.Background(), staticAnalysis(), patches, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("patched"))
	want := hex.EncodeToString(sum[:])
	assert.Equal(t, want, host.files["v1"]["/index.html"], "registered hash reflects the patched content")
}

func TestDeployUploadRetrySucceeds(t *testing.T) {
	host := newFakeHost()
	host.uploadFailures = 2
	srv := host.server(t)

	rec := &eventRecorder{}
	orch := New(srv.URL)

	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
		Sink:       rec.sink(),
	})
	require.NoError(t, err, "transient upload failures are retried away")
	assert.Empty(t, rec.errors())
	assert.Equal(t, 2, host.uploads)
}

func TestDeployUploadRetryExhaustedFails(t *testing.T) {
	host := newFakeHost()
	host.uploadFailures = 1000
	srv := host.server(t)

	rec := &eventRecorder{}
	orch := New(srv.URL)

	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
		Sink:       rec.sink(),
	})
	require.Error(t, err)

	var pe *deploy.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)

	errs := rec.errors()
	require.Len(t, errs, 1, "exactly one terminal error event")
	assert.Equal(t, StepUpload, errs[0].Step)
	events := rec.all()
	assert.Equal(t, errs[0], events[len(events)-1], "the error event is the last event emitted")

	assert.False(t, host.finalized["v1"], "a failed upload phase never finalizes")
	assert.Empty(t, host.released)
}

func TestDeployFinalizeBeforeRelease(t *testing.T) {
	// The fake host refuses to release an unfinalized version, so a passing
	// full flow proves the ordering.
	host := newFakeHost()
	srv := host.server(t)
	orch := New(srv.URL)

	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, host.released)
}

func TestDeployUploadContentType(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)
	orch := New(srv.URL)

	a := analysis.ProjectAnalysis{
		Manifest:    []analysis.ManifestFile{memFile("css/style.css", "body { color: red }")},
		FileCount:   1,
		ProjectType: analysis.TypeStaticSite,
	}
	_, err := orch.Deploy(context.Background(), a, nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("body { color: red }"))
	ct := host.contentTypes[hex.EncodeToString(sum[:])]
	assert.Contains(t, ct, "text/css")
}

func TestDeployMissingTargetFailsFast(t *testing.T) {
	host := newFakeHost()
	srv := host.server(t)

	rec := &eventRecorder{}
	orch := New(srv.URL)

	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Sink:       rec.sink(),
	})
	require.ErrorIs(t, err, deploy.ErrNoTarget)
	assert.Equal(t, 0, host.nextVersion, "no version is created without a target")

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, StepVersion, errs[0].Step)
}

func TestWithCacheControl(t *testing.T) {
	var got string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sites/{site}/versions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			CacheControl string `json:"cacheControl"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		got = body.CacheControl
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	orch := New(srv.URL, WithCacheControl("no-store"))
	_, err := orch.Deploy(context.Background(), staticAnalysis(), nil, deploy.Options{
		Credential: "token",
		Target:     "mysite",
	})
	require.Error(t, err)
	assert.Equal(t, "no-store", got)
}
