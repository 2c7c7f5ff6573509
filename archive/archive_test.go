package archive

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip assembles an in-memory zip from path→content pairs, in map
// iteration order plus the explicit order slice for determinism.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for path, content := range files {
		w, err := zw.Create(path)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIngestStripsCommonRoot(t *testing.T) {
	data := buildZip(t, map[string]string{
		"mysite/index.html":    "<html></html>",
		"mysite/css/style.css": "body {}",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	var paths []string
	for _, f := range res.Analysis.Manifest {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"index.html", "css/style.css"}, paths)
}

func TestIngestNeverStripsPartialSegment(t *testing.T) {
	// "foo" is a common character prefix of both paths but not a shared
	// folder; nothing may be stripped.
	data := buildZip(t, map[string]string{
		"foo/x.html":    "a",
		"foobar/y.html": "b",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	var paths []string
	for _, f := range res.Analysis.Manifest {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"foo/x.html", "foobar/y.html"}, paths)
}

func TestIngestKeepsRootWhenNotShared(t *testing.T) {
	data := buildZip(t, map[string]string{
		"site/index.html": "a",
		"readme.txt":      "b",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	var paths []string
	for _, f := range res.Analysis.Manifest {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{"site/index.html", "readme.txt"}, paths)
}

func TestIngestSingleFileArchiveWithFolder(t *testing.T) {
	data := buildZip(t, map[string]string{
		"site/index.html": "a",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)
	require.Len(t, res.Analysis.Manifest, 1)
	assert.Equal(t, "index.html", res.Analysis.Manifest[0].Path)
}

func TestIngestFiltersJunk(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html":              "<html></html>",
		".DS_Store":               "junk",
		"node_modules/pkg/a.js":   "junk",
		".git/HEAD":               "junk",
		"debug.log":               "junk",
		".env":                    "SECRET=1",
		".env.production":         "SECRET=2",
		".idea/workspace.xml":     "junk",
		".vscode/settings.json":   "junk",
		"assets/Thumbs.db":        "junk",
		"__MACOSX/._index.html":   "resource fork",
		"__MACOSX/sub/._style.cs": "resource fork",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	require.Len(t, res.Analysis.Manifest, 1)
	assert.Equal(t, "index.html", res.Analysis.Manifest[0].Path)

	ignored := map[string]string{}
	for _, ig := range res.Analysis.Ignored {
		ignored[ig.Path] = ig.Reason
	}
	// Archiver metadata is dropped before classification and is not
	// recorded as ignored.
	assert.NotContains(t, ignored, "__MACOSX/._index.html")
	assert.Contains(t, ignored, ".DS_Store")
	assert.Contains(t, ignored, "node_modules/pkg/a.js")
	assert.Contains(t, ignored, ".git/HEAD")
	assert.Contains(t, ignored, "debug.log")
	assert.Contains(t, ignored, ".env")
	assert.Contains(t, ignored, ".env.production")
	for _, reason := range ignored {
		assert.NotEmpty(t, reason)
	}
}

func TestIngestAggregates(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html": "12345",
		"app.js":     "123",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Analysis.FileCount)
	assert.Equal(t, int64(8), res.Analysis.TotalSize)
}

func TestIngestCapturesTextAssets(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html":   `<script src="app.js"></script>`,
		"app.js":       "console.log(1)",
		"style.css":    "body {}",
		"package.json": `{"dependencies":{}}`,
		"photo.png":    "binarybinary",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	assert.Contains(t, res.Capture.IndexHTML, "app.js")
	assert.Contains(t, res.Capture.PackageJSON, "dependencies")
	assert.Contains(t, res.Capture.Texts, "index.html")
	assert.Contains(t, res.Capture.Texts, "app.js")
	assert.Contains(t, res.Capture.Texts, "style.css")
	assert.NotContains(t, res.Capture.Texts, "photo.png")
}

func TestIngestCapturesFrameworkConfigs(t *testing.T) {
	// Configs with non-.js extensions must be captured too: the patch
	// generator reads their content to decide on injection.
	data := buildZip(t, map[string]string{
		"vite.config.ts":  "export default defineConfig({})",
		"next.config.mjs": "const nextConfig = {}",
		"src/types.ts":    "export type X = string",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)

	assert.Contains(t, res.Capture.Texts, "vite.config.ts")
	assert.Contains(t, res.Capture.Texts, "next.config.mjs")
	assert.NotContains(t, res.Capture.Texts, "src/types.ts", "ordinary TypeScript sources are not captured")
}

func TestIngestCorruptArchive(t *testing.T) {
	_, err := IngestBytes([]byte("this is not a zip file"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestIngestManifestContentRoundTrip(t *testing.T) {
	data := buildZip(t, map[string]string{
		"index.html": "<h1>hello</h1>",
	})

	res, err := IngestBytes(data)
	require.NoError(t, err)
	require.Len(t, res.Analysis.Manifest, 1)

	content, err := res.Analysis.Manifest[0].Bytes()
	require.NoError(t, err)
	assert.Equal(t, "<h1>hello</h1>", string(content))
}

func TestCommonRoot(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"all wrapped", []string{"app/a.txt", "app/b/c.txt", "app/z.txt"}, "app/"},
		{"partial segment", []string{"foo/x", "foobar/x"}, ""},
		{"no root", []string{"a.txt", "b/c.txt"}, ""},
		{"nested shared", []string{"a/b/x", "a/b/y"}, "a/b/"},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commonRoot(tt.paths))
		})
	}
}
