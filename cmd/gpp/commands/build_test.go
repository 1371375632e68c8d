package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-prime-paths/internal/log"
	"github.com/l3aro/go-prime-paths/pkg/cfg"
	"github.com/l3aro/go-prime-paths/pkg/primepath"
	"github.com/l3aro/go-prime-paths/pkg/store"
)

const sampleC = `int clamp(int x) {
    if (x < 0) {
        return 0;
    }
    return x;
}

void spin(int n) {
    while (n > 0) {
        n--;
    }
}
`

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func testLogger() log.Logger {
	return log.New(log.LoggerConfig{Level: log.ErrorLevel, Stderr: &bytes.Buffer{}})
}

func TestRunBuild(t *testing.T) {
	ctx := context.Background()
	src := t.TempDir()
	out := t.TempDir()
	writeSource(t, src, "lib/clamp.c", sampleC)
	writeSource(t, src, "README.md", "not a source file")

	opts := BuildOptions{
		Root:      src,
		Output:    out,
		Contract:  true,
		Paths:     true,
		UseCache:  true,
		CacheFile: filepath.Join(t.TempDir(), "cache.msgpack"),
		CacheSize: 10,
		Workers:   2,
		MaxVisits: primepath.MaxVisits,
	}
	summary, err := runBuild(ctx, opts, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Units)
	assert.Equal(t, 2, summary.Functions)
	assert.Equal(t, 0, summary.CacheHits)
	assert.Empty(t, summary.Failed)

	s := store.New(out)
	unit := store.UnitDir("lib/clamp.c")
	idx, err := s.ReadIndex(ctx, unit)
	require.NoError(t, err)
	assert.Equal(t, cfg.FunctionIndex{1: {Name: "clamp", Line: 1}, 2: {Name: "spin", Line: 8}}, idx)

	el, err := s.ReadEdgeList(ctx, unit, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, el.Init)

	var contracted cfg.ContractedGraph
	require.NoError(t, s.ReadJSON(ctx, unit, "1.contracted.json", &contracted))
	assert.Equal(t, "clamp", contracted.Name)

	var reports []primepath.Report
	require.NoError(t, s.ReadJSON(ctx, unit, "2.paths.json", &reports))
	assert.NotEmpty(t, reports)
	for _, r := range reports {
		assert.GreaterOrEqual(t, len(r.Path), 2)
	}

	// an unchanged tree is served from the cache
	summary, err = runBuild(ctx, opts, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CacheHits)
}

func TestRunBuildSingleFileInMemory(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "clamp.c", sampleC)

	opts := BuildOptions{
		Root:   filepath.Join(src, "clamp.c"),
		Output: "mem://localhost/gpp-build-test",
	}
	summary, err := runBuild(context.Background(), opts, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Units)

	s := store.New(opts.Output)
	fn, err := s.ReadArtifact(context.Background(), store.UnitDir("clamp.c"), 1)
	require.NoError(t, err)
	assert.NotEmpty(t, fn.Edges)
}

func TestRunBuildMissingRoot(t *testing.T) {
	opts := BuildOptions{
		Root:   filepath.Join(t.TempDir(), "missing"),
		Output: t.TempDir(),
	}
	_, err := runBuild(context.Background(), opts, testLogger())
	assert.Error(t, err)
}

func TestFormatReport(t *testing.T) {
	tests := []struct {
		report primepath.Report
		want   string
	}{
		{primepath.Report{Path: primepath.Path{1, 2, 4}, ReachHead: true, ReachEnd: true}, "1 2 4 [head] [end]"},
		{primepath.Report{Path: primepath.Path{2, 3, 2}}, "2 3 2"},
		{primepath.Report{Path: primepath.Path{3, 4}, ReachEnd: true}, "3 4 [end]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatReport(tt.report))
	}
}

func TestCompleteOnly(t *testing.T) {
	reports := []primepath.Report{
		{Path: primepath.Path{1, 2}, ReachHead: true},
		{Path: primepath.Path{1, 3}, ReachHead: true, ReachEnd: true},
		{Path: primepath.Path{2, 3}, ReachEnd: true},
	}
	got := completeOnly(reports)
	require.Len(t, got, 1)
	assert.Equal(t, primepath.Path{1, 3}, got[0].Path)
}
