package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_RerunsOnChange(t *testing.T) {
	src := t.TempDir()
	dist := filepath.Join(src, "dist")
	require.NoError(t, os.MkdirAll(dist, 0750))

	runs := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := Watcher{Dirs: []string{src}, Ignore: []string{dist}, Debounce: 50 * time.Millisecond}
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) { runs <- struct{}{} })
	}()

	waitRun := func(msg string) {
		t.Helper()
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatal(msg)
		}
	}

	waitRun("initial run")

	// output written into the ignored dir does not trigger a rerun
	require.NoError(t, os.WriteFile(filepath.Join(dist, "index.js"), []byte("x"), 0600))
	select {
	case <-runs:
		t.Fatal("change under ignored dir triggered a run")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(src, "index.ts"), []byte("export {}"), 0600))
	waitRun("rerun after source change")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	w := Watcher{Dirs: []string{filepath.Join(t.TempDir(), "nope")}}

	err := w.Run(context.Background(), func(context.Context) {
		t.Fatal("fn must not run when the watch cannot be set up")
	})
	assert.Error(t, err)
}

func TestWatcher_Ignored(t *testing.T) {
	w := Watcher{Ignore: []string{"/srv/app/dist"}}

	assert.True(t, w.ignored("/srv/app/dist"))
	assert.True(t, w.ignored("/srv/app/dist/index.js"))
	assert.False(t, w.ignored("/srv/app/distribution.ts"))
	assert.False(t, w.ignored("/srv/app/src/index.ts"))
}

func TestWatcher_RootLevelArtifact(t *testing.T) {
	src := t.TempDir()
	artifact := filepath.Join(src, "bundle.js")

	runs := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := Watcher{Dirs: []string{src}, Ignore: IgnoreFor(artifact, []string{src}), Debounce: 50 * time.Millisecond}
	go func() { _ = w.Run(ctx, func(context.Context) { runs <- struct{}{} }) }()

	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("initial run")
	}

	require.NoError(t, os.WriteFile(artifact, []byte("x"), 0600))
	select {
	case <-runs:
		t.Fatal("writing the artifact triggered a run")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(filepath.Join(src, "src.ts"), []byte("export {}"), 0600))
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("source change next to a root-level artifact did not rerun")
	}
}

func TestWatcher_IgnoreCoveringRootIsDropped(t *testing.T) {
	src := t.TempDir()

	runs := make(chan struct{}, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := Watcher{Dirs: []string{src}, Ignore: []string{src}, Debounce: 50 * time.Millisecond}
	go func() { _ = w.Run(ctx, func(context.Context) { runs <- struct{}{} }) }()

	for _, step := range []string{"initial run", "rerun after source change"} {
		select {
		case <-runs:
		case <-time.After(5 * time.Second):
			t.Fatal(step)
		}
		if step == "initial run" {
			require.NoError(t, os.WriteFile(filepath.Join(src, "src.ts"), []byte("export {}"), 0600))
		}
	}
}

func TestIgnoreFor(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		roots    []string
		expected []string
	}{
		{name: "subdirectory", artifact: "/p/dist/index.js", roots: []string{"/p"}, expected: []string{"/p/dist"}},
		{name: "root level", artifact: "/p/bundle.js", roots: []string{"/p"}, expected: []string{"/p/bundle.js"}},
		{name: "relative root level", artifact: "bundle.js", roots: []string{"."}, expected: []string{"bundle.js"}},
		{name: "dir contains a root", artifact: "/p/index.js", roots: []string{"/p/src"}, expected: []string{"/p/index.js"}},
		{name: "outside roots", artifact: "/out/index.js", roots: []string{"/p"}, expected: []string{"/out/index.js"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IgnoreFor(tt.artifact, tt.roots))
		})
	}
}
