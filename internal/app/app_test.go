package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hmdoc/internal/config"
	"hmdoc/internal/domain"
	"hmdoc/internal/inline"
	"hmdoc/internal/publish"
	"hmdoc/internal/secret"
	"hmdoc/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DBPath = filepath.Join(dir, "data", "hmdoc.db")
	return cfg
}

func TestApp_StartupAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.OffsetUnit = inline.UTF16.String()

	a := New(cfg, zap.NewNop())
	require.NoError(t, a.Startup(context.Background()))
	defer a.Shutdown(context.Background())

	assert.Equal(t, inline.UTF16, a.Codec().Unit())
	assert.Nil(t, a.Publisher())

	doc, err := a.Documents().CreateDocument(context.Background(), "hello")
	require.NoError(t, err)
	_, err = a.Blocks().AppendBlock(context.Background(), service.AppendBlockInput{
		DocumentID: doc.ID,
		Content:    []domain.StyledRun{{Text: "😀 hi", Styles: domain.Styles{"bold": domain.Scalar("true")}}},
	})
	require.NoError(t, err)

	tree, err := a.Documents().GetTree(doc.ID)
	require.NoError(t, err)
	require.Len(t, tree.Children, 1)
	// the emoji is two UTF-16 code units
	assert.Equal(t, []int{5}, tree.Children[0].Block.Annotations[0].Ends)

	_, err = a.Publish(context.Background(), doc.ID)
	assert.ErrorIs(t, err, ErrNoPublishTargets)
}

func TestApp_PublishToSQLiteTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.Targets = []publish.TargetConfig{{
		Name:   "archive",
		Driver: publish.DriverSQLite,
		Host:   filepath.Join(t.TempDir(), "archive.db"),
	}}

	a := New(cfg, zap.NewNop())
	require.NoError(t, a.Startup(context.Background()))
	defer a.Shutdown(context.Background())

	doc, err := a.Documents().CreateDocument(context.Background(), "pub")
	require.NoError(t, err)

	lines, err := a.Publish(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"archive\tsuccess\t0 blocks"}, lines)

	_, err = a.Publish(context.Background(), "")
	assert.NoError(t, err)
}

func TestApp_StartupFailsOnBadTarget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.Targets = []publish.TargetConfig{{Name: "bad", Driver: "oracle"}}

	a := New(cfg, zap.NewNop())
	assert.Error(t, a.Startup(context.Background()))
	a.Shutdown(context.Background())
}

func TestApp_WatchImportsFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.ImportDir = filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.MkdirAll(cfg.ImportDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ImportDir, "seed.json"),
		[]byte(`{"title":"Seed","children":[{"block":{"id":"s1","text":"seeded"}}]}`), 0644))

	a := New(cfg, zap.NewNop())
	require.NoError(t, a.Startup(context.Background()))
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx) }()

	assert.Eventually(t, func() bool {
		_, err := a.Documents().GetDocument("seed")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestApp_ServeMCPStopsOnCancel(t *testing.T) {
	a := New(testConfig(t), zap.NewNop())
	require.NoError(t, a.Startup(context.Background()))
	defer a.Shutdown(context.Background())

	inR, inW := io.Pipe()
	defer inW.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeMCP(ctx, inR, io.Discard) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ServeMCP did not return after cancel")
	}
}

func TestApp_WatchNeedsWork(t *testing.T) {
	a := New(testConfig(t), zap.NewNop())
	require.NoError(t, a.Startup(context.Background()))
	defer a.Shutdown(context.Background())

	assert.Error(t, a.Watch(context.Background()))
}

func TestApp_Schedules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Publish.Schedules = []config.Schedule{{Cron: "@hourly"}, {Cron: "0 * * * *", Document: "d1"}}
	a := New(cfg, zap.NewNop())
	assert.Equal(t, []service.PublishSchedule{
		{Cron: "@hourly"},
		{Cron: "0 * * * *", DocumentID: "d1"},
	}, a.schedules())
}

func TestResolvePasswords(t *testing.T) {
	t.Setenv("HMDOC_TEST_TARGET_PW", "pw1")
	cfgs := []publish.TargetConfig{
		{Name: "a", Password: "env:HMDOC_TEST_TARGET_PW"},
		{Name: "b", Password: "literal"},
	}
	out, err := resolvePasswords(cfgs, secret.NewResolver())
	require.NoError(t, err)
	assert.Equal(t, "pw1", out[0].Password)
	assert.Equal(t, "literal", out[1].Password)
	assert.Equal(t, "env:HMDOC_TEST_TARGET_PW", cfgs[0].Password)

	_, err = resolvePasswords([]publish.TargetConfig{{Name: "c", Password: "env:HMDOC_TEST_MISSING_PW"}}, secret.NewResolver())
	assert.ErrorContains(t, err, "publish target c")
}
