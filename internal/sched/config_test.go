package sched

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yml")} {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "text", cfg.LogFormat)
		require.Len(t, cfg.Threads, len(DefaultThreads()))
		for _, tc := range cfg.Threads {
			assert.Equal(t, DefaultTaskWarnThreshold, tc.TaskWarnThreshold, tc.Name)
			assert.GreaterOrEqual(t, tc.IdlePollMS, 1, tc.Name)
		}
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yml", `
log_level: DEBUG
log_format: json
run_for_ms: 1500
threads:
  - name: input
    tps: 250
    queue_order: before_tick
  - name: render
    tps: 60
    queue_order: after_tick
    task_warn_threshold: -1
    depends_on: [input]
    work_us: -3
  - name: loader
    queue_order: queue_only
    idle_poll_ms: 5
    dependency_timeout_ms: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := Config{
		LogLevel:  "debug",
		LogFormat: "json",
		RunForMS:  1500,
		Threads: []ThreadConfig{
			{Name: "input", TPS: 250, QueueOrder: "before_tick", TaskWarnThreshold: DefaultTaskWarnThreshold, IdlePollMS: 1},
			{Name: "render", TPS: 60, QueueOrder: "after_tick", TaskWarnThreshold: -1, IdlePollMS: 1, DependsOn: []string{"input"}},
			{Name: "loader", QueueOrder: "queue_only", TaskWarnThreshold: DefaultTaskWarnThreshold, IdlePollMS: 5, DependencyTimeoutMS: 250},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	spec, err := cfg.Threads[2].Spec()
	require.NoError(t, err)
	assert.Equal(t, Spec{
		Name:              "loader",
		Order:             QueueOnly,
		TaskWarnThreshold: DefaultTaskWarnThreshold,
		IdlePoll:          5 * time.Millisecond,
		DependencyTimeout: 250 * time.Millisecond,
	}, spec)

	spec, err = cfg.Threads[1].Spec()
	require.NoError(t, err)
	assert.Equal(t, 0, spec.TaskWarnThreshold, "negative threshold disables the warning")
}

func TestLoad_HCL(t *testing.T) {
	path := writeConfig(t, "engine.hcl", `
log_level = "warn"
csv_path  = "events.csv"

thread "sim" {
  tps         = 60
  queue_order = "after_tick"
  forward_to  = "render"
  work_us     = 1500
}

thread "render" {
  tps          = 60
  queue_order  = "before_tick"
  depends_on   = ["sim"]
  task_work_us = 200
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "events.csv", cfg.CSVPath)
	require.Len(t, cfg.Threads, 2)
	assert.Equal(t, "sim", cfg.Threads[0].Name)
	assert.Equal(t, "render", cfg.Threads[0].ForwardTo)
	assert.Equal(t, 1500, cfg.Threads[0].WorkUS)
	assert.Equal(t, []string{"sim"}, cfg.Threads[1].DependsOn)
	assert.Equal(t, 200, cfg.Threads[1].TaskWorkUS)
}

func TestLoad_ParseErrors(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.yml", "threads: [name: x\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.hcl", `thread "x" {`))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string][]ThreadConfig{
		"empty name":      {{Name: ""}},
		"duplicate":       {{Name: "a"}, {Name: "a"}},
		"bad order":       {{Name: "a", QueueOrder: "later"}},
		"unknown dep":     {{Name: "a", DependsOn: []string{"b"}}},
		"unknown forward": {{Name: "a", ForwardTo: "b"}},
		"cycle":           {{Name: "a", DependsOn: []string{"b"}}, {Name: "b", DependsOn: []string{"a"}}},
	}
	for name, threads := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Config{Threads: threads}.Validate())
		})
	}
	assert.NoError(t, Config{Threads: DefaultThreads()}.Validate())
}

func TestConfig_StartOrder(t *testing.T) {
	cfg := Config{Threads: []ThreadConfig{
		{Name: "render", DependsOn: []string{"sim"}},
		{Name: "loader"},
		{Name: "sim", DependsOn: []string{"input"}},
		{Name: "input"},
	}}
	order, err := cfg.StartOrder()
	require.NoError(t, err)

	var names []string
	for _, tc := range order {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"loader", "input", "sim", "render"}, names)

	cfg.Threads[3].DependsOn = []string{"render"}
	_, err = cfg.StartOrder()
	assert.ErrorIs(t, err, ErrDependencyCycle)
}
