package sched

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	yaml "github.com/goccy/go-yaml"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// DefaultTaskWarnThreshold applies when a thread leaves task_warn_threshold at 0.
const DefaultTaskWarnThreshold = 1000

// Config mirrors config.yml (or config.hcl).
type Config struct {
	LogLevel  string         `yaml:"log_level" hcl:"log_level,optional"`   // info (by default)
	LogFormat string         `yaml:"log_format" hcl:"log_format,optional"` // text (by default)
	RunForMS  int            `yaml:"run_for_ms" hcl:"run_for_ms,optional"` // 0 runs until interrupted
	CSVPath   string         `yaml:"csv_path" hcl:"csv_path,optional"`     // lifecycle event log, empty disables
	Threads   []ThreadConfig `yaml:"threads" hcl:"thread,block"`
}

// ThreadConfig describes one thread and the sample workload it runs.
type ThreadConfig struct {
	Name                string   `yaml:"name" hcl:"name,label"`
	TPS                 int      `yaml:"tps" hcl:"tps,optional"`
	QueueOrder          string   `yaml:"queue_order" hcl:"queue_order,optional"`
	TaskWarnThreshold   int      `yaml:"task_warn_threshold" hcl:"task_warn_threshold,optional"` // < 0 disables
	IdlePollMS          int      `yaml:"idle_poll_ms" hcl:"idle_poll_ms,optional"`
	DependencyTimeoutMS int      `yaml:"dependency_timeout_ms" hcl:"dependency_timeout_ms,optional"`
	DependsOn           []string `yaml:"depends_on" hcl:"depends_on,optional"`
	WorkUS              int      `yaml:"work_us" hcl:"work_us,optional"`           // simulated work per tick
	ForwardTo           string   `yaml:"forward_to" hcl:"forward_to,optional"`     // thread that gets a task every tick
	TaskWorkUS          int      `yaml:"task_work_us" hcl:"task_work_us,optional"` // work done by each forwarded task
}

// Spec converts the thread entry into a Spec.
func (tc ThreadConfig) Spec() (Spec, error) {
	order, err := ParseQueueOrder(tc.QueueOrder)
	if err != nil {
		return Spec{}, fmt.Errorf("thread %q: %w", tc.Name, err)
	}
	threshold := tc.TaskWarnThreshold
	if threshold < 0 {
		threshold = 0
	}
	return Spec{
		Name:              tc.Name,
		TPS:               tc.TPS,
		Order:             order,
		TaskWarnThreshold: threshold,
		IdlePoll:          time.Duration(tc.IdlePollMS) * time.Millisecond,
		DependencyTimeout: time.Duration(tc.DependencyTimeoutMS) * time.Millisecond,
	}, nil
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// DefaultThreads is the engine layout used when the config names no threads:
// input polling, simulation feeding the renderer, and an asset loader the
// renderer hands uploads to.
func DefaultThreads() []ThreadConfig {
	return []ThreadConfig{
		{Name: "input", TPS: 250, QueueOrder: "before_tick", WorkUS: 50},
		{Name: "sim", TPS: 60, QueueOrder: "after_tick", DependsOn: []string{"input"}, WorkUS: 1500, ForwardTo: "render", TaskWorkUS: 200},
		{Name: "render", TPS: 60, QueueOrder: "before_tick", DependsOn: []string{"sim"}, WorkUS: 4000, ForwardTo: "loader", TaskWorkUS: 1000},
		{Name: "loader", QueueOrder: "queue_only", IdlePollMS: 5},
	}
}

// Load reads YAML, or HCL for a .hcl path, over the defaults. An empty path
// or a missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		case strings.EqualFold(filepath.Ext(path), ".hcl"):
			if err := hclsimple.Decode(path, data, nil, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	cfg.clamp()
	return cfg, cfg.Validate()
}

// sanity clamps
func (c *Config) clamp() {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.LogFormat = strings.ToLower(c.LogFormat)
	if c.LogFormat != "json" {
		c.LogFormat = "text"
	}
	if c.RunForMS < 0 {
		c.RunForMS = 0
	}
	if len(c.Threads) == 0 {
		c.Threads = DefaultThreads()
	}
	for i := range c.Threads {
		tc := &c.Threads[i]
		if tc.TPS < 0 {
			tc.TPS = 0
		}
		if tc.TaskWarnThreshold == 0 {
			tc.TaskWarnThreshold = DefaultTaskWarnThreshold
		}
		if tc.IdlePollMS <= 0 {
			tc.IdlePollMS = int(DefaultIdlePoll / time.Millisecond)
		}
		if tc.DependencyTimeoutMS < 0 {
			tc.DependencyTimeoutMS = 0
		}
		if tc.WorkUS < 0 {
			tc.WorkUS = 0
		}
		if tc.TaskWorkUS < 0 {
			tc.TaskWorkUS = 0
		}
	}
}

// Validate checks names, references and queue orders.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Threads))
	for _, tc := range c.Threads {
		if tc.Name == "" {
			return errors.New("thread with empty name")
		}
		if seen[tc.Name] {
			return fmt.Errorf("duplicate thread %q", tc.Name)
		}
		seen[tc.Name] = true
		if _, err := ParseQueueOrder(tc.QueueOrder); err != nil {
			return fmt.Errorf("thread %q: %w", tc.Name, err)
		}
	}
	for _, tc := range c.Threads {
		for _, dep := range tc.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("thread %q depends on unknown thread %q", tc.Name, dep)
			}
		}
		if tc.ForwardTo != "" && !seen[tc.ForwardTo] {
			return fmt.Errorf("thread %q forwards to unknown thread %q", tc.Name, tc.ForwardTo)
		}
	}
	_, err := c.StartOrder()
	return err
}

// StartOrder sorts the threads so every thread comes after its dependencies,
// keeping file order among independent threads.
func (c Config) StartOrder() ([]ThreadConfig, error) {
	index := make(map[string]int, len(c.Threads))
	for i, tc := range c.Threads {
		index[tc.Name] = i
	}
	pending := make([]int, len(c.Threads))
	dependents := make([][]int, len(c.Threads))
	for i, tc := range c.Threads {
		for _, dep := range tc.DependsOn {
			j, ok := index[dep]
			if !ok {
				continue
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	q := linkedlistqueue.New()
	for i := range c.Threads {
		if pending[i] == 0 {
			q.Enqueue(i)
		}
	}
	order := make([]ThreadConfig, 0, len(c.Threads))
	for !q.Empty() {
		v, _ := q.Dequeue()
		i := v.(int)
		order = append(order, c.Threads[i])
		for _, d := range dependents[i] {
			if pending[d]--; pending[d] == 0 {
				q.Enqueue(d)
			}
		}
	}

	if len(order) != len(c.Threads) {
		var stuck []string
		for i, n := range pending {
			if n > 0 {
				stuck = append(stuck, c.Threads[i].Name)
			}
		}
		return nil, fmt.Errorf("%w among threads: %s", ErrDependencyCycle, strings.Join(stuck, ", "))
	}
	return order, nil
}
