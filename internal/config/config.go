// Package config loads the server's topology and tuning knobs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables for one agentserver process.
type Config struct {
	// ServerID identifies this server instance in logs and server_info replies.
	ServerID string `yaml:"server_id"`

	// Host/Port is the gRPC listen address.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// NumWorkers is the requested worker-process count; lowered to
	// runtime.NumCPU() at startup if larger. Validate rejects values below 1.
	NumWorkers int `yaml:"num_workers"`

	// MaxCallID bounds concurrent in-flight calls and sizes the small-object
	// pool and completion-semaphore sets. Overridden by AGENTSCOPE_MAX_CALL_ID.
	MaxCallID int `yaml:"max_call_id"`

	// SmallObjSize is the payload-size cutoff (in bytes) at or below which a call's
	// args/result travel through the small-object pool instead of a named
	// shared-memory segment.
	SmallObjSize int `yaml:"small_obj_size"`

	// SemsPerSet is how many completion-semaphore slots live in one SysV
	// semaphore set (sem_num_per_sem_id in the reference design).
	SemsPerSet int `yaml:"sems_per_set"`

	// MaxTasks bounds the outstanding-task FIFO.
	MaxTasks int `yaml:"max_tasks"`

	// MaxTimeoutSeconds is the wall-clock age at which a task becomes
	// eligible for lazy eviction from the FIFO.
	MaxTimeoutSeconds int `yaml:"max_timeout_seconds"`

	// LogDir is where the parent and per-worker log files are written.
	LogDir string `yaml:"log_dir"`

	// ShmDir is the directory backing named shared-memory segments and the
	// small-object pool (normally /dev/shm).
	ShmDir string `yaml:"shm_dir"`

	// UseVerboseLogger mirrors AGENTSCOPE_USE_CPP_LOGGER: when false, workers
	// still write their log files but at a quieter level.
	UseVerboseLogger bool `yaml:"use_verbose_logger"`

	// AgentHostAddr is the address of the external agent runtime process a
	// worker dials via ProcessHost. Empty means "no external runtime
	// configured"; each worker falls back to an in-memory ReferenceHost,
	// useful for local development and the integration tests.
	AgentHostAddr string `yaml:"agent_host_addr"`
}

// Default returns a Config populated with the reference implementation's
// defaults, before any file or environment overrides are applied.
func Default() Config {
	return Config{
		ServerID:          "agentserver",
		Host:              "0.0.0.0",
		Port:              12010,
		NumWorkers:        4,
		MaxCallID:         10000,
		SmallObjSize:      4096,
		SemsPerSet:        10000,
		MaxTasks:          1000,
		MaxTimeoutSeconds: 1800,
		LogDir:            "./logs",
		ShmDir:            "/dev/shm",
		UseVerboseLogger:  false,
	}
}

// Load reads a YAML config file, falling back to Default() for any field the
// file omits, then applies environment-variable overrides. path is itself
// overridden by CONFIG_PATH when set, mirroring the cluster loader this
// server's predecessor used for its JSON config.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTSCOPE_MAX_CALL_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxCallID = n
		}
	}
	if v := os.Getenv("AGENTSCOPE_USE_CPP_LOGGER"); v == "True" {
		cfg.UseVerboseLogger = true
	}
}

// Validate rejects tunables that would make the server unable to start.
func (c Config) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("num_workers must be >= 1, got %d", c.NumWorkers)
	}
	if c.MaxCallID < 1 {
		return fmt.Errorf("max_call_id must be >= 1, got %d", c.MaxCallID)
	}
	if c.SmallObjSize < 0 {
		return fmt.Errorf("small_obj_size must be >= 0, got %d", c.SmallObjSize)
	}
	if c.SemsPerSet < 1 {
		return fmt.Errorf("sems_per_set must be >= 1, got %d", c.SemsPerSet)
	}
	if c.MaxTasks < 1 {
		return fmt.Errorf("max_tasks must be >= 1, got %d", c.MaxTasks)
	}
	if c.MaxTimeoutSeconds < 1 {
		return fmt.Errorf("max_timeout_seconds must be >= 1, got %d", c.MaxTimeoutSeconds)
	}
	return nil
}

// Address returns the host:port gRPC listen address.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
