// Package server implements the process lifecycle of §4.G: the parent's
// startup sequence (shared memory, semaphores, worker spawn) and teardown,
// and the worker child's entry point.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/agentscope/agentserver/internal/agenthost"
	"github.com/agentscope/agentserver/internal/config"
	"github.com/agentscope/agentserver/internal/dispatch"
	"github.com/agentscope/agentserver/internal/logging"
	"github.com/agentscope/agentserver/internal/shm"
	"github.com/agentscope/agentserver/internal/tasks"
	"github.com/agentscope/agentserver/internal/worker"
)

// WorkerIndexFlag is the hidden flag name cmd/agentserver uses to tell a
// re-exec'd child which shard it is. A parent process never sets it.
const WorkerIndexFlag = "worker-index"

func commandRegionPath(cfg config.Config) string {
	return filepath.Join(cfg.ShmDir, fmt.Sprintf("agentserver_cmd_%d", cfg.Port))
}

func poolPath(cfg config.Config) string {
	return filepath.Join(cfg.ShmDir, fmt.Sprintf("agentserver_pool_%d", cfg.Port))
}

// semaphoreKeys derives the worker-sync and completion-array base keys
// from the listen port so two agentserver instances on different ports
// never collide over SysV IPC key space, the same way their shared-memory
// paths are namespaced by port.
func semaphoreKeys(cfg config.Config) (workerSyncKey, completionBaseKey int) {
	base := cfg.Port * 1000
	return base, base + 1
}

// Parent owns every shared resource created at startup and is responsible
// for tearing all of it down exactly once, in the order §4.G specifies.
type Parent struct {
	cfg     config.Config
	cfgPath string
	logger  *logging.Logger
	mainPID int

	cmdRegion  *shm.CommandRegion
	pool       *shm.Pool
	callIDs    *shm.CallIDPool
	workerSync *shm.WorkerSync
	completion *shm.CompletionArray
	channel    *shm.Channel

	dispatcher *dispatch.Dispatcher
	tasks      *tasks.Registry

	procs []*exec.Cmd
}

// NewParent builds a Parent for cfg, loaded from cfgPath (re-passed to
// worker children on re-exec so they load the identical configuration).
func NewParent(cfg config.Config, cfgPath string, logger *logging.Logger) *Parent {
	return &Parent{cfg: cfg, cfgPath: cfgPath, logger: logger, mainPID: os.Getpid()}
}

// Start performs the full parent startup order of §4.G: log directory,
// command region, small-object pool, call-id pool, semaphore sets, then
// one re-exec'd worker child per shard.
func (p *Parent) Start() error {
	if err := os.MkdirAll(p.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("creating log dir %s: %w", p.cfg.LogDir, err)
	}
	if err := os.MkdirAll(p.cfg.ShmDir, 0o755); err != nil {
		return fmt.Errorf("creating shm dir %s: %w", p.cfg.ShmDir, err)
	}

	cmdRegion, err := shm.OpenCommandRegion(commandRegionPath(p.cfg), p.cfg.NumWorkers)
	if err != nil {
		return fmt.Errorf("opening command region: %w", err)
	}
	p.cmdRegion = cmdRegion

	pool, err := shm.OpenPool(poolPath(p.cfg), p.cfg.MaxCallID, p.cfg.SmallObjSize)
	if err != nil {
		return fmt.Errorf("opening small-object pool: %w", err)
	}
	p.pool = pool
	p.channel = shm.NewChannel(pool, p.cfg.ShmDir, p.cfg.Port)

	p.callIDs = shm.NewCallIDPool(p.cfg.MaxCallID)

	workerSyncKey, completionBaseKey := semaphoreKeys(p.cfg)
	workerSync, err := shm.NewWorkerSync(workerSyncKey, p.cfg.NumWorkers)
	if err != nil {
		return fmt.Errorf("creating worker-sync semaphores: %w", err)
	}
	p.workerSync = workerSync

	completion, err := shm.NewCompletionArray(completionBaseKey, p.cfg.MaxCallID, p.cfg.SemsPerSet)
	if err != nil {
		return fmt.Errorf("creating completion semaphores: %w", err)
	}
	p.completion = completion

	routing := dispatch.NewRoutingTable()
	p.dispatcher = dispatch.NewDispatcher(p.cfg.NumWorkers, p.callIDs, p.channel, p.cmdRegion, p.workerSync, p.completion, routing)
	p.tasks = tasks.New(p.cfg.MaxTasks, time.Duration(p.cfg.MaxTimeoutSeconds)*time.Second, time.Now)

	for i := 0; i < p.cfg.NumWorkers; i++ {
		if err := p.spawnWorker(i); err != nil {
			return fmt.Errorf("spawning worker %d: %w", i, err)
		}
	}
	return nil
}

// spawnWorker re-execs the running binary with the hidden worker-index
// flag set — Go has no bare fork(), so the child rebuilds its view of the
// shared resources from cfgPath and cfg.Port/ShmDir rather than inheriting
// descriptors, the same way the teacher's peers are addressed by config
// rather than by inherited state.
func (p *Parent) spawnWorker(index int) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}
	args := []string{"--config", p.cfgPath, "--" + WorkerIndexFlag, strconv.Itoa(index)}
	cmd := exec.Command(self, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting worker %d: %w", index, err)
	}
	p.logger.Info("spawned worker", logging.F("worker", index), logging.F("pid", cmd.Process.Pid))
	p.procs = append(p.procs, cmd)
	return nil
}

// Dispatcher exposes the front-end dispatch layer for the RPC façade.
func (p *Parent) Dispatcher() *dispatch.Dispatcher { return p.dispatcher }

// Tasks exposes the task registry for the RPC façade.
func (p *Parent) Tasks() *tasks.Registry { return p.tasks }

// Serve blocks until ctx is cancelled or a SIGINT/SIGTERM arrives, then
// tears the parent down.
func (p *Parent) Serve(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		p.logger.Info("received signal", logging.F("signal", sig.String()))
	}
	return p.Teardown()
}

// Teardown implements §4.G's parent-only teardown: close mmaps, signal and
// wait for every child, then unlink every named IPC object the parent
// created. It is a no-op (beyond closing local mmaps) in a process that
// isn't the recorded main pid, since only the parent may remove shared
// state other processes might still be using.
func (p *Parent) Teardown() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if p.pool != nil {
		record(p.pool.Close())
	}
	if p.cmdRegion != nil {
		record(p.cmdRegion.Close())
	}

	if os.Getpid() != p.mainPID {
		return firstErr
	}

	for _, cmd := range p.procs {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
			p.logger.Error("signalling worker", logging.F("pid", cmd.Process.Pid), logging.F("error", err.Error()))
		}
	}
	for _, cmd := range p.procs {
		cmd.Wait()
	}

	record(shm.Unlink(commandRegionPath(p.cfg)))
	record(shm.Unlink(poolPath(p.cfg)))
	if p.workerSync != nil {
		record(p.workerSync.Remove())
	}
	if p.completion != nil {
		record(p.completion.Remove())
	}
	shm.UnlinkDangling(p.cfg.ShmDir, p.cfg.Port, p.cfg.MaxCallID)

	return firstErr
}

// RunWorker is the worker child's entry point (§4.C): open the already-
// created shared resources, dial the agent host, and run the main loop
// until cancelled or fatally broken. On fatal error it signals the parent
// with SIGINT, as §4.G specifies, before returning the error.
func RunWorker(ctx context.Context, cfg config.Config, index int) error {
	logger, closeLog, err := logging.OpenFile(cfg.LogDir, fmt.Sprintf("%d-%d", cfg.Port, index), cfg.UseVerboseLogger)
	if err != nil {
		return fmt.Errorf("opening worker log file: %w", err)
	}
	defer closeLog()

	cmdRegion, err := shm.OpenCommandRegion(commandRegionPath(cfg), cfg.NumWorkers)
	if err != nil {
		return fmt.Errorf("opening command region: %w", err)
	}
	defer cmdRegion.Close()

	pool, err := shm.OpenPool(poolPath(cfg), cfg.MaxCallID, cfg.SmallObjSize)
	if err != nil {
		return fmt.Errorf("opening small-object pool: %w", err)
	}
	defer pool.Close()
	channel := shm.NewChannel(pool, cfg.ShmDir, cfg.Port)

	workerSyncKey, completionBaseKey := semaphoreKeys(cfg)
	workerSync, err := shm.NewWorkerSync(workerSyncKey, cfg.NumWorkers)
	if err != nil {
		return fmt.Errorf("opening worker-sync semaphores: %w", err)
	}
	completion, err := shm.NewCompletionArray(completionBaseKey, cfg.MaxCallID, cfg.SemsPerSet)
	if err != nil {
		return fmt.Errorf("opening completion semaphores: %w", err)
	}

	host, err := resolveHost(ctx, cfg)
	if err != nil {
		return fmt.Errorf("resolving agent host: %w", err)
	}

	w := worker.New(index, cfg.ServerID, host, channel, cmdRegion, workerSync, completion, logger)

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-workerCtx.Done():
		}
	}()

	logger.Info("worker starting")
	runErr := w.Run(workerCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("worker exiting on fatal error", logging.F("error", runErr.Error()))
		notifyParent()
		return runErr
	}
	logger.Info("worker stopped")
	return nil
}

// resolveHost dials the configured external agent runtime, or falls back
// to an in-memory ReferenceHost when none is configured — local
// development and the in-process integration tests never set
// AgentHostAddr. The dial retries with backoff since a worker can start
// before the external runtime it depends on has finished coming up.
func resolveHost(ctx context.Context, cfg config.Config) (agenthost.Host, error) {
	if cfg.AgentHostAddr == "" {
		return agenthost.NewReferenceHost(), nil
	}
	return agenthost.DialProcessHostWithRetry(ctx, cfg.AgentHostAddr, 10)
}

// notifyParent signals the process that spawned this one with SIGINT, per
// §4.G's "on fatal error they signal the parent" — a worker that dies
// mid-loop still triggers an orderly teardown instead of leaving the
// parent waiting on a command slot nobody will ever service again.
func notifyParent() {
	proc, err := os.FindProcess(os.Getppid())
	if err != nil {
		return
	}
	proc.Signal(syscall.SIGINT)
}
