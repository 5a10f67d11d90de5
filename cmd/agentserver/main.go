// Command agentserver runs the multi-process agent execution server: a
// parent that owns shared memory, semaphores, and the gRPC façade, plus
// one re-exec'd worker child per shard.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"runtime"

	"google.golang.org/grpc"

	"github.com/agentscope/agentserver/internal/config"
	"github.com/agentscope/agentserver/internal/logging"
	"github.com/agentscope/agentserver/internal/rpcapi"
	"github.com/agentscope/agentserver/internal/rpcserver"
	"github.com/agentscope/agentserver/internal/server"
)

func main() {
	configPath := flag.String("config", "config/agentserver.yaml", "path to the YAML config file")
	workerIndex := flag.Int("worker-index", -1, "internal: re-exec'd worker shard index, never set by a user")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if n := runtime.NumCPU(); cfg.NumWorkers > n {
		cfg.NumWorkers = n
	}

	if *workerIndex >= 0 {
		if err := server.RunWorker(context.Background(), cfg, *workerIndex); err != nil {
			log.Fatalf("worker %d exited with error: %v", *workerIndex, err)
		}
		return
	}

	if err := runParent(cfg, *configPath); err != nil {
		log.Fatalf("%v", err)
	}
}

func runParent(cfg config.Config, configPath string) error {
	logger, closeLog, err := logging.OpenFile(cfg.LogDir, fmt.Sprintf("%d", cfg.Port), cfg.UseVerboseLogger)
	if err != nil {
		return fmt.Errorf("opening parent log file: %w", err)
	}
	defer closeLog()

	parent := server.NewParent(cfg, configPath, logger)
	if err := parent.Start(); err != nil {
		return fmt.Errorf("starting parent: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	facade := rpcserver.New(cfg.ServerID, parent.Dispatcher(), parent.Tasks(), logger, cancel)
	grpcServer := grpc.NewServer()
	rpcapi.RegisterServer(grpcServer, facade)

	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		parent.Teardown()
		return fmt.Errorf("listening on %s: %w", cfg.Address(), err)
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(ln) }()
	logger.Info("server listening", logging.F("address", cfg.Address()), logging.F("num_workers", cfg.NumWorkers))

	go func() {
		if err := <-serveErr; err != nil {
			logger.Error("grpc server stopped", logging.F("error", err.Error()))
			cancel()
		}
	}()

	err = parent.Serve(ctx)
	grpcServer.GracefulStop()
	if err != nil {
		return fmt.Errorf("tearing down: %w", err)
	}
	return nil
}
