package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cronfuture/cronfuture/cronengine"
	"github.com/cronfuture/cronfuture/future"
	"github.com/cronfuture/cronfuture/internal/zlog"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run the scheduler, executing every enabled job on its pattern",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runner owns the live engine/registry and the name -> handle mapping used
// by the config hot-reload handler to diff job sets.
type runner struct {
	reg    *future.Registry
	engine *cronengine.Cron
	dir    string
	logger future.Logger

	mu      sync.Mutex
	handles map[string]*future.Handle[string]
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := zlog.New(os.Stdout, zerolog.InfoLevel)

	v := newViper(rootFlags.configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", rootFlags.configPath, err)
	}
	cfg, err := unmarshalValidate(v)
	if err != nil {
		return err
	}

	parser := cronengine.NewParser(cronengine.Second | cronengine.Minute | cronengine.Hour | cronengine.Dom | cronengine.Month | cronengine.Dow | cronengine.Descriptor)
	engine := cronengine.New(cronengine.WithParser(parser), cronengine.WithLogger(logger))
	reg := future.NewRegistry(engine, parser, future.WithRegistryLogger(logger))

	dir := snapshotDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}

	r := &runner{reg: reg, engine: engine, dir: dir, logger: logger, handles: make(map[string]*future.Handle[string])}
	for _, j := range cfg.Jobs {
		r.scheduleJob(j)
	}

	engine.Start()

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config changed, reloading jobs", "event", e.Name)
		newCfg, err := unmarshalValidate(v)
		if err != nil {
			logger.Error(err, "reload failed, keeping previous job set")
			return
		}
		r.reconcile(newCfg.Jobs)
	})
	v.WatchConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "shutdown did not complete cleanly")
	}
	engine.Stop()
	return nil
}

// scheduleJob builds a Task that runs j.Command through a shell, schedules
// it, and attaches both an ordinary listener (snapshot persistence) and a
// priority listener (status logging) to the resulting handle.
func (r *runner) scheduleJob(j JobConfig) {
	if j.Disabled {
		return
	}
	name := j.Name
	task := future.Task[string](func(ctx context.Context) (string, error) {
		out, err := exec.CommandContext(ctx, "sh", "-c", j.Command).CombinedOutput()
		return string(out), err
	})

	h, err := future.Schedule(r.reg, j.Pattern, task)
	if err != nil {
		r.logger.Error(err, "failed to schedule job", "job", name, "pattern", j.Pattern)
		return
	}

	h.AddListener(func(snap future.Snapshot[string]) {
		if err := r.persist(name, snap); err != nil {
			r.logger.Error(err, "failed to persist snapshot", "job", name)
		}
	})
	h.AddPriorityListener(func(snap future.Snapshot[string]) {
		if _, err := snap.Last(); err != nil {
			r.logger.Error(err, "job tick failed", "job", name)
			return
		}
		r.logger.Info("job tick completed", "job", name)
	})

	r.mu.Lock()
	r.handles[name] = h
	r.mu.Unlock()
}

func (r *runner) persist(name string, snap future.Snapshot[string]) error {
	data, err := snap.MarshalBinary()
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.dir, name+".snapshot"), data, 0o644)
}

// reconcile diffs the running job set against jobs: jobs that are new or
// were disabled and are now enabled get scheduled; jobs that disappeared or
// became disabled get cancelled.
func (r *runner) reconcile(jobs []JobConfig) {
	wanted := make(map[string]JobConfig, len(jobs))
	for _, j := range jobs {
		if !j.Disabled {
			wanted[j.Name] = j
		}
	}

	r.mu.Lock()
	var toCancel []string
	for name := range r.handles {
		if _, ok := wanted[name]; !ok {
			toCancel = append(toCancel, name)
		}
	}
	r.mu.Unlock()

	for _, name := range toCancel {
		r.mu.Lock()
		h := r.handles[name]
		delete(r.handles, name)
		r.mu.Unlock()
		h.Cancel()
		r.logger.Info("job cancelled by config reload", "job", name)
	}

	r.mu.Lock()
	for name := range wanted {
		if _, scheduled := r.handles[name]; !scheduled {
			j := wanted[name]
			r.mu.Unlock()
			r.scheduleJob(j)
			r.mu.Lock()
		}
	}
	r.mu.Unlock()
}
