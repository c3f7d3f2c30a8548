package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"

	"github.com/PrimeBuild-pc/threadpilot/pkg/affinity"
	"github.com/PrimeBuild-pc/threadpilot/pkg/config"
	"github.com/PrimeBuild-pc/threadpilot/pkg/monitor"
	"github.com/PrimeBuild-pc/threadpilot/pkg/powerplan"
	"github.com/PrimeBuild-pc/threadpilot/pkg/process"
	"github.com/PrimeBuild-pc/threadpilot/pkg/topology"
)

func main() {
	var configPath = flag.String("config", "", "Path to the daemon configuration file")
	flag.Parse()

	logger := klog.NewKlogr()

	conf, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Error(err, "Failed to load configuration")
		os.Exit(1)
	}
	if problems := conf.Validate(); len(problems) > 0 {
		for _, p := range problems {
			logger.Info("Invalid configuration", "problem", p)
		}
		os.Exit(1)
	}
	logger.Info("Loaded configuration", "config", conf)

	boostPriority, err := process.ParsePriority(conf.BoostPriority)
	if err != nil {
		logger.Error(err, "Failed to parse boost priority")
		os.Exit(1)
	}

	store, err := powerplan.NewStore(conf.AssociationFile, powerplan.Config{
		PollInterval: conf.PollInterval(),
		ChangeDelay:  conf.ChangeDelay(),
	}, logger)
	if err != nil {
		logger.Error(err, "Failed to load associations")
		os.Exit(1)
	}

	var setter powerplan.Setter
	if conf.PowerPlanCommand != "" {
		setter = powerplan.ExecSetter{Command: conf.PowerPlanCommand, Args: conf.PowerPlanArgs, Logger: logger}
	} else {
		setter = powerplan.NopSetter{Logger: logger}
	}

	detector := topology.NewDetector(topology.LscpuProvider{}, runtime.NumCPU, logger)
	mon := monitor.New(store, process.ProcLister{}, process.UnixController{Logger: logger}, setter, monitor.Options{
		BoostPreset:   conf.BoostPreset,
		BoostPriority: boostPriority,
	}, logger)

	detector.Subscribe(func(t topology.Topology) {
		if t.LogicalCount() == 0 {
			logger.Info("Topology detection failed, affinity boosting disabled", "reason", t.DetectionError)
		}
		mon.SetTopology(t)
		for _, preset := range affinity.BuildPresets(t) {
			logger.Info("Affinity preset", "name", preset.Name, "mask", preset.Mask.String(), "available", preset.Available)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	detector.DetectAsync(ctx)
	go mon.Run(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error(err, "Failed to create fsnotify watcher")
		os.Exit(1)
	}
	defer watcher.Close()
	if err := watcher.Add(conf.AssociationFile); err != nil {
		logger.Info("Association file not watchable, hot reload disabled", "path", conf.AssociationFile, "reason", err.Error())
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	for {
		select {
		case sig := <-signalCh:
			switch sig {
			case syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT:
				logger.Info("Received signal, shutting down.", "signal", sig.String())
				cancel()
				return
			case syscall.SIGHUP:
				logger.Info("Received SIGHUP, re-detecting topology")
				detector.DetectAsync(ctx)
			}
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Info("Association file changed, reloading", "event", event.String())
			if err := store.Reload(); err != nil {
				logger.Error(err, "Failed to reload associations")
			}
		case err := <-watcher.Errors:
			logger.Error(err, "Watcher error")
		}
	}
}
