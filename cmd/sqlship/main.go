package main

import (
	"context"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/sqlship/sqlship/pkg/app"
	"github.com/sqlship/sqlship/pkg/config"
	"github.com/sqlship/sqlship/pkg/logutil"
	"github.com/sqlship/sqlship/pkg/sink"
	"github.com/sqlship/sqlship/pkg/utils"
)

func main() {
	cfg := config.NewConfig()
	err := cfg.ParseCmd(os.Args[1:])
	switch errors.Cause(err) {
	case nil:
	case flag.ErrHelp:
		os.Exit(0)
	default:
		log.Fatalf("parse cmd flags errors: %s\n", err)
	}

	if cfg.Version {
		utils.PrintRawInfo("sqlship")
		os.Exit(0)
	}

	if cfg.ConfigFile == "" {
		log.Fatal("config must not be empty")
	}
	if err := cfg.ConfigFromFile(cfg.ConfigFile); err != nil {
		log.Fatalf("failed to load config from file: %v", errors.ErrorStack(err))
	}

	logutil.MustInitLogger(&cfg.Log)
	utils.LogRawInfo("sqlship")

	if cfg.ClearState {
		if err := os.Remove(cfg.StateFile); err != nil && !os.IsNotExist(err) {
			log.Fatalf("failed to clear state file %s: %v", cfg.StateFile, err)
		}
		log.Infof("state file %s cleared", cfg.StateFile)
		return
	}

	server, err := app.NewServer(cfg)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}

	if cfg.HTTPAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.HTTPAddr, nil); err != nil {
				log.Fatalf("http error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.IntervalDuration <= 0 {
		os.Exit(runOnce(ctx, server))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(errors.Trace(err))
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.ConfigFile); err != nil {
		log.Fatal(errors.Trace(err))
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	ticker := time.NewTicker(cfg.IntervalDuration)
	defer ticker.Stop()

	exitCode := 0
	if runOnce(ctx, server) != 0 {
		exitCode = 1
	}

	for {
		select {
		case sig := <-sc:
			log.Infof("[sqlship] stop with signal %v", sig)
			os.Exit(exitCode)

		case <-ticker.C:
			if runOnce(ctx, server) != 0 {
				exitCode = 1
			}

		case event, ok := <-watcher.Events:
			if !ok {
				continue
			}
			if event.Name != cfg.ConfigFile {
				continue
			}
			log.Info("config file event: ", event.String())
			log.Info("config file updated, quit...")
			os.Exit(1)

		case err, ok := <-watcher.Errors:
			if !ok {
				continue
			}
			log.Println("error:", err)
			os.Exit(1)
		}
	}
}

// runOnce drives one full pass and maps its outcome to an exit code:
// 0 when every job completed, 1 when the run aborted or any job failed.
func runOnce(ctx context.Context, server *app.Server) int {
	results, err := server.Run(ctx)
	if err != nil {
		if errors.Cause(err) == sink.ErrSinkUnreachable {
			log.Errorf("Cannot contact the Syslog server. Ensure the Syslog server is on. (%v)", err)
		} else {
			log.Errorf("run aborted: %v", errors.ErrorStack(err))
		}
		return 1
	}

	if failed := app.FailedJobs(results); failed > 0 {
		log.Warnf("%d of %d jobs failed", failed, len(results))
		return 1
	}
	return 0
}
