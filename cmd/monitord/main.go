package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"grdmonitor/internal/alarm"
	"grdmonitor/internal/bus"
	"grdmonitor/internal/config"
	"grdmonitor/internal/flags"
	"grdmonitor/internal/grd"
	"grdmonitor/internal/health"
	"grdmonitor/internal/logging"
	"grdmonitor/internal/metrics"
	"grdmonitor/internal/modbus"
	"grdmonitor/internal/notify"
	"grdmonitor/internal/relay"
	"grdmonitor/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(cfg.Log)
	defer logger.Sync()

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Infof("received signal %v, shutting down", s)
		cancel()
	}()

	eventBus := bus.Connect(cfg.MQTT, logger)
	defer eventBus.Close()

	driver := modbus.NewDriver(cfg.Modbus.Host, cfg.Modbus.Port, cfg.Modbus.ConnectTimeout, logger)
	defer driver.Disconnect()

	observar := flags.NewObservarStore(cfg.Flags.ObservarPath, logger)
	excluded := flags.LoadExclusions(cfg.Alarms.ExclusionFile, logger.Named("ALRM/INIT"))

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	run(grd.NewPoller(driver, st, eventBus, cfg.GRD, logger).Run)
	run(relay.NewScanner(driver, observar, st, cfg.Relays.PollInterval, logger).Run)

	var modemSrc alarm.ModemSource
	if cfg.Router.BaseURL != "" {
		modemSrc = health.NewRouterClient(cfg.Router.BaseURL, cfg.Router.Timeout)
	}
	var pveSrc alarm.HypervisorSource
	if cfg.Proxmox.BaseURL != "" {
		monitor := health.NewProxmoxMonitor(
			health.NewProxmoxClient(cfg.Proxmox.BaseURL, cfg.Proxmox.Node, cfg.Proxmox.Token, cfg.Proxmox.Timeout, cfg.Proxmox.Insecure),
			cfg.Proxmox.PollInterval, logger)
		run(monitor.Run)
		pveSrc = monitor
	}

	dispatcher := notify.NewDispatcher(
		notify.NewMailClient(cfg.Mail), st, eventBus,
		cfg.Alarms.Recipients, cfg.Alarms.SubjectPrefix, logger)
	run(alarm.NewManager(cfg.Alarms, cfg.Proxmox.VMIDs, excluded,
		st, modemSrc, pveSrc, dispatcher, eventBus, alarm.SystemClock(), logger).Run)

	if cfg.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.ListenAddress, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("metrics listener: %v", err)
			}
		}()
	}

	wg.Wait()
}
