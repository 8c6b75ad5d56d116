package alarm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"grdmonitor/internal/bus"
	"grdmonitor/internal/config"
	"grdmonitor/internal/health"
	"grdmonitor/internal/metrics"
	"grdmonitor/internal/store"
)

// HistorySource supplies the connectivity snapshot the engines evaluate.
type HistorySource interface {
	LatestStates() (map[int]int, error)
	Disconnected() ([]store.DisconnectedGRD, error)
}

// ModemSource reports the router link state ("abierto"/"cerrado").
type ModemSource interface {
	ModemState() string
}

// HypervisorSource supplies the cached hypervisor snapshot.
type HypervisorSource interface {
	Snapshot() health.ProxmoxSnapshot
}

// AlarmDispatcher delivers one fired alarm.
type AlarmDispatcher interface {
	Dispatch(category, subject, body string)
}

// Manager runs every alarm category on a fixed cycle, computing the global
// connectivity percentage from the history store and handing fired alarms to
// the dispatcher. All engine state is owned by the manager's single
// goroutine.
type Manager struct {
	cfg        config.AlarmConfig
	history    HistorySource
	modemSrc   ModemSource
	pveSrc     HypervisorSource
	dispatcher AlarmDispatcher
	bus        *bus.Bus
	log        *zap.SugaredLogger

	global *GlobalEngine
	node   *NodeEngine
	modem  *ModemEngine
	host   *HostEngine
	vms    *VMEngine
}

// NewManager wires the category engines. modemSrc and pveSrc may be nil when
// the corresponding monitor is not configured. excluded devices never raise
// per-device alarms.
func NewManager(cfg config.AlarmConfig, vmIDs []int, excluded map[int]bool,
	history HistorySource, modemSrc ModemSource, pveSrc HypervisorSource,
	dispatcher AlarmDispatcher, b *bus.Bus, clock Clock, log *zap.SugaredLogger) *Manager {

	return &Manager{
		cfg:        cfg,
		history:    history,
		modemSrc:   modemSrc,
		pveSrc:     pveSrc,
		dispatcher: dispatcher,
		bus:        b,
		log:        log.Named("ALRM/MGR"),
		global:     NewGlobalEngine(cfg.GlobalRedThreshold, cfg.MinSustainedDuration, clock, log),
		node:       NewNodeEngine(cfg.GlobalRedThreshold, cfg.MinSustainedDuration, excluded, clock, log),
		modem:      NewModemEngine(cfg.MinSustainedDuration, clock, log),
		host:       NewHostEngine(cfg.MinSustainedDuration, clock, log),
		vms:        NewVMEngine(vmIDs, cfg.MinSustainedDuration, clock, log),
	}
}

// Run evaluates until the context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.log.Infof("starting alarm evaluator (interval %s, sustain %s)", m.cfg.CheckInterval, m.cfg.MinSustainedDuration)
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		m.RunOnce()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one evaluation pass over every alarm category.
func (m *Manager) RunOnce() {
	minutes := int(m.cfg.MinSustainedDuration.Minutes())

	states, err := m.history.LatestStates()
	if err != nil {
		m.log.Errorf("load latest states: %v", err)
		return
	}
	total := len(states)
	connected := 0
	for _, v := range states {
		if v == 1 {
			connected++
		}
	}
	percentage := 0.0
	if total > 0 {
		percentage = float64(connected) / float64(total) * 100
	}
	metrics.ConnectedPercentage.Set(percentage)
	m.bus.PublishGlobalSummary(percentage, total, connected)

	disconnected, err := m.history.Disconnected()
	if err != nil {
		m.log.Errorf("load disconnected set: %v", err)
		return
	}

	if m.global.Evaluate(percentage) {
		m.dispatcher.Dispatch("global",
			"Middleware sin conexion",
			fmt.Sprintf("Conectividad global de los exemys ha caido por debajo del %.0f%% (%.2f%%) por mas de %d minutos.\n",
				m.cfg.GlobalRedThreshold, percentage, minutes))
	}

	for _, alert := range m.node.Evaluate(percentage, disconnected) {
		m.dispatcher.Dispatch("nodo",
			fmt.Sprintf("%s sin conexion", alert.Description),
			fmt.Sprintf("GRD %s sin conexion por mas de %d minutos, con conectividad global por encima del %.0f%% (%.2f%%).\n",
				alert.Description, minutes, m.cfg.GlobalRedThreshold, percentage))
	}

	if m.modemSrc != nil {
		state := m.modemSrc.ModemState()
		if state == "abierto" {
			m.bus.PublishModemState("conectado")
		} else {
			m.bus.PublishModemState("desconectado")
		}
		if m.modem.Evaluate(state) {
			m.dispatcher.Dispatch("modem",
				"Alarma de ruteo de modem",
				fmt.Sprintf("El modem del ruteo ha estado desconectado por mas de %d minutos.", minutes))
		}
	}

	if m.pveSrc != nil {
		snap := m.pveSrc.Snapshot()
		if m.host.Evaluate(snap) {
			m.dispatcher.Dispatch("pve_host",
				"Hipervisor Proxmox inalcanzable",
				fmt.Sprintf("El hipervisor Proxmox no responde desde hace mas de %d minutos. Ultimo error: %s",
					minutes, m.host.LastError()))
		}
		for _, alert := range m.vms.Evaluate(snap) {
			m.dispatcher.Dispatch("pve_vm",
				fmt.Sprintf("VM %s detenida", alert.Name),
				fmt.Sprintf("La VM %d (%s) lleva mas de %d minutos en estado '%s'.",
					alert.VMID, alert.Name, minutes, alert.Status))
		}
	}
}
