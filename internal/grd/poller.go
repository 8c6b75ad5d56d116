// Package grd polls the Exemys middleware for the binary connected state of
// every configured GRD and historizes transitions.
package grd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"grdmonitor/internal/bus"
	"grdmonitor/internal/config"
	"grdmonitor/internal/metrics"
	"grdmonitor/internal/utils"
)

// The middleware exposes one block of input registers per GRD; the connected
// bit is bit 0 of the 16th register in the block.
const connectedRegisterIndex = 15

const deviceListRefresh = 30 * time.Minute

// InputSource is the Modbus transport the poller reads through.
type InputSource interface {
	ReadInputRegisters(address, count uint16, unitID uint8) []uint16
	IsConnected() bool
	Connect() bool
}

// HistoryStore is the persistence surface the poller needs.
type HistoryStore interface {
	ListGRDs() (map[int]string, error)
	LatestState(grdID int) (*int, error)
	InsertHistory(grdID int, timestamp string, connected int) error
}

// Poller reads every GRD's connected bit on a fixed interval and writes a
// history row only when the state changed since the last stored observation.
type Poller struct {
	driver InputSource
	store  HistoryStore
	bus    *bus.Bus
	cfg    config.GRDConfig
	log    *zap.SugaredLogger

	cache       *utils.StateCache
	skip        map[int]bool
	devices     map[int]string
	lastRefresh time.Time
}

// NewPoller builds the middleware poller.
func NewPoller(driver InputSource, st HistoryStore, b *bus.Bus, cfg config.GRDConfig, log *zap.SugaredLogger) *Poller {
	skip := make(map[int]bool, len(cfg.SkipIDs))
	for _, id := range cfg.SkipIDs {
		skip[id] = true
	}
	return &Poller{
		driver: driver,
		store:  st,
		bus:    b,
		cfg:    cfg,
		log:    log.Named("OBS/MW"),
		cache:  utils.NewStateCache(deviceListRefresh),
		skip:   skip,
	}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.log.Infof("starting GRD middleware poller (unit %d, interval %s)", p.cfg.UnitID, p.cfg.PollInterval)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		p.iterate()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) refreshDevices() {
	if p.devices != nil && time.Since(p.lastRefresh) < deviceListRefresh {
		return
	}
	devices, err := p.store.ListGRDs()
	if err != nil {
		p.log.Errorf("refresh GRD list: %v", err)
		return
	}
	p.devices = devices
	p.lastRefresh = time.Now()
	if len(devices) == 0 {
		p.log.Warn("no GRDs registered to monitor")
	}
}

func (p *Poller) iterate() {
	p.refreshDevices()
	if len(p.devices) == 0 {
		return
	}
	if !p.driver.IsConnected() && !p.driver.Connect() {
		p.log.Warn("cannot reach Modbus endpoint; retrying next cycle")
		return
	}
	metrics.GRDPolls.Inc()
	now := time.Now().Format("2006-01-02 15:04:05")

	for id, description := range p.devices {
		if p.skip[id] {
			continue
		}
		connected := p.readConnected(id, description)
		p.recordChange(id, description, connected, now)
	}
}

// readConnected reads one GRD's register block; any read failure counts as
// disconnected, since an unreachable middleware slot and a down link are
// indistinguishable to the dashboard.
func (p *Poller) readConnected(id int, description string) int {
	offset := uint16((id - 1) * p.cfg.RegisterCount)
	regs := p.driver.ReadInputRegisters(offset, uint16(p.cfg.RegisterCount), p.cfg.UnitID)
	if len(regs) <= connectedRegisterIndex {
		p.log.Warnf("failed to read registers for GRD %d (%s); assuming disconnected", id, description)
		return 0
	}
	return int(regs[connectedRegisterIndex] & 0x1)
}

func (p *Poller) recordChange(id int, description string, connected int, timestamp string) {
	prev, ok := p.cache.Get(id)
	if !ok {
		if state, err := p.store.LatestState(id); err != nil {
			p.log.Errorf("latest state for GRD %d: %v", id, err)
			prev, ok = -1, false
		} else if state != nil {
			prev, ok = *state, true
		}
	}
	if ok && prev == connected {
		return
	}

	p.log.Infof("state change on GRD %d (%s): observed %d, previous %v", id, description, connected, prevDisplay(ok, prev))
	if err := p.store.InsertHistory(id, timestamp, connected); err != nil {
		p.log.Errorf("insert history for GRD %d: %v", id, err)
		return
	}
	p.cache.Set(id, connected)
	metrics.GRDStateChanges.Inc()
	p.bus.PublishGRDChange(id, connected, timestamp)
}

func prevDisplay(known bool, v int) any {
	if !known {
		return "none"
	}
	return v
}
