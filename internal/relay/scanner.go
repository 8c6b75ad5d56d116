package relay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"grdmonitor/internal/metrics"
	"grdmonitor/internal/store"
)

// Fault blocks live in a fixed window of the relay register map; each of the
// 25 slots holds one 15-word block.
const (
	scanStart uint16 = 0x3700
	scanEnd   uint16 = 0x3718
)

// RegisterSource is the Modbus transport the scanner reads through.
type RegisterSource interface {
	ReadHoldingRegisters(address, count uint16, unitID uint8) []uint16
	IsConnected() bool
	Connect() bool
}

// FlagSource reports whether relay observation is currently enabled. It is
// polled before every register read so an operator toggle takes effect
// within one read's latency.
type FlagSource interface {
	ObservingEnabled() bool
}

// FaultStore is the persistence surface the scanner needs.
type FaultStore interface {
	ListRelays() (map[int]string, error)
	InternalRelayID(modbusID int) (*int64, error)
	FaultExists(relayID int64, faultNumber int, timestamp *string) (bool, error)
	InsertFault(f *store.RelayFault) error
}

// Scanner walks the fault window of every configured protection relay,
// decodes candidate blocks and persists the most recent genuinely new fault.
type Scanner struct {
	driver   RegisterSource
	flags    FlagSource
	store    FaultStore
	interval time.Duration
	log      *zap.SugaredLogger

	unitIDs       []int
	lastObserving *bool
}

// NewScanner builds a scanner over the relays registered in the store.
func NewScanner(driver RegisterSource, flags FlagSource, st FaultStore, interval time.Duration, log *zap.SugaredLogger) *Scanner {
	s := &Scanner{
		driver:   driver,
		flags:    flags,
		store:    st,
		interval: interval,
		log:      log.Named("OBS/RELE"),
	}
	relays, err := st.ListRelays()
	if err != nil {
		s.log.Errorf("list relays: %v", err)
	}
	for id := range relays {
		s.unitIDs = append(s.unitIDs, id)
	}
	if len(s.unitIDs) == 0 {
		s.log.Warn("no active relay unit ids registered; relay scanner will be idle")
	} else {
		s.log.Infof("monitoring relays with unit ids %v", s.unitIDs)
	}
	return s
}

// ScanRelay reads every slot of the fault window for one relay, decodes what
// it can, and returns the record with the highest fault number, persisting it
// when it is new. Returns nil when nothing decoded or the scan was aborted by
// the observation flag.
func (s *Scanner) ScanRelay(unitID int) *FaultRecord {
	var records []*FaultRecord

	for addr := scanStart; addr <= scanEnd; addr++ {
		if !s.flags.ObservingEnabled() {
			s.log.Infof("observation disabled mid-scan of relay %d; stopping at addr %#x", unitID, addr)
			return nil
		}
		regs := s.driver.ReadHoldingRegisters(addr, FaultWordCount, uint8(unitID))
		if regs == nil {
			s.log.Warnf("relay %d: failed to read %d registers at addr %#x", unitID, FaultWordCount, addr)
			continue
		}
		rec, err := Decode(regs, s.log)
		if err != nil {
			s.log.Errorf("relay %d: decode block at addr %#x: %v (raw %v)", unitID, addr, err, regs)
			metrics.RelayDecodeFailures.Inc()
			continue
		}
		records = append(records, rec)
	}

	// Highest fault number wins; ties keep the first slot encountered.
	var latest *FaultRecord
	max := -1
	for _, rec := range records {
		if rec.FaultNumber > max {
			max = rec.FaultNumber
			latest = rec
		}
	}
	if latest == nil {
		s.log.Infof("relay %d: no decodable fault blocks in %#x-%#x", unitID, scanStart, scanEnd)
		return nil
	}
	s.log.Infof("relay %d: most recent fault number %d", unitID, latest.FaultNumber)

	s.persist(unitID, latest)
	return latest
}

func (s *Scanner) persist(unitID int, rec *FaultRecord) {
	internalID, err := s.store.InternalRelayID(unitID)
	if err != nil {
		s.log.Errorf("relay %d: resolve internal id: %v", unitID, err)
		return
	}
	if internalID == nil {
		s.log.Warnf("relay %d has no internal id registered; fault %d not persisted", unitID, rec.FaultNumber)
		return
	}

	ts := rec.ISOTimestamp()
	exists, err := s.store.FaultExists(*internalID, rec.FaultNumber, ts)
	if err != nil {
		s.log.Errorf("relay %d: fault dedup lookup: %v", unitID, err)
		return
	}
	if exists {
		s.log.Infof("relay %d: fault %d already stored, skipping insert", unitID, rec.FaultNumber)
		return
	}
	err = s.store.InsertFault(&store.RelayFault{
		RelayID:       *internalID,
		FaultNumber:   rec.FaultNumber,
		Timestamp:     ts,
		PhaseACurrent: rec.CurrentPhaseA,
		PhaseBCurrent: rec.CurrentPhaseB,
		PhaseCCurrent: rec.CurrentPhaseC,
		EarthCurrent:  rec.EarthCurrent,
	})
	if err != nil {
		s.log.Errorf("relay %d: insert fault %d: %v", unitID, rec.FaultNumber, err)
		return
	}
	metrics.RelayFaultsStored.Inc()
	s.log.Infof("relay %d: fault %d inserted", unitID, rec.FaultNumber)
}

// Run drives the scan loop until the context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	s.log.Infof("starting relay fault scanner (interval %s)", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.iterate()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scanner) iterate() {
	observing := s.flags.ObservingEnabled()
	if s.lastObserving == nil || *s.lastObserving != observing {
		if observing {
			s.log.Info("relay observation RESUMED")
		} else {
			s.log.Info("relay observation PAUSED")
		}
		s.lastObserving = &observing
	}
	if !observing {
		return
	}
	if !s.driver.IsConnected() && !s.driver.Connect() {
		s.log.Warn("cannot reach Modbus endpoint; retrying next cycle")
		return
	}
	if len(s.unitIDs) == 0 {
		return
	}
	for _, id := range s.unitIDs {
		metrics.RelayScans.Inc()
		s.ScanRelay(id)
	}
}
