package alarm

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"grdmonitor/internal/health"
	"grdmonitor/internal/store"
)

// GlobalEngine watches the plant-wide connectivity percentage against the
// red threshold.
type GlobalEngine struct {
	threshold float64
	cond      *SustainedCondition
	log       *zap.SugaredLogger
}

// NewGlobalEngine builds the global connectivity evaluator.
func NewGlobalEngine(threshold float64, minDuration time.Duration, clock Clock, log *zap.SugaredLogger) *GlobalEngine {
	return &GlobalEngine{
		threshold: threshold,
		cond:      NewSustainedCondition(minDuration, clock),
		log:       log.Named("NOTIF/GBL"),
	}
}

// Evaluate returns true when the global alarm should fire.
func (e *GlobalEngine) Evaluate(percentage float64) bool {
	switch e.cond.Observe(percentage < e.threshold) {
	case Pending:
		e.log.Infof("potential alarm: global connectivity %.2f%% below %.0f%%, starting count", percentage, e.threshold)
	case Fired:
		return true
	case Resolved:
		e.log.Infof("global connectivity alarm resolved, now at %.2f%%", percentage)
	}
	return false
}

// NodeAlert identifies a single GRD whose isolated-disconnection alarm fired.
type NodeAlert struct {
	ID          int
	Description string
}

type nodeState struct {
	cond        *SustainedCondition
	description string
}

// NodeEngine raises per-device alarms for GRDs that are disconnected while
// the rest of the plant is healthy. Systemic outages are the global alarm's
// job: when the global percentage is below the red threshold, per-device
// state is purged outright, so a device must re-earn its full sustain period
// once the plant recovers.
type NodeEngine struct {
	threshold   float64
	minDuration time.Duration
	clock       Clock
	excluded    map[int]bool
	states      map[int]*nodeState
	log         *zap.SugaredLogger
}

// NewNodeEngine builds the per-device evaluator. Devices in excluded never
// produce alarms.
func NewNodeEngine(threshold float64, minDuration time.Duration, excluded map[int]bool, clock Clock, log *zap.SugaredLogger) *NodeEngine {
	if excluded == nil {
		excluded = map[int]bool{}
	}
	return &NodeEngine{
		threshold:   threshold,
		minDuration: minDuration,
		clock:       clock,
		excluded:    excluded,
		states:      make(map[int]*nodeState),
		log:         log.Named("NOTIF/NODO"),
	}
}

// Evaluate advances every per-device state machine and returns the devices
// whose alarms fire on this pass.
func (e *NodeEngine) Evaluate(percentage float64, disconnected []store.DisconnectedGRD) []NodeAlert {
	current := make(map[int]bool, len(disconnected))
	for _, d := range disconnected {
		current[d.ID] = true
	}

	for id, st := range e.states {
		if !current[id] || percentage < e.threshold || e.excluded[id] {
			e.log.Infof("individual alarm for GRD %d (%s) resolved", id, st.description)
			delete(e.states, id)
		}
	}

	var alerts []NodeAlert
	if percentage < e.threshold {
		return alerts
	}
	for _, d := range disconnected {
		if e.excluded[d.ID] {
			continue
		}
		st, ok := e.states[d.ID]
		if !ok {
			st = &nodeState{
				cond:        NewSustainedCondition(e.minDuration, e.clock),
				description: d.Description,
			}
			e.states[d.ID] = st
			if st.cond.Observe(true) == Fired {
				alerts = append(alerts, NodeAlert{ID: d.ID, Description: d.Description})
				continue
			}
			e.log.Infof("potential alarm: GRD %d (%s) disconnected, starting count", d.ID, d.Description)
			continue
		}
		if st.cond.Observe(true) == Fired {
			alerts = append(alerts, NodeAlert{ID: d.ID, Description: d.Description})
		}
	}
	return alerts
}

// TrackedNodes returns the device ids with an episode in progress.
func (e *NodeEngine) TrackedNodes() []int {
	out := make([]int, 0, len(e.states))
	for id := range e.states {
		out = append(out, id)
	}
	return out
}

// ModemEngine watches the telephone router's listening port.
type ModemEngine struct {
	cond *SustainedCondition
	log  *zap.SugaredLogger
}

// NewModemEngine builds the modem-link evaluator.
func NewModemEngine(minDuration time.Duration, clock Clock, log *zap.SugaredLogger) *ModemEngine {
	return &ModemEngine{
		cond: NewSustainedCondition(minDuration, clock),
		log:  log.Named("NOTIF/MODEM"),
	}
}

// Evaluate returns true when the modem alarm should fire. Status fetch
// failures are reported by the caller as "cerrado".
func (e *ModemEngine) Evaluate(state string) bool {
	switch e.cond.Observe(state == "cerrado") {
	case Pending:
		e.log.Info("potential alarm: router modem port closed, starting count")
	case Fired:
		return true
	case Resolved:
		e.log.Info("router modem alarm resolved (port open)")
	}
	return false
}

// HostEngine watches hypervisor availability through its status snapshot.
type HostEngine struct {
	cond      *SustainedCondition
	lastError string
	log       *zap.SugaredLogger
}

// NewHostEngine builds the hypervisor-availability evaluator.
func NewHostEngine(minDuration time.Duration, clock Clock, log *zap.SugaredLogger) *HostEngine {
	return &HostEngine{
		cond: NewSustainedCondition(minDuration, clock),
		log:  log.Named("NOTIF/PVE"),
	}
}

// Evaluate returns true when the hypervisor-unreachable alarm should fire.
func (e *HostEngine) Evaluate(snap health.ProxmoxSnapshot) bool {
	offline := snap.Error != ""
	if offline {
		e.lastError = snap.Error
	}
	switch e.cond.Observe(offline) {
	case Pending:
		e.log.Infof("potential alarm: hypervisor unreachable: %s", snap.Error)
	case Fired:
		return true
	case Resolved:
		e.lastError = ""
		e.log.Info("hypervisor alarm resolved")
	}
	return false
}

// LastError returns the most recent hypervisor error text for the alarm body.
func (e *HostEngine) LastError() string { return e.lastError }

// VMAlert identifies a virtual machine whose not-running alarm fired.
type VMAlert struct {
	VMID   int
	Name   string
	Status string
}

type vmState struct {
	cond   *SustainedCondition
	name   string
	status string
}

// VMEngine watches each configured VM independently. When the hypervisor
// itself is down the snapshot is skipped entirely; the host alarm owns that
// failure mode.
type VMEngine struct {
	minDuration time.Duration
	clock       Clock
	vmIDs       []int
	states      map[int]*vmState
	log         *zap.SugaredLogger
}

// NewVMEngine builds the per-VM evaluator for the configured VM ids.
func NewVMEngine(vmIDs []int, minDuration time.Duration, clock Clock, log *zap.SugaredLogger) *VMEngine {
	return &VMEngine{
		minDuration: minDuration,
		clock:       clock,
		vmIDs:       vmIDs,
		states:      make(map[int]*vmState),
		log:         log.Named("NOTIF/PVE_VM"),
	}
}

// Evaluate advances every per-VM state machine and returns the VMs whose
// alarms fire on this pass.
func (e *VMEngine) Evaluate(snap health.ProxmoxSnapshot) []VMAlert {
	if snap.Error != "" {
		return nil
	}

	byID := make(map[int]health.VMStatus, len(snap.VMs))
	for _, vm := range snap.VMs {
		byID[vm.VMID] = vm
	}

	configured := make(map[int]bool, len(e.vmIDs))
	var alerts []VMAlert
	for _, id := range e.vmIDs {
		configured[id] = true

		name := "VM " + strconv.Itoa(id)
		status := "sin datos"
		if vm, ok := byID[id]; ok {
			if vm.Name != "" {
				name = vm.Name
			}
			status = vm.Status
		}

		st, ok := e.states[id]
		if !ok {
			st = &vmState{cond: NewSustainedCondition(e.minDuration, e.clock)}
			e.states[id] = st
		}
		st.name = name
		st.status = status

		switch st.cond.Observe(status != "running") {
		case Pending:
			e.log.Infof("potential alarm: VM %d (%s) in state %q, starting count", id, name, status)
		case Fired:
			alerts = append(alerts, VMAlert{VMID: id, Name: name, Status: status})
		case Resolved:
			e.log.Infof("VM %d (%s) back to running", id, name)
		}
	}

	for id := range e.states {
		if !configured[id] {
			delete(e.states, id)
		}
	}
	return alerts
}
