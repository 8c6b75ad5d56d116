package alarm

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"grdmonitor/internal/config"
	"grdmonitor/internal/health"
	"grdmonitor/internal/store"
)

type fakeHistory struct {
	states       map[int]int
	disconnected []store.DisconnectedGRD
}

func (f *fakeHistory) LatestStates() (map[int]int, error) { return f.states, nil }
func (f *fakeHistory) Disconnected() ([]store.DisconnectedGRD, error) {
	return f.disconnected, nil
}

type fakeModem struct{ state string }

func (f *fakeModem) ModemState() string { return f.state }

type fakePVE struct{ snap health.ProxmoxSnapshot }

func (f *fakePVE) Snapshot() health.ProxmoxSnapshot { return f.snap }

type dispatched struct {
	category string
	subject  string
	body     string
}

type fakeDispatcher struct {
	calls []dispatched
}

func (f *fakeDispatcher) Dispatch(category, subject, body string) {
	f.calls = append(f.calls, dispatched{category: category, subject: subject, body: body})
}

func (f *fakeDispatcher) categories() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.category)
	}
	return out
}

func testAlarmConfig() config.AlarmConfig {
	return config.AlarmConfig{
		CheckInterval:        20 * time.Second,
		MinSustainedDuration: 30 * time.Minute,
		GlobalRedThreshold:   40,
	}
}

func TestManagerGlobalAlarmFlow(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{states: map[int]int{1: 0, 2: 0, 3: 1}} // 33%
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), nil, nil, hist, nil, nil, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	if len(disp.calls) != 0 {
		t.Fatalf("dispatched %v on first pass, want none", disp.categories())
	}
	clk.advance(30 * time.Minute)
	m.RunOnce()
	if len(disp.calls) != 1 || disp.calls[0].category != "global" {
		t.Fatalf("dispatched %v, want one global alarm", disp.categories())
	}
	if disp.calls[0].subject != "Middleware sin conexion" {
		t.Errorf("subject = %q", disp.calls[0].subject)
	}
	// Same episode: no second dispatch.
	m.RunOnce()
	if len(disp.calls) != 1 {
		t.Fatalf("dispatched %v, want still one", disp.categories())
	}
}

func TestManagerNodeAlarmSuppressedDuringSystemicOutage(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{
		states:       map[int]int{1: 0, 2: 0, 3: 0}, // 0% global
		disconnected: []store.DisconnectedGRD{{ID: 1, Description: "planta"}},
	}
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), nil, nil, hist, nil, nil, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	clk.advance(time.Hour)
	m.RunOnce()
	for _, c := range disp.calls {
		if c.category == "nodo" {
			t.Fatalf("per-device alarm %q fired during a systemic outage", c.subject)
		}
	}
}

func TestManagerNodeAlarm(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{
		states:       map[int]int{1: 0, 2: 1, 3: 1, 4: 1}, // 75%
		disconnected: []store.DisconnectedGRD{{ID: 1, Description: "planta norte"}},
	}
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), nil, nil, hist, nil, nil, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	clk.advance(30 * time.Minute)
	m.RunOnce()
	if len(disp.calls) != 1 || disp.calls[0].category != "nodo" {
		t.Fatalf("dispatched %v, want one nodo alarm", disp.categories())
	}
	if disp.calls[0].subject != "planta norte sin conexion" {
		t.Errorf("subject = %q", disp.calls[0].subject)
	}
	if !strings.Contains(disp.calls[0].body, "30 minutos") {
		t.Errorf("body = %q, want the sustain duration mentioned", disp.calls[0].body)
	}
}

func TestManagerExcludedDeviceNeverAlarms(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{
		states:       map[int]int{1: 0, 2: 1},
		disconnected: []store.DisconnectedGRD{{ID: 1, Description: "obra"}},
	}
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), nil, map[int]bool{1: true}, hist, nil, nil, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	clk.advance(time.Hour)
	m.RunOnce()
	if len(disp.calls) != 0 {
		t.Fatalf("dispatched %v for an excluded device", disp.categories())
	}
}

func TestManagerModemAlarm(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{states: map[int]int{1: 1}}
	modem := &fakeModem{state: "cerrado"}
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), nil, nil, hist, modem, nil, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	clk.advance(30 * time.Minute)
	m.RunOnce()
	if len(disp.calls) != 1 || disp.calls[0].category != "modem" {
		t.Fatalf("dispatched %v, want one modem alarm", disp.categories())
	}

	// Port reopens, then closes again: the count restarts.
	modem.state = "abierto"
	m.RunOnce()
	modem.state = "cerrado"
	m.RunOnce()
	clk.advance(29 * time.Minute)
	m.RunOnce()
	if len(disp.calls) != 1 {
		t.Fatalf("dispatched %v before the new episode sustained", disp.categories())
	}
}

func TestManagerHypervisorAlarms(t *testing.T) {
	clk := newFakeClock()
	hist := &fakeHistory{states: map[int]int{1: 1}}
	pve := &fakePVE{snap: health.ProxmoxSnapshot{Error: "connection refused"}}
	disp := &fakeDispatcher{}
	m := NewManager(testAlarmConfig(), []int{100}, nil, hist, nil, pve, disp, nil, clk, zap.NewNop().Sugar())

	m.RunOnce()
	clk.advance(30 * time.Minute)
	m.RunOnce()
	if len(disp.calls) != 1 || disp.calls[0].category != "pve_host" {
		t.Fatalf("dispatched %v, want one pve_host alarm", disp.categories())
	}
	if !strings.Contains(disp.calls[0].body, "connection refused") {
		t.Errorf("body = %q, want last error included", disp.calls[0].body)
	}

	// Host recovers but the VM is stopped: only the VM alarm remains.
	pve.snap = health.ProxmoxSnapshot{VMs: []health.VMStatus{{VMID: 100, Name: "scada", Status: "stopped"}}}
	m.RunOnce()
	clk.advance(30 * time.Minute)
	m.RunOnce()
	last := disp.calls[len(disp.calls)-1]
	if last.category != "pve_vm" || last.subject != "VM scada detenida" {
		t.Fatalf("last dispatch = %+v, want the stopped VM alarm", last)
	}
}
