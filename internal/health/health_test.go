package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func nopLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestRouterStatusOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %q, want /status", r.URL.Path)
		}
		w.Write([]byte(`{"ip":"10.0.0.2","port":5000,"state":"abierto"}`))
	}))
	defer srv.Close()

	c := NewRouterClient(srv.URL, time.Second)
	st, err := c.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != "abierto" || st.IP != "10.0.0.2" {
		t.Errorf("Status = %+v", st)
	}
	if got := c.ModemState(); got != "abierto" {
		t.Errorf("ModemState = %q, want abierto", got)
	}
}

func TestRouterStatusRejectsIncomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"port":5000}`))
	}))
	defer srv.Close()

	if _, err := NewRouterClient(srv.URL, time.Second).Status(); err == nil {
		t.Fatal("Status accepted a response without ip/state")
	}
}

func TestModemStateClosedOnFailure(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"broken json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			if got := NewRouterClient(srv.URL, time.Second).ModemState(); got != "cerrado" {
				t.Errorf("ModemState = %q, want cerrado", got)
			}
		})
	}

	t.Run("unreachable service", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()
		if got := NewRouterClient(srv.URL, time.Second).ModemState(); got != "cerrado" {
			t.Errorf("ModemState = %q, want cerrado", got)
		}
	})
}

func TestProxmoxListVMs(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api2/json/nodes/pve1/qemu" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"vmid":100,"name":"scada","status":"running","uptime":12}]}`))
	}))
	defer srv.Close()

	c := NewProxmoxClient(srv.URL+"/api2/json", "pve1", "monitor@pam!ro=abc", time.Second, false)
	vms, err := c.ListVMs(context.Background())
	if err != nil {
		t.Fatalf("ListVMs: %v", err)
	}
	if len(vms) != 1 || vms[0].VMID != 100 || vms[0].Status != "running" {
		t.Errorf("ListVMs = %+v", vms)
	}
	if gotAuth != "PVEAPIToken=monitor@pam!ro=abc" {
		t.Errorf("Authorization = %q, want normalized PVEAPIToken header", gotAuth)
	}
}

func TestProxmoxListVMsIncompleteConfig(t *testing.T) {
	c := NewProxmoxClient("", "", "", time.Second, false)
	if _, err := c.ListVMs(context.Background()); err == nil {
		t.Fatal("ListVMs accepted an empty configuration")
	}
}

func TestProxmoxMonitorSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"vmid":100,"name":"scada","status":"stopped"}]}`))
	}))
	defer srv.Close()

	c := NewProxmoxClient(srv.URL, "pve1", "", time.Second, false)
	m := NewProxmoxMonitor(c, time.Hour, nopLogger())
	m.poll(context.Background())

	snap := m.Snapshot()
	if snap.Error != "" {
		t.Fatalf("snapshot error = %q, want empty", snap.Error)
	}
	if len(snap.VMs) != 1 || snap.VMs[0].Status != "stopped" {
		t.Errorf("snapshot VMs = %+v", snap.VMs)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestProxmoxMonitorSnapshotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewProxmoxClient(srv.URL, "pve1", "", time.Second, false)
	m := NewProxmoxMonitor(c, time.Hour, nopLogger())
	m.poll(context.Background())

	if snap := m.Snapshot(); snap.Error == "" {
		t.Fatal("snapshot error empty after an http 500")
	}
}
