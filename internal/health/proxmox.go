package health

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// VMStatus is one QEMU guest as reported by the hypervisor.
type VMStatus struct {
	VMID   int    `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"` // running | stopped | ...
	Uptime int64  `json:"uptime"`
}

// ProxmoxSnapshot is the latest view of the hypervisor. A non-empty Error
// means the hypervisor itself could not be queried; VMs is only meaningful
// when Error is empty.
type ProxmoxSnapshot struct {
	Error     string
	VMs       []VMStatus
	FetchedAt time.Time
}

// ProxmoxClient queries the Proxmox REST API for node guest status.
type ProxmoxClient struct {
	baseURL string
	node    string
	token   string
	http    *http.Client
}

// NewProxmoxClient builds a client. token accepts either the bare
// "user@realm!tokenid=secret" form or the full PVEAPIToken= header value.
// insecure skips TLS verification for lab hosts with self-signed certs.
func NewProxmoxClient(baseURL, node, token string, timeout time.Duration, insecure bool) *ProxmoxClient {
	transport := http.DefaultTransport
	if insecure {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	t := strings.TrimSpace(token)
	if t != "" && !strings.HasPrefix(strings.ToLower(t), "pveapitoken") {
		t = "PVEAPIToken=" + t
	}
	return &ProxmoxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		node:    node,
		token:   t,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// ListVMs fetches the node's QEMU guests.
func (c *ProxmoxClient) ListVMs(ctx context.Context) ([]VMStatus, error) {
	if c.baseURL == "" || c.node == "" {
		return nil, fmt.Errorf("proxmox: incomplete configuration (url or node empty)")
	}
	url := fmt.Sprintf("%s/nodes/%s/qemu", c.baseURL, c.node)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxmox: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxmox: http %d", resp.StatusCode)
	}
	var payload struct {
		Data []VMStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("proxmox: decode: %w", err)
	}
	return payload.Data, nil
}

// ProxmoxMonitor polls the hypervisor on its own interval and caches the
// latest snapshot for the alarm evaluator, which runs on a faster cycle.
type ProxmoxMonitor struct {
	client   *ProxmoxClient
	interval time.Duration
	log      *zap.SugaredLogger

	mu   sync.RWMutex
	snap ProxmoxSnapshot
}

// NewProxmoxMonitor builds the monitor worker.
func NewProxmoxMonitor(client *ProxmoxClient, interval time.Duration, log *zap.SugaredLogger) *ProxmoxMonitor {
	return &ProxmoxMonitor{
		client:   client,
		interval: interval,
		log:      log.Named("OBS/PVE"),
	}
}

// Snapshot returns the latest cached hypervisor view.
func (m *ProxmoxMonitor) Snapshot() ProxmoxSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Run polls until the context is cancelled.
func (m *ProxmoxMonitor) Run(ctx context.Context) {
	m.log.Infof("starting hypervisor monitor (interval %s)", m.interval)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *ProxmoxMonitor) poll(ctx context.Context) {
	vms, err := m.client.ListVMs(ctx)
	snap := ProxmoxSnapshot{FetchedAt: time.Now()}
	if err != nil {
		snap.Error = err.Error()
		m.log.Warnf("hypervisor poll: %v", err)
	} else {
		snap.VMs = vms
	}
	m.mu.Lock()
	m.snap = snap
	m.mu.Unlock()
}
