package modbus

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	mb "github.com/goburrow/modbus"
	"go.uber.org/zap"
)

// Driver is the Modbus TCP connection shared by the GRD poller and the relay
// scanner. goburrow handlers are not safe for concurrent use and carry the
// slave id as handler state, so every read locks, retargets the unit id and
// then issues the request.
//
// Read failures are logged and returned as nil registers; callers treat nil
// as "assume disconnected" or "skip this address". Connection management is
// the caller's responsibility via Connect/IsConnected.
type Driver struct {
	Host string
	Port int

	mu        sync.Mutex
	handler   *mb.TCPClientHandler
	client    mb.Client
	connected bool
	log       *zap.SugaredLogger
}

// NewDriver builds a driver for one Modbus TCP endpoint.
func NewDriver(host string, port int, connectTimeout time.Duration, log *zap.SugaredLogger) *Driver {
	h := mb.NewTCPClientHandler(fmt.Sprintf("%s:%d", host, port))
	if connectTimeout > 0 {
		h.Timeout = connectTimeout
	}
	return &Driver{
		Host:    host,
		Port:    port,
		handler: h,
		client:  mb.NewClient(h),
		log:     log.Named("MB/DRV"),
	}
}

// Connect establishes the TCP connection. Already-connected drivers return
// true without touching the socket.
func (d *Driver) Connect() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return true
	}
	if err := d.handler.Connect(); err != nil {
		d.log.Warnf("connect %s:%d: %v", d.Host, d.Port, err)
		return false
	}
	d.connected = true
	return true
}

// IsConnected reports the driver's view of the connection. A read failure
// clears it so the owning loop reconnects on its next cycle.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Disconnect closes the connection.
func (d *Driver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		_ = d.handler.Close()
		d.connected = false
	}
}

// ReadHoldingRegisters reads count holding registers from the given unit.
// Returns nil on any failure.
func (d *Driver) ReadHoldingRegisters(address, count uint16, unitID uint8) []uint16 {
	return d.read(address, count, unitID, func(addr, qty uint16) ([]byte, error) {
		return d.client.ReadHoldingRegisters(addr, qty)
	}, "holding")
}

// ReadInputRegisters reads count input registers from the given unit.
// Returns nil on any failure.
func (d *Driver) ReadInputRegisters(address, count uint16, unitID uint8) []uint16 {
	return d.read(address, count, unitID, func(addr, qty uint16) ([]byte, error) {
		return d.client.ReadInputRegisters(addr, qty)
	}, "input")
}

func (d *Driver) read(address, count uint16, unitID uint8, fn func(uint16, uint16) ([]byte, error), kind string) []uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		d.log.Debugf("read %s addr=%#x unit=%d: not connected", kind, address, unitID)
		return nil
	}
	d.handler.SlaveId = unitID

	data, err := fn(address, count)
	if err != nil {
		d.log.Warnf("read %s addr=%#x count=%d unit=%d: %v", kind, address, count, unitID, err)
		// The connection may be gone; force a reconnect next cycle.
		_ = d.handler.Close()
		d.connected = false
		return nil
	}
	if len(data) < int(count)*2 {
		d.log.Warnf("read %s addr=%#x unit=%d: short response (%d bytes)", kind, address, unitID, len(data))
		return nil
	}
	regs := make([]uint16, count)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(data[i*2 : i*2+2])
	}
	return regs
}
