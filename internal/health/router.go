package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RouterStatus is the telephone router service's /status payload.
type RouterStatus struct {
	IP    string `json:"ip"`
	Port  int    `json:"port"`
	State string `json:"state"` // abierto | cerrado
}

// RouterClient queries the router-telef satellite service.
type RouterClient struct {
	baseURL string
	http    *http.Client
}

// NewRouterClient builds a client with a short request timeout.
func NewRouterClient(baseURL string, timeout time.Duration) *RouterClient {
	return &RouterClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Status fetches and validates the router state.
func (c *RouterClient) Status() (RouterStatus, error) {
	resp, err := c.http.Get(c.baseURL + "/status")
	if err != nil {
		return RouterStatus{}, fmt.Errorf("router status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return RouterStatus{}, fmt.Errorf("router status: http %d", resp.StatusCode)
	}
	var st RouterStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return RouterStatus{}, fmt.Errorf("router status: decode: %w", err)
	}
	if st.IP == "" || st.State == "" {
		return RouterStatus{}, fmt.Errorf("router status: incomplete response")
	}
	return st, nil
}

// ModemState returns the router link state, reporting "cerrado" when the
// service is unreachable or its answer is invalid; the modem alarm treats an
// unknown link as a closed one.
func (c *RouterClient) ModemState() string {
	st, err := c.Status()
	if err != nil {
		return "cerrado"
	}
	return st.State
}
