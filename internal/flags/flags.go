package flags

import (
	"bufio"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ObservarStore reads operator toggles from the shared observar.json file.
// The file is re-read on every query; it doubles as the IPC channel with the
// dashboard, which flips the keys at runtime.
type ObservarStore struct {
	path string
	log  *zap.SugaredLogger
}

// NewObservarStore builds a store over the given JSON file.
func NewObservarStore(path string, log *zap.SugaredLogger) *ObservarStore {
	return &ObservarStore{path: path, log: log.Named("FLAGS")}
}

// Bool returns the boolean value of a key, or def when the file or key is
// missing or unreadable.
func (s *ObservarStore) Bool(key string, def bool) bool {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warnf("read %s: %v", s.path, err)
		}
		return def
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		s.log.Warnf("parse %s: %v", s.path, err)
		return def
	}
	v, ok := m[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return def
	}
}

// ObservingEnabled reports the relay-observation toggle. Read failures fail
// safe: no toggle means no Modbus traffic.
func (s *ObservarStore) ObservingEnabled() bool {
	return s.Bool("reles_consultar", false)
}

// LoadExclusions reads the one-id-per-line exclusion list. Devices in the
// returned set never produce per-device alarms. A missing file means no
// exclusions; invalid lines are logged and skipped.
func LoadExclusions(path string, log *zap.SugaredLogger) map[int]bool {
	excluded := make(map[int]bool)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no exclusion list found; no devices excluded")
		} else {
			log.Warnf("read exclusion list %s: %v", path, err)
		}
		return excluded
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			log.Warnf("invalid entry in exclusion list: %q", line)
			continue
		}
		excluded[id] = true
	}
	if err := sc.Err(); err != nil {
		log.Warnf("scan exclusion list %s: %v", path, err)
	}
	if len(excluded) > 0 {
		log.Infof("GRDs excluded from individual alarms: %v", keys(excluded))
	}
	return excluded
}

func keys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
