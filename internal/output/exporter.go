package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"grdmonitor/internal/store"
)

// FaultExport is one relay's stored fault history, flattened for export.
type FaultExport struct {
	ModbusID    int                `json:"modbus_id"`
	Description string             `json:"description"`
	Faults      []store.RelayFault `json:"faults"`
}

// WriteJSON writes the fault export to a JSON file with pretty formatting.
func WriteJSON(path string, exports []FaultExport) error {
	b, err := json.MarshalIndent(exports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteCSV flattens the fault export into one row per fault.
// Columns: modbus_id,description,fault_number,timestamp,phase_a,phase_b,phase_c,earth
func WriteCSV(path string, exports []FaultExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	headers := []string{"modbus_id", "description", "fault_number", "timestamp", "phase_a", "phase_b", "phase_c", "earth"}
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, e := range exports {
		for _, flt := range e.Faults {
			ts := ""
			if flt.Timestamp != nil {
				ts = *flt.Timestamp
			}
			rec := []string{
				strconv.Itoa(e.ModbusID),
				e.Description,
				strconv.Itoa(flt.FaultNumber),
				ts,
				strconv.Itoa(flt.PhaseACurrent),
				strconv.Itoa(flt.PhaseBCurrent),
				strconv.Itoa(flt.PhaseCCurrent),
				strconv.Itoa(flt.EarthCurrent),
			}
			if err := w.Write(rec); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}
