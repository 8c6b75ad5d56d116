package main

import (
	"flag"
	"log"
	"sort"

	"grdmonitor/internal/config"
	"grdmonitor/internal/output"
	"grdmonitor/internal/store"
)

func main() {
	var cfgPath string
	var outJSON string
	var outCSV string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to YAML config")
	flag.StringVar(&outJSON, "json", "", "path to write JSON fault export (optional)")
	flag.StringVar(&outCSV, "csv", "", "path to write CSV fault export (optional)")
	flag.Parse()

	if outJSON == "" && outCSV == "" {
		log.Fatalf("no output specified: set --json and/or --csv")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load yaml config: %v", err)
	}

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer st.Close()

	relays, err := st.ListRelays()
	if err != nil {
		log.Fatalf("list relays: %v", err)
	}

	ids := make([]int, 0, len(relays))
	for id := range relays {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var exports []output.FaultExport
	for _, modbusID := range ids {
		desc := relays[modbusID]
		internalID, err := st.InternalRelayID(modbusID)
		if err != nil {
			log.Fatalf("resolve relay %d: %v", modbusID, err)
		}
		if internalID == nil {
			continue
		}
		faults, err := st.FaultsForRelay(*internalID)
		if err != nil {
			log.Fatalf("load faults for relay %d: %v", modbusID, err)
		}
		exports = append(exports, output.FaultExport{
			ModbusID:    modbusID,
			Description: desc,
			Faults:      faults,
		})
	}

	if outJSON != "" {
		if err := output.WriteJSON(outJSON, exports); err != nil {
			log.Printf("write json error: %v", err)
		}
	}
	if outCSV != "" {
		if err := output.WriteCSV(outCSV, exports); err != nil {
			log.Printf("write csv error: %v", err)
		}
	}
}
