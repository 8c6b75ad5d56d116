// Command seed initializes the SQLite schema and loads the GRD and relay
// inventory from the YAML config into the device tables.
package main

import (
	"flag"
	"log"

	"grdmonitor/internal/config"
	"grdmonitor/internal/store"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	for _, g := range cfg.Inventory.GRDs {
		if err := st.UpsertGRD(&store.GRD{ID: g.ID, Description: g.Description}); err != nil {
			log.Fatalf("upsert GRD %d: %v", g.ID, err)
		}
	}
	for _, r := range cfg.Inventory.Relays {
		if err := st.UpsertRelay(&store.Relay{ModbusID: r.ModbusID, Description: r.Description}); err != nil {
			log.Fatalf("upsert relay %d: %v", r.ModbusID, err)
		}
	}
	log.Printf("seeded %d GRDs and %d relays into %s",
		len(cfg.Inventory.GRDs), len(cfg.Inventory.Relays), cfg.Storage.DBPath)
}
