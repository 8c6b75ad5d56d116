package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertRelay inserts or updates one relay definition keyed by Modbus id.
func (s *Store) UpsertRelay(r *Relay) error {
	return s.orm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id_modbus"}},
		DoUpdates: clause.AssignmentColumns([]string{"descripcion"}),
	}).Create(r).Error
}

// ListRelays returns modbus id -> description for every configured relay.
func (s *Store) ListRelays() (map[int]string, error) {
	var rows []Relay
	if err := s.orm.Order("id_modbus").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		out[r.ModbusID] = r.Description
	}
	return out, nil
}

// InternalRelayID resolves a relay's Modbus unit id to its internal row id.
// Returns nil when the relay is not registered.
func (s *Store) InternalRelayID(modbusID int) (*int64, error) {
	var row Relay
	err := s.orm.Where("id_modbus = ?", modbusID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id := row.ID
	return &id, nil
}
