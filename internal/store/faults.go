package store

// FaultExists reports whether a fault with the same identity
// (relay, fault number, timestamp-or-null) is already stored. The check is
// what keeps re-reads of an unacknowledged fault from inserting duplicates
// across poll cycles.
func (s *Store) FaultExists(relayID int64, faultNumber int, timestamp *string) (bool, error) {
	q := s.orm.Model(&RelayFault{}).Where("id_rele = ? AND numero_falla = ?", relayID, faultNumber)
	if timestamp == nil {
		q = q.Where("timestamp IS NULL")
	} else {
		q = q.Where("timestamp = ?", *timestamp)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertFault stores one relay fault record.
func (s *Store) InsertFault(f *RelayFault) error {
	return s.orm.Create(f).Error
}

// FaultsForRelay returns the stored fault history for one relay, newest
// first.
func (s *Store) FaultsForRelay(relayID int64) ([]RelayFault, error) {
	var rows []RelayFault
	err := s.orm.Where("id_rele = ?", relayID).
		Order("numero_falla DESC").
		Find(&rows).Error
	return rows, err
}
