package store

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DisconnectedGRD describes a GRD whose latest stored state is disconnected.
type DisconnectedGRD struct {
	ID          int
	Description string
	Timestamp   string
}

// InsertHistory records one state observation for a GRD. The GRD must be
// known; duplicate (timestamp, id_grd) pairs are ignored, matching the
// historical INSERT OR IGNORE.
func (s *Store) InsertHistory(grdID int, timestamp string, connected int) error {
	known, err := s.GRDExists(grdID)
	if err != nil {
		return err
	}
	if !known {
		return errors.New("unknown GRD id")
	}
	return s.orm.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&HistoryEntry{Timestamp: timestamp, GRDID: grdID, Connected: connected}).Error
}

// LatestState returns the most recent connected value for one GRD, or nil
// when it has no history yet.
func (s *Store) LatestState(grdID int) (*int, error) {
	var row HistoryEntry
	err := s.orm.Where("id_grd = ?", grdID).Order("timestamp DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v := row.Connected
	return &v, nil
}

// LatestStates returns the latest connected value per GRD, excluding
// placeholder ("reserva") devices. GRDs with no history are absent.
func (s *Store) LatestStates() (map[int]int, error) {
	type pair struct {
		IDGrd     int `gorm:"column:id_grd"`
		Conectado int `gorm:"column:conectado"`
	}
	var rows []pair
	err := s.orm.Raw(`
		SELECT h.id_grd, h.conectado
		FROM historicos h
		INNER JOIN (
			SELECT id_grd, MAX(timestamp) AS max_timestamp
			FROM historicos
			GROUP BY id_grd
		) latest ON h.id_grd = latest.id_grd AND h.timestamp = latest.max_timestamp
		INNER JOIN grd g ON h.id_grd = g.id
		WHERE g.descripcion <> 'reserva'
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]int, len(rows))
	for _, r := range rows {
		out[r.IDGrd] = r.Conectado
	}
	return out, nil
}

// Disconnected returns the GRDs whose latest state is disconnected,
// excluding placeholder devices, ordered by id.
func (s *Store) Disconnected() ([]DisconnectedGRD, error) {
	type row struct {
		IDGrd       int    `gorm:"column:id_grd"`
		Descripcion string `gorm:"column:descripcion"`
		Timestamp   string `gorm:"column:timestamp"`
	}
	var rows []row
	err := s.orm.Raw(`
		SELECT h.id_grd, g.descripcion, h.timestamp
		FROM historicos h
		INNER JOIN (
			SELECT id_grd, MAX(timestamp) AS max_timestamp
			FROM historicos
			GROUP BY id_grd
		) latest ON h.id_grd = latest.id_grd AND h.timestamp = latest.max_timestamp
		INNER JOIN grd g ON h.id_grd = g.id
		WHERE h.conectado = 0 AND g.descripcion <> 'reserva'
		ORDER BY h.id_grd
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]DisconnectedGRD, 0, len(rows))
	for _, r := range rows {
		out = append(out, DisconnectedGRD{ID: r.IDGrd, Description: r.Descripcion, Timestamp: r.Timestamp})
	}
	return out, nil
}
