package store

import (
	"gorm.io/gorm/clause"
)

// UpsertGRD inserts or updates one GRD definition.
func (s *Store) UpsertGRD(g *GRD) error {
	return s.orm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"descripcion"}),
	}).Create(g).Error
}

// GRDExists reports whether the GRD id is known.
func (s *Store) GRDExists(id int) (bool, error) {
	var n int64
	if err := s.orm.Model(&GRD{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListGRDs returns id -> description for every configured GRD.
func (s *Store) ListGRDs() (map[int]string, error) {
	var rows []GRD
	if err := s.orm.Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int]string, len(rows))
	for _, r := range rows {
		out[r.ID] = r.Description
	}
	return out, nil
}
