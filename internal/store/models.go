package store

// Column and table names match the historical SQLite schema so existing
// databases and the dashboard keep working unchanged.

// GRD is one monitored grid-disconnect device. Devices described as
// "reserva" are placeholders and are excluded from connectivity statistics.
type GRD struct {
	ID          int    `gorm:"column:id;primaryKey"`
	Description string `gorm:"column:descripcion"`
}

func (GRD) TableName() string { return "grd" }

// HistoryEntry is one connected/disconnected observation for a GRD.
// Rows are written only on state change.
type HistoryEntry struct {
	Timestamp string `gorm:"column:timestamp;primaryKey"`
	GRDID     int    `gorm:"column:id_grd;primaryKey"`
	Connected int    `gorm:"column:conectado"`
}

func (HistoryEntry) TableName() string { return "historicos" }

// Relay maps a protection relay's Modbus unit id to its internal id.
type Relay struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	ModbusID    int    `gorm:"column:id_modbus;uniqueIndex"`
	Description string `gorm:"column:descripcion"`
}

func (Relay) TableName() string { return "reles" }

// RelayFault is one persisted relay fault record. Timestamp is the
// ISO-8601 fault datetime, or nil when the relay reported an undecodable
// date.
type RelayFault struct {
	ID            int64   `gorm:"column:id;primaryKey;autoIncrement"`
	RelayID       int64   `gorm:"column:id_rele;not null"`
	FaultNumber   int     `gorm:"column:numero_falla;not null"`
	Timestamp     *string `gorm:"column:timestamp"`
	PhaseACurrent int     `gorm:"column:fasea_corr"`
	PhaseBCurrent int     `gorm:"column:faseb_corr"`
	PhaseCCurrent int     `gorm:"column:fasec_corr"`
	EarthCurrent  int     `gorm:"column:tierra_corr"`
}

func (RelayFault) TableName() string { return "fallas_reles" }

// SentMessage records one notification attempt, accepted or not.
type SentMessage struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Subject     string `gorm:"column:subject;not null"`
	Body        string `gorm:"column:body;not null"`
	Timestamp   string `gorm:"column:timestamp"`
	MessageType string `gorm:"column:message_type"`
	Recipient   string `gorm:"column:recipient"` // comma-joined
	Success     int    `gorm:"column:success;not null"`
}

func (SentMessage) TableName() string { return "mensajes_enviados" }
