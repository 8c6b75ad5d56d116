package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"grdmonitor/internal/logging"
)

// Config mirrors config/config.yaml.
type Config struct {
	Log     logging.Config `yaml:"log"`
	Storage StorageConfig  `yaml:"storage"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Modbus  ModbusConfig   `yaml:"modbus"`
	GRD     GRDConfig      `yaml:"grd"`
	Relays  RelayConfig    `yaml:"relays"`
	Alarms  AlarmConfig    `yaml:"alarms"`
	Mail    MailConfig     `yaml:"mail"`
	MQTT    MQTTConfig     `yaml:"mqtt"`
	Router  RouterConfig   `yaml:"router"`
	Proxmox ProxmoxConfig  `yaml:"proxmox"`
	Flags   FlagsConfig    `yaml:"flags"`

	// Inventory is only consumed by cmd/seed to populate the device tables.
	Inventory InventoryConfig `yaml:"inventory"`
}

type InventoryConfig struct {
	GRDs   []GRDEntry   `yaml:"grds"`
	Relays []RelayEntry `yaml:"relays"`
}

type GRDEntry struct {
	ID          int    `yaml:"id"`
	Description string `yaml:"description"`
}

type RelayEntry struct {
	ModbusID    int    `yaml:"modbus_id"`
	Description string `yaml:"description"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

type MetricsConfig struct {
	ListenAddress string `yaml:"listen_address"` // empty disables the /metrics listener
}

type ModbusConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// GRDConfig drives the Exemys middleware poller. Each GRD occupies a block of
// RegisterCount input registers starting at (id-1)*RegisterCount; the
// connected bit lives in register 16 of the block.
type GRDConfig struct {
	UnitID        uint8         `yaml:"unit_id"`
	RegisterCount int           `yaml:"register_count"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	SkipIDs       []int         `yaml:"skip_ids"`
}

type RelayConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

type AlarmConfig struct {
	CheckInterval        time.Duration `yaml:"check_interval"`
	MinSustainedDuration time.Duration `yaml:"min_sustained_duration"`
	GlobalRedThreshold   float64       `yaml:"global_red_threshold"`
	Recipients           []string      `yaml:"recipients"`
	SubjectPrefix        string        `yaml:"subject_prefix"`
	ExclusionFile        string        `yaml:"exclusion_file"`
}

type MailConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	BackoffInitial time.Duration `yaml:"backoff_initial"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
}

type MQTTConfig struct {
	BrokerURL   string `yaml:"broker_url"` // empty disables the event bus
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicState  string `yaml:"topic_state"`  // GRD changes + global summary, retained
	TopicSensor string `yaml:"topic_sensor"` // modem state, retained
	TopicEmail  string `yaml:"topic_email"`  // email events, not retained
}

type RouterConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ProxmoxConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Node         string        `yaml:"node"`
	Token        string        `yaml:"token"`
	Insecure     bool          `yaml:"insecure"` // lab API uses self-signed certs
	Timeout      time.Duration `yaml:"timeout"`
	VMIDs        []int         `yaml:"vm_ids"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type FlagsConfig struct {
	ObservarPath string `yaml:"observar_path"`
}

// Load reads the YAML config, applying defaults and validating.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/grdmonitor.sqlite"
	}
	if c.Modbus.Port <= 0 {
		c.Modbus.Port = 502
	}
	if c.Modbus.ConnectTimeout <= 0 {
		c.Modbus.ConnectTimeout = 5 * time.Second
	}
	if c.GRD.RegisterCount <= 0 {
		c.GRD.RegisterCount = 17
	}
	if c.GRD.PollInterval <= 0 {
		c.GRD.PollInterval = 30 * time.Second
	}
	if c.Relays.PollInterval <= 0 {
		c.Relays.PollInterval = 60 * time.Second
	}
	if c.Alarms.CheckInterval <= 0 {
		c.Alarms.CheckInterval = 20 * time.Second
	}
	if c.Alarms.MinSustainedDuration <= 0 {
		c.Alarms.MinSustainedDuration = 30 * time.Minute
	}
	if c.Alarms.GlobalRedThreshold <= 0 {
		c.Alarms.GlobalRedThreshold = 40
	}
	if c.Mail.Timeout <= 0 {
		c.Mail.Timeout = 5 * time.Second
	}
	if c.Mail.MaxRetries <= 0 {
		c.Mail.MaxRetries = 5
	}
	if c.Mail.BackoffInitial <= 0 {
		c.Mail.BackoffInitial = 500 * time.Millisecond
	}
	if c.Mail.BackoffMax <= 0 {
		c.Mail.BackoffMax = 8 * time.Second
	}
	if c.Router.Timeout <= 0 {
		c.Router.Timeout = 5 * time.Second
	}
	if c.Proxmox.Timeout <= 0 {
		c.Proxmox.Timeout = 10 * time.Second
	}
	if c.Proxmox.PollInterval <= 0 {
		c.Proxmox.PollInterval = 300 * time.Second
	}
	if c.Flags.ObservarPath == "" {
		c.Flags.ObservarPath = "data/observar.json"
	}
}

func (c *Config) validate() error {
	if c.Modbus.Host == "" {
		return fmt.Errorf("config: modbus.host must be set")
	}
	if c.GRD.UnitID == 0 {
		return fmt.Errorf("config: grd.unit_id must be set")
	}
	return nil
}
