package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/payjoin-network/payjoin/internal/core/application"
	"github.com/payjoin-network/payjoin/internal/core/ports"
	"github.com/payjoin-network/payjoin/internal/infrastructure/db"
	timescheduler "github.com/payjoin-network/payjoin/internal/infrastructure/scheduler/gocron"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var supportedDbs = supportedType{
	"badger":   {},
	"inmemory": {},
}

type Config struct {
	Datadir  string
	Port     uint32
	LogLevel int
	NoCORS   bool

	DbType        string
	DbDir         string
	SessionTTL    int64
	SweepInterval int64

	repo      ports.RepoManager
	scheduler ports.SchedulerService
	svc       application.Service
}

func (c *Config) String() string {
	json, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("error while marshalling config JSON: %s", err)
	}
	return string(json)
}

var (
	Datadir       = "DATADIR"
	Port          = "PORT"
	LogLevel      = "LOG_LEVEL"
	DbType        = "DB_TYPE"
	SessionTTL    = "SESSION_TTL"
	SweepInterval = "SWEEP_INTERVAL"
	NoCORS        = "NO_CORS"

	defaultDatadir       = btcutil.AppDataDir("payjoind", false)
	DefaultPort          = 7070
	defaultLogLevel      = 4
	defaultDbType        = "badger"
	defaultSessionTTL    = 86400
	defaultSweepInterval = 600
)

func LoadConfig() (*Config, error) {
	viper.SetEnvPrefix("PAYJOIN")
	viper.AutomaticEnv()

	viper.SetDefault(Datadir, defaultDatadir)
	viper.SetDefault(Port, DefaultPort)
	viper.SetDefault(LogLevel, defaultLogLevel)
	viper.SetDefault(DbType, defaultDbType)
	viper.SetDefault(SessionTTL, defaultSessionTTL)
	viper.SetDefault(SweepInterval, defaultSweepInterval)

	if err := initDatadir(); err != nil {
		return nil, fmt.Errorf("error while creating datadir: %s", err)
	}

	dbPath := filepath.Join(viper.GetString(Datadir), "db")

	return &Config{
		Datadir:       viper.GetString(Datadir),
		Port:          viper.GetUint32(Port),
		LogLevel:      viper.GetInt(LogLevel),
		NoCORS:        viper.GetBool(NoCORS),
		DbType:        viper.GetString(DbType),
		DbDir:         dbPath,
		SessionTTL:    viper.GetInt64(SessionTTL),
		SweepInterval: viper.GetInt64(SweepInterval),
	}, nil
}

func (c *Config) Validate() error {
	if !supportedDbs.supports(c.DbType) {
		return fmt.Errorf("db type not supported, please select one of: %s", supportedDbs)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid session ttl, must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval, must be positive")
	}
	if err := c.repoManager(); err != nil {
		return err
	}
	return c.schedulerService()
}

func (c *Config) AppService() (application.Service, error) {
	if c.svc == nil {
		if err := c.appService(); err != nil {
			return nil, err
		}
	}
	return c.svc, nil
}

func (c *Config) repoManager() error {
	var dataStoreConfig []interface{}
	logger := log.New()

	switch c.DbType {
	case "badger":
		dataStoreConfig = []interface{}{c.DbDir, logger}
	case "inmemory":
		dataStoreConfig = nil
	default:
		return fmt.Errorf("unknown db type")
	}

	svc, err := db.NewService(db.ServiceConfig{
		SessionStoreType:   c.DbType,
		SessionStoreConfig: dataStoreConfig,
	})
	if err != nil {
		return err
	}

	c.repo = svc
	return nil
}

func (c *Config) schedulerService() error {
	c.scheduler = timescheduler.NewScheduler()
	return nil
}

func (c *Config) appService() error {
	svc, err := application.NewService(c.repo, c.scheduler, c.SessionTTL, c.SweepInterval)
	if err != nil {
		return err
	}

	c.svc = svc
	return nil
}

func initDatadir() error {
	datadir := viper.GetString(Datadir)
	return makeDirectoryIfNotExists(datadir)
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}

func (t supportedType) supports(typeStr string) bool {
	_, ok := t[typeStr]
	return ok
}
