package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tkanos/gonfig"
	"meterdata-etl/models"
)

// DatabaseConfig describes the document store holding readings, diagnostics and baselines
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DB       string `json:"db"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// WideColumnConfig describes the wide-column store receiving the normalized measurements
type WideColumnConfig struct {
	Host   string   `json:"host"`
	Port   int      `json:"port"`
	RowKey []string `json:"rowKey"`
}

// SourceConfig describes the optional relational source of raw measurements
type SourceConfig struct {
	DB_USERNAME string
	DB_PASSWORD string
	DB_ALIAS    string
	DB_HOST     string
	DB_PORT     string
	DB_SID      string
	TABLE       string
}

type Configuration struct {
	Database         DatabaseConfig                 `json:"database"`
	WideColumnStore  WideColumnConfig               `json:"wideColumnStore"`
	Source           SourceConfig                   `json:"source"`
	Devices          map[string][]string            `json:"devices"`
	ModellingUnits   map[string][]models.Multiplier `json:"modellingUnits"`
	Company          json.Number                    `json:"company"`
	Stations         json.RawMessage                `json:"stations"`
	TaskId           string                         `json:"task_id"`
	OutputCollection string                         `json:"outputCollection"`

	DEBUG_LOGGING      bool
	MAX_LOGFILE_SIZE   int64
	LOG_FILE           string
	WORKERS            int
	READING_CACHE_SIZE uint64
	QUARANTINE_DIR     string
	METRICS_ADDR       string
}

// GetConfig reads the run configuration side-loaded with the job. Values can be overridden by
// environment variables named like the fields (e.g. DEBUG_LOGGING=true).
func GetConfig(fileName string) (Configuration, error) {
	configuration := Configuration{}
	if err := gonfig.GetConf(fileName, &configuration); err != nil {
		return configuration, fmt.Errorf("error reading configuration %s: %w", fileName, err)
	}
	configuration.applyDefaults()

	log.Info("Using run configuration from ", fileName)

	return configuration, configuration.Validate()
}

func (c *Configuration) applyDefaults() {
	if c.TaskId == "" {
		c.TaskId = uuid.NewString()
	}
	if c.WORKERS <= 0 {
		c.WORKERS = GetDefaultWorkers()
	}
	if c.READING_CACHE_SIZE == 0 {
		c.READING_CACHE_SIZE = GetDefaultReadingCacheSize()
	}
	if c.MAX_LOGFILE_SIZE <= 0 {
		c.MAX_LOGFILE_SIZE = GetDefaultMaxLogfileSize()
	}
	if c.LOG_FILE == "" {
		c.LOG_FILE = GetLogFileName()
	}
	if c.OutputCollection == "" {
		c.OutputCollection = GetDefaultBaselineCollection()
	}
	if len(c.WideColumnStore.RowKey) == 0 {
		c.WideColumnStore.RowKey = GetDefaultRowKey()
	}
}

// Validate checks the fields both pipelines rely on being present
func (c *Configuration) Validate() error {
	var errs []error
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host must be specified in the configuration file"))
	}
	if c.Database.DB == "" {
		errs = append(errs, errors.New("database.db must be specified in the configuration file"))
	}
	for _, field := range c.WideColumnStore.RowKey {
		if !IsRowKeyField(field) {
			errs = append(errs, fmt.Errorf("wideColumnStore.rowKey references unknown field %q", field))
		}
	}
	if c.Company != "" {
		if _, err := c.CompanyId(); err != nil {
			errs = append(errs, fmt.Errorf("company must be an integer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CompanyId returns the numeric company the aggregation run belongs to
func (c *Configuration) CompanyId() (int64, error) {
	return strconv.ParseInt(string(c.Company), 10, 64)
}

// DocumentStoreURI returns the connection string of the document store
func (c *Configuration) DocumentStoreURI() string {
	port := c.Database.Port
	if port == 0 {
		port = GetDefaultDocumentStorePort()
	}
	return fmt.Sprintf("mongodb://%s:%d", c.Database.Host, port)
}

// WideColumnQuorum returns the address used to reach the wide-column store
func (c *Configuration) WideColumnQuorum() string {
	if c.WideColumnStore.Port == 0 {
		return c.WideColumnStore.Host
	}
	return fmt.Sprintf("%s:%d", c.WideColumnStore.Host, c.WideColumnStore.Port)
}

// SourceConnectionString returns the godror connection string of the relational source, if configured
func (c *Configuration) SourceConnectionString() (string, error) {
	s := c.Source
	if s.DB_ALIAS != "" && s.DB_HOST != "" {
		return "", errors.New("source.DB_ALIAS and source.DB_HOST cannot both be specified in the configuration file")
	}
	if s.DB_USERNAME == "" || s.DB_PASSWORD == "" {
		return "", errors.New("source.DB_USERNAME and source.DB_PASSWORD must be specified in the configuration file")
	}
	if s.DB_ALIAS != "" {
		return s.DB_USERNAME + "/" + s.DB_PASSWORD + "@" + s.DB_ALIAS, nil
	}
	if s.DB_HOST != "" && s.DB_PORT != "" && s.DB_SID != "" {
		return s.DB_USERNAME + "/" + s.DB_PASSWORD + "@//" + s.DB_HOST + ":" + s.DB_PORT + "/" + s.DB_SID, nil
	}
	return "", errors.New("source.DB_ALIAS or source.DB_HOST+DB_PORT+DB_SID must be specified in the configuration file")
}
