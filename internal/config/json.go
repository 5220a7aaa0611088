package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration allows JSON interval fields to be written either as strings
// such as "24h" or as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// jsonConfig is an intermediate DTO used only for reading JSON config
// files; values are copied into the runtime Config afterwards.
type jsonConfig struct {
	DatabaseDSN    *string   `json:"database_dsn"`
	APIBaseURL     *string   `json:"api_base_url"`
	SVNURL         *string   `json:"svn_url"`
	DataDir        *string   `json:"data_dir"`
	CacheTTL       *Duration `json:"cache_ttl"`
	UserAgents     []string  `json:"user_agents"`
	LogFile        *string   `json:"log_file"`
	S3Bucket       *string   `json:"s3_bucket"`
	S3Region       *string   `json:"s3_region"`
	S3AccessKey    *string   `json:"s3_access_key"`
	S3SecretKey    *string   `json:"s3_secret_key"`
	S3BaseEndpoint *string   `json:"s3_base_endpoint"`
}

// parseJSON overlays values from the JSON file at path onto config.
// Absent fields keep their defaults.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.APIBaseURL != nil {
		config.APIBaseURL = *c.APIBaseURL
	}
	if c.SVNURL != nil {
		config.SVNURL = *c.SVNURL
	}
	if c.DataDir != nil {
		config.DataDir = *c.DataDir
	}
	if c.CacheTTL != nil {
		config.CacheTTL = time.Duration(*c.CacheTTL)
	}
	if len(c.UserAgents) > 0 {
		config.UserAgents = c.UserAgents
	}
	if c.LogFile != nil {
		config.LogFile = *c.LogFile
	}
	if c.S3Bucket != nil {
		config.S3Bucket = *c.S3Bucket
	}
	if c.S3Region != nil {
		config.S3Region = *c.S3Region
	}
	if c.S3AccessKey != nil {
		config.S3AccessKey = *c.S3AccessKey
	}
	if c.S3SecretKey != nil {
		config.S3SecretKey = *c.S3SecretKey
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
	return nil
}
