package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/voicejournal/internal/flagx"
	"github.com/dmitrijs2005/voicejournal/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "3s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; after unmarshalling, its fields are copied into the
// runtime Config struct which uses time.Duration. The fields are pointers so
// that a key absent from the file is distinguishable from a zero value: only
// keys present in the file override the current configuration.
type JsonConfig struct {
	EndpointAddr       *string         `json:"endpoint_addr"`
	DatabaseDSN        *string         `json:"database_dsn"`
	SecretKey          *string         `json:"secret_key"`
	TranscriptionDelay *timex.Duration `json:"transcription_delay"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config command-line
// flags; if neither is set, no JSON file is loaded. An unreadable or
// malformed file panics: a config file that was explicitly requested but
// cannot be applied is a startup failure.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != nil {
		config.EndpointAddr = *c.EndpointAddr
	}
	if c.DatabaseDSN != nil {
		config.DatabaseDSN = *c.DatabaseDSN
	}
	if c.SecretKey != nil {
		config.SecretKey = *c.SecretKey
	}
	if c.TranscriptionDelay != nil {
		config.TranscriptionDelay = time.Duration(c.TranscriptionDelay.Duration)
	}
}
