/*
 * Copyright 2022 Google LLC.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */


package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/google/yggdrasil-pmml/serving/engine"
)

// Config of the prediction service. Every key can be set in a YAML file or
// with an environment variable, e.g. PMML_SERVER_ADDRESS for
// "server.address".
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Model  ModelConfig  `mapstructure:"model"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address string `mapstructure:"address"`
	// Timeout bounds the scoring of a request. Records of a batch not scored
	// in time are reported as failed.
	Timeout         time.Duration `mapstructure:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// ModelConfig configures the served document.
type ModelConfig struct {
	Path             string `mapstructure:"path"`
	SupplementOutput bool   `mapstructure:"supplement_output"`
	Workers          int    `mapstructure:"workers"`
}

// EngineOptions are the engine options matching the configuration.
func (c ModelConfig) EngineOptions() engine.Options {
	options := engine.DefaultOptions()
	options.SupplementOutput = c.SupplementOutput
	options.Workers = c.Workers
	return options
}

// LoadConfig reads the configuration. "path" is an optional YAML file.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("model.path", "")
	v.SetDefault("model.supplement_output", true)
	v.SetDefault("model.workers", 0)

	v.SetEnvPrefix("PMML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(path) > 0 {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
