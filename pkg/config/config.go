package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
)

type Config struct {
	Interface  Interface `yaml:"interface"`
	LogPackets bool      `yaml:"log_packets"`
}

type Interface struct {
	Name   string `yaml:"name"`
	Device string `yaml:"device"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	err := yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return config, nil
}
