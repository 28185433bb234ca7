package config

import (
	"os"
	"reflect"
	"testing"
)

var testYaml = `---
interface:
  name: wpan0
  device: /dev/net/tun
log_packets: true
`

var correctConfig = Config{
	Interface: Interface{
		Name:   "wpan0",
		Device: "/dev/net/tun",
	},
	LogPackets: true,
}

func TestConfig(t *testing.T) {
	configFile, err := os.CreateTemp("", "configtest")
	if err != nil {
		t.Fatalf("error creating tempfile: %s", err)
	}
	defer func() {
		err := os.Remove(configFile.Name())
		if err != nil {
			t.Fatalf("error deleting tempfile: %s", err)
		}
	}()
	_, err = configFile.WriteString(testYaml)
	if err != nil {
		t.Fatalf("error writing to tempfile: %s", err)
	}
	err = configFile.Close()
	if err != nil {
		t.Fatalf("error closing tempfile: %s", err)
	}
	var config *Config
	config, err = LoadConfig(configFile.Name())
	if err != nil {
		t.Fatalf("error loading tempfile: %s", err)
	}
	if !reflect.DeepEqual(config, &correctConfig) {
		t.Fatalf("config loaded incorrectly")
	}
}

func TestConfigDefaults(t *testing.T) {
	config, err := ParseConfig([]byte("---\n"))
	if err != nil {
		t.Fatalf("error parsing empty config: %s", err)
	}
	if config.Interface.Name != "" || config.LogPackets {
		t.Fatalf("empty config not zero-valued: %+v", config)
	}
}

func TestConfigBadYaml(t *testing.T) {
	_, err := ParseConfig([]byte("interface: ["))
	if err == nil {
		t.Fatal("expected an error from malformed yaml")
	}
}
