package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the flag surface in mapd.conf. Pointer fields
// distinguish "absent" from a zero value.
type fileConfig struct {
	Data                       *string `yaml:"data"`
	Port                       *int    `yaml:"port"`
	HTTPPort                   *int    `yaml:"http-port"`
	ReadOnly                   *bool   `yaml:"read-only"`
	FlushLog                   *bool   `yaml:"flush-log"`
	LogLevel                   *string `yaml:"log-level"`
	CPUBufferMemBytes          *uint64 `yaml:"cpu-buffer-mem-bytes"`
	ReservedGPUMem             *uint64 `yaml:"res-gpu-mem"`
	NumGPUs                    *int    `yaml:"num-gpus"`
	StartGPU                   *int    `yaml:"start-gpu"`
	ThreadPoolSize             *int    `yaml:"tthreadpool-size"`
	NumReaderThreads           *uint64 `yaml:"num-reader-threads"`
	EnableWatchdog             *bool   `yaml:"enable-watchdog"`
	EnableDynamicWatchdog      *bool   `yaml:"enable-dynamic-watchdog"`
	DynamicWatchdogTimeLimitMS *uint64 `yaml:"dynamic-watchdog-time-limit"`
	StartEpoch                 *int    `yaml:"start-epoch"`
	DBConvertDir               *string `yaml:"db-convert"`
	DBQueryFile                *string `yaml:"db-query-list"`
	Cluster                    *string `yaml:"cluster"`
	StringServers              *string `yaml:"string-servers"`
	HAGroupID                  *string `yaml:"ha-group-id"`
	HAUniqueServerID           *string `yaml:"ha-unique-server-id"`
	HABrokers                  *string `yaml:"ha-brokers"`
	HASharedData               *string `yaml:"ha-shared-data"`
}

// ApplyFile overlays values from the config file onto c. A file value is
// applied only when the matching flag was not set explicitly on the command
// line, so explicit flags always win.
func (c *Config) ApplyFile(path string, flagWasSet func(name string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	overlayString(&c.Data, fc.Data, "data", flagWasSet)
	overlayInt(&c.Port, fc.Port, "port", flagWasSet)
	overlayInt(&c.HTTPPort, fc.HTTPPort, "http-port", flagWasSet)
	overlayBool(&c.ReadOnly, fc.ReadOnly, "read-only", flagWasSet)
	overlayBool(&c.FlushLog, fc.FlushLog, "flush-log", flagWasSet)
	overlayString(&c.LogLevel, fc.LogLevel, "log-level", flagWasSet)
	overlayUint64(&c.CPUBufferMemBytes, fc.CPUBufferMemBytes, "cpu-buffer-mem-bytes", flagWasSet)
	overlayUint64(&c.ReservedGPUMem, fc.ReservedGPUMem, "res-gpu-mem", flagWasSet)
	overlayInt(&c.NumGPUs, fc.NumGPUs, "num-gpus", flagWasSet)
	overlayInt(&c.StartGPU, fc.StartGPU, "start-gpu", flagWasSet)
	overlayInt(&c.ThreadPoolSize, fc.ThreadPoolSize, "tthreadpool-size", flagWasSet)
	overlayUint64(&c.NumReaderThreads, fc.NumReaderThreads, "num-reader-threads", flagWasSet)
	overlayBool(&c.EnableWatchdog, fc.EnableWatchdog, "enable-watchdog", flagWasSet)
	overlayBool(&c.EnableDynamicWatchdog, fc.EnableDynamicWatchdog, "enable-dynamic-watchdog", flagWasSet)
	overlayUint64(&c.DynamicWatchdogTimeLimitMS, fc.DynamicWatchdogTimeLimitMS, "dynamic-watchdog-time-limit", flagWasSet)
	overlayInt(&c.StartEpoch, fc.StartEpoch, "start-epoch", flagWasSet)
	overlayString(&c.DBConvertDir, fc.DBConvertDir, "db-convert", flagWasSet)
	overlayString(&c.DBQueryFile, fc.DBQueryFile, "db-query-list", flagWasSet)
	overlayString(&c.ClusterPath, fc.Cluster, "cluster", flagWasSet)
	overlayString(&c.StringServersPath, fc.StringServers, "string-servers", flagWasSet)
	overlayString(&c.HAGroupID, fc.HAGroupID, "ha-group-id", flagWasSet)
	overlayString(&c.HAUniqueServerID, fc.HAUniqueServerID, "ha-unique-server-id", flagWasSet)
	overlayString(&c.HABrokers, fc.HABrokers, "ha-brokers", flagWasSet)
	overlayString(&c.HASharedData, fc.HASharedData, "ha-shared-data", flagWasSet)
	return nil
}

func overlayString(dst *string, src *string, name string, flagWasSet func(string) bool) {
	if src != nil && !flagWasSet(name) {
		*dst = *src
	}
}

func overlayInt(dst *int, src *int, name string, flagWasSet func(string) bool) {
	if src != nil && !flagWasSet(name) {
		*dst = *src
	}
}

func overlayUint64(dst *uint64, src *uint64, name string, flagWasSet func(string) bool) {
	if src != nil && !flagWasSet(name) {
		*dst = *src
	}
}

func overlayBool(dst *bool, src *bool, name string, flagWasSet func(string) bool) {
	if src != nil && !flagWasSet(name) {
		*dst = *src
	}
}
