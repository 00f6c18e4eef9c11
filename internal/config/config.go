// Package config aggregates the server's startup parameters from CLI flags
// and an optional config file. A Config is built once at startup and is
// read-only afterwards.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// On-disk layout inside the data directory.
const (
	CatalogsDirName = "mapd_catalogs"
	DataDirName     = "mapd_data"
	LogDirName      = "mapd_log"
	SystemDBName    = "mapd"
)

// Exit codes for high-availability misconfiguration.
const (
	ExitMissingHAServerID   = 5
	ExitMissingHABrokers    = 6
	ExitMissingHASharedData = 7
)

// Config holds every startup parameter. Fields are set by flags, then
// overlaid from the config file for flags left at their default.
type Config struct {
	Data       string
	ConfigFile string

	// Device is "cpu" or "gpu"; resolved from the --cpu/--gpu flags.
	Device string
	CPU    bool
	GPU    bool

	Port     int
	HTTPPort int

	ReadOnly bool
	FlushLog bool
	LogLevel string

	CPUBufferMemBytes uint64
	ReservedGPUMem    uint64
	NumGPUs           int
	StartGPU          int

	ThreadPoolSize   int
	NumReaderThreads uint64

	JITDebug            bool
	AllowLoopJoins      bool
	AllowMultifrag      bool
	EnableLegacySyntax  bool
	DisableMultifrag    bool
	DisableLegacySyntax bool

	EnableWatchdog             bool
	EnableDynamicWatchdog      bool
	DynamicWatchdogTimeLimitMS uint64

	StartEpoch   int
	DBConvertDir string
	DBQueryFile  string

	// ClusterPath/StringServersPath carry the cluster config file path when
	// the corresponding mode is requested; empty means the flag was not set.
	ClusterPath       string
	StringServersPath string

	HAGroupID        string
	HAUniqueServerID string
	HABrokers        string
	HASharedData     string

	Version      bool
	Help         bool
	HelpAdvanced bool
}

// Default returns a Config carrying the documented flag defaults.
func Default() *Config {
	return &Config{
		Data:                       "data",
		Device:                     "gpu",
		Port:                       9091,
		HTTPPort:                   9090,
		FlushLog:                   true,
		LogLevel:                   "info",
		ReservedGPUMem:             1 << 27,
		NumGPUs:                    -1,
		ThreadPoolSize:             8,
		AllowMultifrag:             true,
		EnableLegacySyntax:         true,
		EnableWatchdog:             true,
		DynamicWatchdogTimeLimitMS: 10000,
		StartEpoch:                 -1,
	}
}

// advancedFlags names the flags shown only by --help-advanced.
var advancedFlags = map[string]bool{
	"help-advanced":               true,
	"jit-debug":                   true,
	"disable-multifrag":           true,
	"allow-loop-joins":            true,
	"res-gpu-mem":                 true,
	"disable-legacy-syntax":       true,
	"tthreadpool-size":            true,
	"num-reader-threads":          true,
	"enable-watchdog":             true,
	"enable-dynamic-watchdog":     true,
	"dynamic-watchdog-time-limit": true,
	"start-epoch":                 true,
	"db-convert":                  true,
	"db-query-list":               true,
	"cluster":                     true,
	"string-servers":              true,
	"ha-group-id":                 true,
	"ha-unique-server-id":         true,
	"ha-brokers":                  true,
	"ha-shared-data":              true,
	"log-level":                   true,
}

// RegisterFlags binds every CLI option onto fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.Help, "help", false, "Print help messages")
	fs.BoolVar(&c.Help, "h", false, "Print help messages (shorthand)")
	fs.StringVar(&c.ConfigFile, "config", "", "Path to mapd.conf")
	fs.StringVar(&c.Data, "data", c.Data, "Directory path to MapD catalogs")
	fs.BoolVar(&c.CPU, "cpu", false, "Run on CPU only")
	fs.BoolVar(&c.GPU, "gpu", false, "Run on GPUs (default)")
	fs.BoolVar(&c.ReadOnly, "read-only", c.ReadOnly, "Enable read-only mode")
	fs.IntVar(&c.Port, "port", c.Port, "Port number")
	fs.IntVar(&c.Port, "p", c.Port, "Port number (shorthand)")
	fs.IntVar(&c.HTTPPort, "http-port", c.HTTPPort, "HTTP port number")
	fs.BoolVar(&c.FlushLog, "flush-log", c.FlushLog,
		"Immediately flush logs to disk. Set to false if this is a performance bottleneck.")
	fs.Uint64Var(&c.CPUBufferMemBytes, "cpu-buffer-mem-bytes", c.CPUBufferMemBytes,
		"Size of memory reserved for CPU buffers [bytes]")
	fs.IntVar(&c.NumGPUs, "num-gpus", c.NumGPUs, "Number of gpus to use")
	fs.IntVar(&c.StartGPU, "start-gpu", c.StartGPU, "First gpu to use")
	fs.BoolVar(&c.Version, "version", false, "Print release version number")
	fs.BoolVar(&c.Version, "v", false, "Print release version number (shorthand)")

	fs.BoolVar(&c.HelpAdvanced, "help-advanced", false, "Print advanced help messages")
	fs.BoolVar(&c.JITDebug, "jit-debug", c.JITDebug,
		"Enable debugger support for the JIT. The generated code can be found at /tmp/mapdquery")
	fs.BoolVar(&c.DisableMultifrag, "disable-multifrag", c.DisableMultifrag,
		"Disable execution over multiple fragments in a single round-trip to GPU")
	fs.BoolVar(&c.AllowLoopJoins, "allow-loop-joins", c.AllowLoopJoins, "Enable loop joins")
	fs.Uint64Var(&c.ReservedGPUMem, "res-gpu-mem", c.ReservedGPUMem,
		"Reserved memory for GPU, not used by the buffer allocator")
	fs.BoolVar(&c.DisableLegacySyntax, "disable-legacy-syntax", c.DisableLegacySyntax,
		"Disable legacy syntax")
	fs.IntVar(&c.ThreadPoolSize, "tthreadpool-size", c.ThreadPoolSize,
		"Server thread pool size. Increasing may adversely affect render performance and stability.")
	fs.Uint64Var(&c.NumReaderThreads, "num-reader-threads", c.NumReaderThreads,
		"Number of reader threads to use")
	fs.BoolVar(&c.EnableWatchdog, "enable-watchdog", c.EnableWatchdog, "Enable watchdog")
	fs.BoolVar(&c.EnableDynamicWatchdog, "enable-dynamic-watchdog", c.EnableDynamicWatchdog,
		"Enable dynamic watchdog")
	fs.Uint64Var(&c.DynamicWatchdogTimeLimitMS, "dynamic-watchdog-time-limit", c.DynamicWatchdogTimeLimitMS,
		"Dynamic watchdog time limit, in milliseconds")
	fs.IntVar(&c.StartEpoch, "start-epoch", c.StartEpoch, "Value of epoch to 'rollback' to")
	fs.StringVar(&c.DBConvertDir, "db-convert", c.DBConvertDir,
		"Directory path to mapd DB to convert from")
	fs.StringVar(&c.DBQueryFile, "db-query-list", c.DBQueryFile,
		"Path to file containing mapd queries")
	fs.StringVar(&c.ClusterPath, "cluster", c.ClusterPath,
		"Path to data leaves list within the cluster, running as aggregator")
	fs.StringVar(&c.StringServersPath, "string-servers", c.StringServersPath,
		"Path to string servers list within the cluster, running as dbleaf")
	fs.StringVar(&c.HAGroupID, "ha-group-id", c.HAGroupID, "High availability group id")
	fs.StringVar(&c.HAUniqueServerID, "ha-unique-server-id", c.HAUniqueServerID,
		"Unique server id within the high availability group")
	fs.StringVar(&c.HABrokers, "ha-brokers", c.HABrokers, "High availability broker list")
	fs.StringVar(&c.HASharedData, "ha-shared-data", c.HASharedData,
		"High availability shared data path")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace, debug, info, warn, error)")
}

// Normalize trims stray quoting from path values and resolves the device.
// A first positional argument is accepted as the data path.
func (c *Config) Normalize(args []string) {
	if len(args) > 0 && args[0] != "" {
		c.Data = args[0]
	}
	c.Data = trimQuotes(c.Data)
	c.DBQueryFile = trimQuotes(c.DBQueryFile)
	c.DBConvertDir = trimQuotes(c.DBConvertDir)
	c.ClusterPath = trimQuotes(c.ClusterPath)
	c.StringServersPath = trimQuotes(c.StringServersPath)

	switch {
	case c.CPU:
		c.Device = "cpu"
	case c.GPU:
		c.Device = "gpu"
	}
	if c.NumGPUs == 0 {
		c.Device = "cpu"
	}

	if c.DisableMultifrag {
		c.AllowMultifrag = false
	}
	if c.DisableLegacySyntax {
		c.EnableLegacySyntax = false
	}
}

// ClusterConfigPath returns the cluster config file path when either cluster
// mode flag was set.
func (c *Config) ClusterConfigPath() string {
	if c.ClusterPath != "" {
		return c.ClusterPath
	}
	return c.StringServersPath
}

// CheckPaths verifies the filesystem preconditions in order: data directory,
// system catalog store, data subdirectory, system database. Each missing path
// is a fatal startup error.
func (c *Config) CheckPaths() error {
	if !pathExists(c.Data) {
		return fmt.Errorf("data directory %s does not exist", c.Data)
	}
	catalogs := filepath.Join(c.Data, CatalogsDirName)
	if !pathExists(catalogs) {
		return fmt.Errorf("system catalogs do not exist at %s, run initdb", catalogs)
	}
	dataDir := filepath.Join(c.Data, DataDirName)
	if !pathExists(dataDir) {
		return fmt.Errorf("data directory does not exist at %s, run initdb", dataDir)
	}
	systemDB := filepath.Join(c.Data, CatalogsDirName, SystemDBName)
	if !pathExists(systemDB) {
		return fmt.Errorf("system database %s does not exist", SystemDBName)
	}
	return nil
}

// CheckAuxPaths verifies the warm-up script and conversion source when set.
func (c *Config) CheckAuxPaths() error {
	if c.DBQueryFile != "" && !pathExists(c.DBQueryFile) {
		return fmt.Errorf("file containing DB queries %s does not exist", c.DBQueryFile)
	}
	if c.DBConvertDir != "" && !pathExists(c.DBConvertDir) {
		return fmt.Errorf("data conversion source directory %s does not exist", c.DBConvertDir)
	}
	return nil
}

// HAEnabled reports whether a high-availability group was configured.
func (c *Config) HAEnabled() bool { return c.HAGroupID != "" }

// ValidateHA checks the HA field set, returning the distinct exit code for
// the first missing field, or 0 when HA is unconfigured or complete.
func (c *Config) ValidateHA() (int, error) {
	if !c.HAEnabled() {
		return 0, nil
	}
	if c.HAUniqueServerID == "" {
		return ExitMissingHAServerID, fmt.Errorf("starting server in HA mode, --ha-unique-server-id must be set")
	}
	if c.HABrokers == "" {
		return ExitMissingHABrokers, fmt.Errorf("starting server in HA mode, --ha-brokers must be set")
	}
	if c.HASharedData == "" {
		return ExitMissingHASharedData, fmt.Errorf("starting server in HA mode, --ha-shared-data must be set")
	}
	return 0, nil
}

// LogDir returns the log directory under the data path.
func (c *Config) LogDir() string { return filepath.Join(c.Data, LogDirName) }

func trimQuotes(s string) string {
	return strings.Trim(s, `"'`)
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
