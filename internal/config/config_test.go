package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Config, *flag.FlagSet) {
	t.Helper()
	cfg := Default()
	fs := flag.NewFlagSet("mapd-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return cfg, fs
}

func TestDefaults(t *testing.T) {
	cfg, _ := parse(t)

	assert.Equal(t, "data", cfg.Data)
	assert.Equal(t, 9091, cfg.Port)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 8, cfg.ThreadPoolSize)
	assert.True(t, cfg.FlushLog)
	assert.True(t, cfg.EnableWatchdog)
	assert.Equal(t, -1, cfg.NumGPUs)
	assert.Equal(t, "gpu", cfg.Device)
}

func TestNormalize_PositionalDataPath(t *testing.T) {
	cfg, fs := parse(t, "/var/lib/mapd")
	cfg.Normalize(fs.Args())
	assert.Equal(t, "/var/lib/mapd", cfg.Data)
}

func TestNormalize_Device(t *testing.T) {
	cfg, fs := parse(t, "--cpu")
	cfg.Normalize(fs.Args())
	assert.Equal(t, "cpu", cfg.Device)

	cfg, fs = parse(t, "--gpu")
	cfg.Normalize(fs.Args())
	assert.Equal(t, "gpu", cfg.Device)

	// Zero GPUs forces CPU mode regardless of the device flags.
	cfg, fs = parse(t, "--gpu", "--num-gpus", "0")
	cfg.Normalize(fs.Args())
	assert.Equal(t, "cpu", cfg.Device)
}

func TestNormalize_DisableFlags(t *testing.T) {
	cfg, fs := parse(t, "--disable-multifrag", "--disable-legacy-syntax")
	cfg.Normalize(fs.Args())
	assert.False(t, cfg.AllowMultifrag)
	assert.False(t, cfg.EnableLegacySyntax)

	cfg, fs = parse(t)
	cfg.Normalize(fs.Args())
	assert.True(t, cfg.AllowMultifrag)
	assert.True(t, cfg.EnableLegacySyntax)
}

func TestNormalize_TrimsQuotes(t *testing.T) {
	cfg, fs := parse(t, "--db-query-list", `"warmup.sql"`)
	cfg.Normalize(fs.Args())
	assert.Equal(t, "warmup.sql", cfg.DBQueryFile)
}

func TestApplyFile_OverlaysDefaultsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapd.conf")
	require.NoError(t, os.WriteFile(path, []byte("port: 19091\nhttp-port: 19090\nflush-log: false\n"), 0o644))

	// --port was given explicitly, so only http-port and flush-log come
	// from the file.
	cfg, fs := parse(t, "--port", "7000")
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	require.NoError(t, cfg.ApplyFile(path, func(name string) bool { return explicit[name] }))
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 19090, cfg.HTTPPort)
	assert.False(t, cfg.FlushLog)
}

func TestApplyFile_MissingFile(t *testing.T) {
	cfg, _ := parse(t)
	assert.Error(t, cfg.ApplyFile("/nonexistent/mapd.conf", func(string) bool { return false }))
}

func TestCheckPaths_OrderedPreconditions(t *testing.T) {
	cfg, _ := parse(t)

	cfg.Data = "/nonexistent"
	err := cfg.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data directory")

	base := t.TempDir()
	cfg.Data = base
	err = cfg.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system catalogs")

	require.NoError(t, os.MkdirAll(filepath.Join(base, CatalogsDirName), 0o755))
	err = cfg.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run initdb")

	require.NoError(t, os.MkdirAll(filepath.Join(base, DataDirName), 0o755))
	err = cfg.CheckPaths()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "system database")

	require.NoError(t, os.WriteFile(filepath.Join(base, CatalogsDirName, SystemDBName), nil, 0o644))
	assert.NoError(t, cfg.CheckPaths())
}

func TestCheckAuxPaths(t *testing.T) {
	cfg, _ := parse(t)
	assert.NoError(t, cfg.CheckAuxPaths())

	cfg.DBQueryFile = "/nonexistent/warmup.sql"
	assert.Error(t, cfg.CheckAuxPaths())

	cfg.DBQueryFile = ""
	cfg.DBConvertDir = "/nonexistent/convert"
	assert.Error(t, cfg.CheckAuxPaths())
}

func TestValidateHA(t *testing.T) {
	cfg, _ := parse(t)
	code, err := cfg.ValidateHA()
	assert.Equal(t, 0, code)
	assert.NoError(t, err)

	cfg.HAGroupID = "group1"
	code, err = cfg.ValidateHA()
	assert.Equal(t, ExitMissingHAServerID, code)
	assert.Error(t, err)

	cfg.HAUniqueServerID = "server1"
	code, _ = cfg.ValidateHA()
	assert.Equal(t, ExitMissingHABrokers, code)

	cfg.HABrokers = "broker1:9092"
	code, _ = cfg.ValidateHA()
	assert.Equal(t, ExitMissingHASharedData, code)

	cfg.HASharedData = "/shared"
	code, err = cfg.ValidateHA()
	assert.Equal(t, 0, code)
	assert.NoError(t, err)
}

func TestClusterConfigPath(t *testing.T) {
	cfg, _ := parse(t)
	assert.Empty(t, cfg.ClusterConfigPath())

	cfg.StringServersPath = "strings.conf"
	assert.Equal(t, "strings.conf", cfg.ClusterConfigPath())

	cfg.ClusterPath = "cluster.conf"
	assert.Equal(t, "cluster.conf", cfg.ClusterConfigPath())
}
