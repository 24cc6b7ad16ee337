package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/mockserver"
	"github.com/zjrosen/antrail/internal/session"
)

// newRunCommand returns a run command detached from rootCmd so tests never
// trigger initConfig.
func newRunCommand(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	c := &cobra.Command{Use: "run", RunE: runHeadless}
	addRunFlags(c)
	require.NoError(t, c.ParseFlags(args))

	var out bytes.Buffer
	c.SetOut(&out)
	c.SetContext(context.Background())
	return c, &out
}

// useBackend points the global config at a fresh mock backend.
func useBackend(t *testing.T) *mockserver.Server {
	t.Helper()
	srv := mockserver.New(mockserver.Options{Runs: 2})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = config.Defaults()
	cfg.Server.URL = ts.URL
	cfg.Server.Instance = "square6"
	cfg.Defaults.NumAnts = 5
	cfg.Defaults.NumIterations = 10
	cfg.UI.RememberInput = false
	cfg.Artifacts.SaveDir = t.TempDir()
	return srv
}

func TestCommands_Registered(t *testing.T) {
	for _, name := range []string{"run", "mock-server"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("server"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("instance"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestHeadlessInput_Defaults(t *testing.T) {
	c, _ := newRunCommand(t)
	mode, raw, runs, err := headlessInput(c, config.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, session.ModeRun, mode)
	require.Equal(t, "1", raw.Alpha)
	require.Equal(t, "100", raw.NumAnts)
	require.Nil(t, raw.SeedSolution)
	require.Equal(t, 5, runs)
}

func TestHeadlessInput_Overrides(t *testing.T) {
	c, _ := newRunCommand(t, "--alpha", "2.5", "--ants", "7", "--seed", "[0, 2, 1]")
	mode, raw, _, err := headlessInput(c, config.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, session.ModeSeeded, mode)
	require.Equal(t, "2.5", raw.Alpha)
	require.Equal(t, "2", raw.Beta)
	require.Equal(t, "7", raw.NumAnts)
	require.NotNil(t, raw.SeedSolution)
	require.Equal(t, "[0, 2, 1]", *raw.SeedSolution)
}

func TestHeadlessInput_Batch(t *testing.T) {
	c, _ := newRunCommand(t, "--batch", "--runs", "7")
	mode, _, runs, err := headlessInput(c, config.DefaultParams())
	require.NoError(t, err)
	require.Equal(t, session.ModeBatch, mode)
	require.Equal(t, 7, runs)

	c, _ = newRunCommand(t, "--runs", "-1")
	_, _, _, err = headlessInput(c, config.DefaultParams())
	require.ErrorContains(t, err, "--runs must not be negative")
}

func TestHeadlessInput_SeedAndBatchConflict(t *testing.T) {
	c, _ := newRunCommand(t, "--batch", "--seed", "[0, 1]")
	_, _, _, err := headlessInput(c, config.DefaultParams())
	require.ErrorContains(t, err, "cannot be combined")
}

func TestRunHeadless_CompletesAndSavesArtifacts(t *testing.T) {
	useBackend(t)
	c, out := newRunCommand(t, "--save-artifacts")

	require.NoError(t, runHeadless(c, nil))

	text := out.String()
	require.Contains(t, text, "Instance square6 loaded successfully.")
	require.Contains(t, text, "Running ACO in real time...")
	require.Contains(t, text, "Best solution found: ")
	require.Contains(t, text, "Saved graph")

	files, err := os.ReadDir(cfg.Artifacts.SaveDir)
	require.NoError(t, err)
	require.Len(t, files, 4)
}

func TestRunHeadless_BatchSavesAggregate(t *testing.T) {
	useBackend(t)
	c, out := newRunCommand(t, "--batch", "--save-artifacts")

	require.NoError(t, runHeadless(c, nil))

	text := out.String()
	require.Contains(t, text, "2 runs completed")
	require.Contains(t, text, "Saved aggregate")

	files, err := os.ReadDir(cfg.Artifacts.SaveDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, ".png", filepath.Ext(files[0].Name()))
}

func TestRunHeadless_InvalidParametersNeverStream(t *testing.T) {
	useBackend(t)
	c, out := newRunCommand(t, "--alpha", "abc")

	err := runHeadless(c, nil)
	require.Error(t, err)
	require.Contains(t, out.String(), "Invalid parameters")
	require.NotContains(t, out.String(), "real time")
}

func TestRunHeadless_RequiresInstance(t *testing.T) {
	useBackend(t)
	cfg.Server.Instance = ""
	c, _ := newRunCommand(t)
	require.ErrorContains(t, runHeadless(c, nil), "no instance")
}

func TestRunHeadless_UnknownInstance(t *testing.T) {
	useBackend(t)
	cfg.Server.Instance = "nonsense"
	c, out := newRunCommand(t)

	require.Error(t, runHeadless(c, nil))
	require.Contains(t, out.String(), "Failed to load instance nonsense")
}

func TestInitConfig_FileAndEnvironment(t *testing.T) {
	oldFile, oldCfg := cfgFile, cfg
	t.Cleanup(func() {
		cfgFile, cfg = oldFile, oldCfg
		viper.Reset()
	})
	viper.Reset()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))
	cfgFile = path
	t.Setenv("ANTRAIL_SERVER_URL", "http://backend.test:8080")

	initConfig()

	require.Equal(t, path, configPath())
	require.Equal(t, "http://backend.test:8080", cfg.Server.URL)
	require.Equal(t, config.DefaultParams().NumAnts, cfg.Defaults.NumAnts)
	require.NotEmpty(t, cfg.Tracing.FilePath)
	require.NoError(t, config.Validate(cfg))
}
