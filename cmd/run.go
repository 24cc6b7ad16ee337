package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/antrail/internal/artifact"
	"github.com/zjrosen/antrail/internal/capability"
	"github.com/zjrosen/antrail/internal/config"
	"github.com/zjrosen/antrail/internal/log"
	"github.com/zjrosen/antrail/internal/params"
	"github.com/zjrosen/antrail/internal/session"
)

// unlockWait bounds how long artifact saving waits for the capability
// controller to observe a completion.
const unlockWait = 2 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the optimizer without the TUI",
	Long: `Load an instance, start a run or a batch and print the activity journal
to stdout until the session ends. Parameters default to the config file.`,
	Example: `  antrail run --instance berlin52
  antrail run --seed "[0, 3, 1, 2]" --ants 50
  antrail run --batch --runs 10 --save-artifacts`,
	Args: cobra.NoArgs,
	RunE: runHeadless,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("seed", "", "seed solution, e.g. \"[0, 3, 1, 2]\"")
	f.Bool("batch", false, "run a batch instead of a single run")
	f.Bool("save-artifacts", false, "save the session's figures and plots to artifacts.save_dir")
	f.String("alpha", "", "pheromone influence")
	f.String("beta", "", "heuristic influence")
	f.String("evaporation", "", "evaporation rate in [0, 1]")
	f.String("q", "", "pheromone deposit")
	f.String("ants", "", "number of ants")
	f.String("iterations", "", "number of iterations")
	f.Int("runs", 0, "expected batch size, for progress only")
	cmd.MarkFlagsMutuallyExclusive("seed", "batch")
}

// headlessInput collects the launch mode and raw parameters from flags,
// falling back to the config defaults for anything not given.
func headlessInput(cmd *cobra.Command, d config.ParamDefaults) (session.Mode, params.RawInput, int, error) {
	f := cmd.Flags()
	batch, _ := f.GetBool("batch")
	seeded := f.Changed("seed")
	if batch && seeded {
		return "", params.RawInput{}, 0, errors.New("--seed and --batch cannot be combined")
	}

	raw := d.Raw(seeded)
	override := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	override("alpha", &raw.Alpha)
	override("beta", &raw.Beta)
	override("evaporation", &raw.Evaporation)
	override("q", &raw.Q)
	override("ants", &raw.NumAnts)
	override("iterations", &raw.NumIterations)
	if seeded {
		seed, _ := f.GetString("seed")
		raw.SeedSolution = &seed
	}

	runs := d.ExpectedRuns
	if f.Changed("runs") {
		runs, _ = f.GetInt("runs")
		if runs < 0 {
			return "", params.RawInput{}, 0, fmt.Errorf("--runs must not be negative, got %d", runs)
		}
	}

	switch {
	case batch:
		return session.ModeBatch, raw, runs, nil
	case seeded:
		return session.ModeSeeded, raw, runs, nil
	}
	return session.ModeRun, raw, runs, nil
}

func runHeadless(cmd *cobra.Command, args []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	mode, raw, runs, err := headlessInput(cmd, cfg.Defaults)
	if err != nil {
		return err
	}
	if cfg.Server.Instance == "" {
		return errors.New("no instance: pass --instance or set server.instance")
	}

	cleanup, err := initDebugLog(false)
	if err != nil {
		return fmt.Errorf("opening debug log: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Close(shutdownCtx); err != nil {
			log.Warn(log.CatSession, "shutdown", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	followCtx, stopFollow := context.WithCancel(context.Background())
	followed := svc.journal.Follow(followCtx, out)
	defer func() {
		stopFollow()
		<-followed
	}()

	if _, err := svc.loader.Load(ctx, cfg.Server.Instance); err != nil {
		return err
	}

	svc.manager.SetExpectedRuns(runs)
	s, err := svc.manager.Launch(ctx, mode, raw)
	if err != nil {
		return err
	}
	if err := s.Wait(ctx); err != nil {
		return err
	}
	if s.State() != session.Completed {
		return fmt.Errorf("%s ended %s", s.Kind(), s.State())
	}

	if cfg.UI.RememberInput && configPath() != "" {
		if ps, err := params.Validate(raw); err == nil {
			if err := config.SaveDefaults(configPath(), cfg.Defaults.FromParams(ps)); err != nil {
				log.Warn(log.CatConfig, "saving defaults", "error", err)
			}
		}
	}

	if save, _ := cmd.Flags().GetBool("save-artifacts"); save {
		return saveArtifacts(ctx, svc, s)
	}
	return nil
}

// saveArtifacts writes everything the finished session unlocked into the
// configured save directory.
func saveArtifacts(ctx context.Context, svc *services, s session.Session) error {
	if err := awaitUnlock(ctx, svc.controller, capability.ViewStatistics); err != nil {
		return err
	}

	var views []artifact.View
	load := func(kind artifact.Kind) error {
		v, err := svc.canvas.Load(ctx, svc.requester, kind)
		if err != nil {
			return err
		}
		views = append(views, v)
		return nil
	}

	switch s := s.(type) {
	case *session.RunSession:
		for _, kind := range artifact.Kinds {
			if err := load(kind); err != nil {
				return err
			}
		}
	case *session.BatchSession:
		if ref := s.ArtifactRef(); ref != "" {
			v, err := svc.canvas.LoadAggregate(ctx, svc.requester, ref)
			if err != nil {
				return err
			}
			views = append(views, v)
		}
	}

	for _, v := range views {
		path, err := v.Save(cfg.Artifacts.SaveDir)
		if err != nil {
			return fmt.Errorf("saving %s: %w", v.Kind, err)
		}
		svc.journal.Printf("Saved %s to %s", v.Describe(), path)
	}
	return nil
}

// awaitUnlock waits for c to unlock k. Completion is observed
// asynchronously, so Wait returning does not imply the unlock happened yet.
func awaitUnlock(ctx context.Context, c *capability.Controller, k capability.Capability) error {
	ctx, cancel := context.WithTimeout(ctx, unlockWait)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.Unlocked(k) {
			return nil
		}
		select {
		case <-ctx.Done():
			return c.Require(k)
		case <-ticker.C:
		}
	}
}
