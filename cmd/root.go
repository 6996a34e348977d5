package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/config"
	"github.com/pable/go-pbp-metrics/internal/engine"
	"github.com/pable/go-pbp-metrics/internal/logger"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/requeue"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
	"github.com/pable/go-pbp-metrics/internal/storage"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pbpmetrics",
	Short: "Basketball play-by-play metrics engine",
	Long: `Reconstruct per-player and per-team box-score state from play-by-play
event streams, query it at any point or over any window of a game, and
verify it against authoritative box scores.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(intervalCmd)
	rootCmd.AddCommand(splitsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(bioCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(sqlCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(dropCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		c.Storage.Path = dbPath
	} else {
		dbPath = c.Storage.Path
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	logger.Init(c.Logging.Level, c.Logging.Format)
	cfg = c
	return nil
}

func openDB() (*storage.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return db, nil
}

// newEngine builds an engine over db from the loaded configuration. The
// returned func releases the reprocessing queue connection, if any.
func newEngine(db *storage.DB) (*engine.Engine, func(), error) {
	opts := []engine.Option{
		engine.WithPersister(db),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithThresholds(cfg.Thresholds()),
	}
	release := func() {}
	if cfg.Redis.URL != "" {
		q, closeFn, err := requeue.Dial(cfg.Redis.URL, cfg.Redis.Stream)
		if err != nil {
			return nil, nil, fmt.Errorf("connect reprocessing queue: %w", err)
		}
		opts = append(opts, engine.WithQueue(q))
		release = func() {
			if err := closeFn(); err != nil {
				logger.Warn("close redis: %v", err)
			}
		}
	}
	return engine.New(cfg.BoundaryRules(), opts...), release, nil
}

// lookupGame resolves a game id or unique prefix.
func lookupGame(db *storage.DB, idOrPrefix string) (*model.GameSummary, error) {
	g, err := db.GetGame(idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("query game: %w", err)
	}
	if g == nil {
		return nil, fmt.Errorf("no game found matching %q", idOrPrefix)
	}
	return g, nil
}

// entityRef builds the entity a command targets from its --player/--team flags.
func entityRef(playerID, teamID string) (model.EntityRef, error) {
	switch {
	case playerID != "" && teamID != "":
		return model.EntityRef{}, fmt.Errorf("use either --player or --team, not both")
	case playerID != "":
		return model.Player(playerID), nil
	case teamID != "":
		return model.Team(teamID), nil
	}
	return model.EntityRef{}, fmt.Errorf("one of --player or --team is required")
}

// finalSnapshots returns each entity's last snapshot, teams first.
func finalSnapshots(p *snapshot.Partition) []model.Snapshot {
	var teams, players []model.Snapshot
	for _, ref := range p.Entities() {
		s, ok := p.Last(ref)
		if !ok {
			continue
		}
		if ref.Kind == model.EntityTeam {
			teams = append(teams, s)
		} else {
			players = append(players, s)
		}
	}
	return append(teams, players...)
}

func rosterNames(db *storage.DB, gameID string) (map[string]string, error) {
	roster, err := db.GetRoster(gameID)
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	names := make(map[string]string, len(roster))
	for _, r := range roster {
		names[r.PlayerID] = r.Name
	}
	return names, nil
}

func entityName(names map[string]string, ref model.EntityRef) string {
	if ref.Kind == model.EntityPlayer && names[ref.ID] != "" {
		return names[ref.ID]
	}
	return ref.ID
}
