package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/engine"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/report"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
	"github.com/pable/go-pbp-metrics/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cMuted    = color.New(color.Faint)
	cError    = color.New(color.FgRed, color.Bold)
	cWarn     = color.New(color.FgYellow)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

// shellSession keeps one engine for the whole session so that games are
// loaded from the database at most once.
type shellSession struct {
	db  *storage.DB
	eng *engine.Engine
}

func runShell(_ *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	eng, release, err := newEngine(db)
	if err != nil {
		return err
	}
	defer release()
	s := &shellSession{db: db, eng: eng}

	cGreeting.Println("pbpmetrics shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("pbpmetrics")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		cmd, args := tokens[0], tokens[1:]

		var err error
		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "list":
			err = s.list()
		case "show":
			if len(args) == 0 {
				cError.Fprintln(os.Stderr, "usage: show <game> [<player>]")
				continue
			}
			focus := ""
			if len(args) > 1 {
				focus = args[1]
			}
			err = showGame(s.db, s.eng, args[0], focus)
		case "snap", "snapshot":
			if len(args) < 2 {
				cError.Fprintln(os.Stderr, "usage: snapshot <game> <entity> [<ordinal>]")
				continue
			}
			err = s.snapshot(args)
		case "interval":
			if len(args) != 3 {
				cError.Fprintln(os.Stderr, "usage: interval <game> <window> <entity>")
				continue
			}
			err = s.interval(args[0], args[1], args[2])
		case "splits":
			if len(args) != 3 {
				cError.Fprintln(os.Stderr, "usage: splits <game> <quarter|half|ot|ot-half|ot-minute|clutch> <entity>")
				continue
			}
			err = s.splits(args[0], args[1], args[2])
		case "verification":
			if len(args) != 1 {
				cError.Fprintln(os.Stderr, "usage: verification <game>")
				continue
			}
			err = s.verification(args[0])
		default:
			cWarn.Fprintf(os.Stderr, "unknown command %q, type 'help'\n", cmd)
		}
		if err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return nil
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"list", "list all stored games"},
		{"show <game> [<player>]", "box score, team ratings and advanced stats"},
		{"snapshot <game> <entity> [<ordinal>]", "cumulative state, final or as of an ordinal"},
		{"interval <game> <window> <entity>", "stats inside one window (q2, h1, ot1.h2, clutch, ...)"},
		{"splits <game> <kind> <entity>", "one row per quarter, half, overtime, ..."},
		{"verification <game>", "stored verification record"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-40s", r.cmd)
		fmt.Println(r.desc)
	}
	cMuted.Println("\n  entity: a player id, or team:<id>")
	fmt.Println()
}

// parseEntity reads "team:<id>" as a team and anything else as a player id.
func parseEntity(tok string) model.EntityRef {
	if id, ok := strings.CutPrefix(tok, "team:"); ok {
		return model.Team(id)
	}
	return model.Player(strings.TrimPrefix(tok, "player:"))
}

func (s *shellSession) list() error {
	games, err := s.db.ListGames()
	if err != nil {
		return err
	}
	if len(games) == 0 {
		cMuted.Println("No games stored yet.")
		return nil
	}
	report.PrintGameList(os.Stdout, games)
	return nil
}

func (s *shellSession) snapshot(args []string) error {
	game, err := lookupGame(s.db, args[0])
	if err != nil {
		return err
	}
	ref := parseEntity(args[1])
	at := snapshot.AtOrdinal(game.LastOrdinal)
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("ordinal %q: %w", args[2], err)
		}
		at = snapshot.AtOrdinal(n)
	}
	snap, ok, err := s.eng.Snapshot(game.GameID, ref, at)
	if err != nil {
		return err
	}
	if !ok {
		cMuted.Printf("no snapshot of %s at %s\n", ref, at)
		return nil
	}
	names, err := rosterNames(s.db, game.GameID)
	if err != nil {
		return err
	}
	report.PrintSnapshot(os.Stdout, snap, entityName(names, ref), nil)
	return nil
}

func (s *shellSession) interval(gameArg, windowArg, entityArg string) error {
	w, err := model.ParseWindow(windowArg)
	if err != nil {
		return err
	}
	game, err := lookupGame(s.db, gameArg)
	if err != nil {
		return err
	}
	st, ok, err := s.eng.Interval(game.GameID, parseEntity(entityArg), w)
	if err != nil {
		return err
	}
	if !ok {
		cMuted.Printf("game %s has no %s window\n", game.GameID, w)
		return nil
	}
	report.PrintInterval(os.Stdout, w.String(), st)
	return nil
}

func (s *shellSession) splits(gameArg, kindArg, entityArg string) error {
	kind, ok := splitKinds[kindArg]
	if !ok || kind == model.WindowBucket {
		return fmt.Errorf("unknown split kind %q", kindArg)
	}
	game, err := lookupGame(s.db, gameArg)
	if err != nil {
		return err
	}
	splits, err := s.eng.Splits(game.GameID, parseEntity(entityArg), kind, 0)
	if err != nil {
		return err
	}
	report.PrintSplits(os.Stdout, splits)
	return nil
}

func (s *shellSession) verification(gameArg string) error {
	game, err := lookupGame(s.db, gameArg)
	if err != nil {
		return err
	}
	rec, ok, err := s.eng.Verification(game.GameID)
	if err != nil {
		return err
	}
	if !ok {
		cMuted.Printf("game %s has not been verified\n", game.GameID)
		return nil
	}
	report.PrintVerification(os.Stdout, rec, false)
	return nil
}
