package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var bioCmd = &cobra.Command{
	Use:   "bio",
	Short: "Manage the biographical lookup table",
}

var bioImportCmd = &cobra.Command{
	Use:   "import <players.csv>",
	Short: "Load biographical records from CSV",
	Long: `Load player records from a CSV file with a header row. Recognized columns:
player_id (required), name, birth_date, height_in, weight_lb, career_start.
Dates use YYYY-MM-DD. Existing records with the same player_id are replaced.`,
	Args: cobra.ExactArgs(1),
	RunE: runBioImport,
}

var bioShowCmd = &cobra.Command{
	Use:   "show <player-id>",
	Short: "Show one player's biographical record",
	Args:  cobra.ExactArgs(1),
	RunE:  runBioShow,
}

func init() {
	bioCmd.AddCommand(bioImportCmd)
	bioCmd.AddCommand(bioShowCmd)
}

func runBioImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.ImportBios(f)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Imported %d player records.\n", n)
	return nil
}

func runBioShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := db.GetBio(args[0])
	if err != nil {
		return fmt.Errorf("get bio: %w", err)
	}
	if b == nil {
		fmt.Fprintf(os.Stdout, "No biographical record for %s.\n", args[0])
		return nil
	}
	now := b.At(time.Now())
	fmt.Fprintf(os.Stdout, "%s (%s)\n", b.Name, b.PlayerID)
	fmt.Fprintf(os.Stdout, "  Born          : %s (age %.1f)\n", dateOrDash(b.BirthDate), now.AgeYears)
	fmt.Fprintf(os.Stdout, "  Height/weight : %d in / %d lb\n", b.HeightIn, b.WeightLb)
	fmt.Fprintf(os.Stdout, "  Career start  : %s (%.1f seasons)\n", dateOrDash(b.CareerStart), now.ExperienceYears)
	return nil
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("2006-01-02")
}
