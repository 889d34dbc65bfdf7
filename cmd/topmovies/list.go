package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the ranked movie list",
	Long: `Run the ranking pass and print every movie, best first.

Unrated movies are listed last.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("reviews", false, "Include reviews")
}

func runList(cmd *cobra.Command, args []string) error {
	showReviews, _ := cmd.Flags().GetBool("reviews")

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	movies, err := a.lib.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(movies) == 0 {
		util.WarnLog("No movies yet. Add one with 'topmovies search <title>' and 'topmovies add <id>'.")
		return nil
	}

	printMovies(movies, showReviews)
	return nil
}

func printMovies(movies []*store.Movie, showReviews bool) {
	titleWidth := util.GetTerminalWidth() - 40
	if titleWidth < 20 {
		titleWidth = 20
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tTITLE\tYEAR\tRATING\tADDED")
	for _, m := range movies {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%s\n",
			rankString(m), m.ID, util.Truncate(m.Title, titleWidth), m.Year, ratingString(m), humanize.Time(m.CreatedAt))
		if showReviews && m.Review != "" {
			fmt.Fprintf(w, "\t\t  %q\t\t\t\n", util.Truncate(m.Review, titleWidth))
		}
	}
	w.Flush()
}

func rankString(m *store.Movie) string {
	if m.Ranking == nil {
		return "-"
	}
	return strconv.Itoa(*m.Ranking)
}

func ratingString(m *store.Movie) string {
	if !m.Rated() {
		return "unrated"
	}
	return strconv.FormatFloat(*m.Rating, 'f', -1, 64) + "/10"
}
