package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/franz/top-movies/internal/library"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search the movie database by title",
	Long: `Search the movie database and print every candidate with its catalog id.

Pass a catalog id to 'topmovies add' to import it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var addCmd = &cobra.Command{
	Use:   "add <catalog-id>",
	Short: "Import a movie from the movie database",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var rateCmd = &cobra.Command{
	Use:   "rate <id> <rating> [review]",
	Short: "Rate and review a movie on the list",
	Long: `Set the rating (0 to 10, e.g. 7.5) and an optional review of a movie.

The id is the local id shown by 'topmovies list'.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runRate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a movie from the list",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	title := strings.Join(args, " ")
	candidates, err := a.lib.Search(cmd.Context(), title)
	if err != nil {
		return err
	}

	if len(candidates) == 0 {
		util.WarnLog("No movies matched %q", title)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATALOG ID\tTITLE\tRELEASED")
	for _, c := range candidates {
		fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, util.Truncate(c.Title, 60), c.ReleaseDate)
	}
	return w.Flush()
}

func runAdd(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.lib.Import(cmd.Context(), args[0])
	if err != nil {
		var le *library.Error
		if errors.As(err, &le) && le.Kind == library.KindDuplicate && le.ExistingID != 0 {
			return fmt.Errorf("already on the list as movie %d", le.ExistingID)
		}
		return err
	}

	util.SuccessLog("Added as movie %d. Rate it with 'topmovies rate %d <rating>'", id, id)
	return nil
}

func runRate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	review := ""
	if len(args) == 3 {
		review = args[2]
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.lib.Edit(cmd.Context(), id, args[1], review); err != nil {
		return err
	}

	util.SuccessLog("Rated movie %d", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.lib.Delete(cmd.Context(), id); err != nil {
		return err
	}

	util.SuccessLog("Deleted movie %d", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", s)
	}
	return id, nil
}
