package main

import (
	"fmt"
	"os"

	"github.com/franz/top-movies/internal/config"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "topmovies",
		Short: "Top Movies - rate, review and rank the movies you love",
		Long: `topmovies keeps a personal, ranked list of movies.

Search the movie database, import a title, give it a rating out of 10 and a
short review, and the list ranks itself. Run 'topmovies serve' for the web
app or use the other commands straight from the terminal.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json or ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database URI (sqlite:///movies.db or postgres://...)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored log levels")

	// Bind flags to viper
	viper.BindPFlag(config.KeyDatabaseURI, rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag(config.KeyVerbose, rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag(config.KeyQuiet, rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag(config.KeyNoColor, rootCmd.PersistentFlags().Lookup("no-color"))
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// config.json, config.yaml, ... in the working directory or ./configs
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("config")
	}

	config.BindEnv(viper.GetViper())

	util.SetVerbose(viper.GetBool(config.KeyVerbose))
	util.SetQuiet(viper.GetBool(config.KeyQuiet))
	if viper.GetBool(config.KeyNoColor) {
		util.SetColors(false)
	}

	if err := viper.ReadInConfig(); err == nil {
		util.DebugLog("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		util.WarnLog("Could not read config file %s: %v", cfgFile, err)
	}
}

func main() {
	err := rootCmd.Execute()
	util.SyncLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
