// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the sonoexport CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the sonoexport CLI.
var rootCmd = &cobra.Command{
	Use:   "sonoexport",
	Short: "Convert proprietary ultrasound scan archives to PNG",
	Long: `sonoexport converts proprietary ultrasound scan archives into PNG images.

Scan files (.usr, .raw) are HDF5 containers holding the acquisition frame,
a title-bar preview bitmap, and instrument settings. The convert command
walks a directory tree, extracts every image it can find, and mirrors the
source layout in the output directory. inspect shows the contents of a
single container; catalog maintains a searchable SQLite index of an
archive.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./sonoexport.yaml or ~/.config/sonoexport/sonoexport.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sonoexport")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sonoexport"))
		}
	}

	viper.SetEnvPrefix("SONOEXPORT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
