package main

import (
	"os"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the settings file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	for _, cmd := range []*cobra.Command{installCmd, uninstallCmd, statusCmd} {
		cmd.Flags().StringP("source", "s", "repo", "Package source: repo, aur, flatpak, appimage or script")
		cmd.Flags().StringP("name", "n", "", "Display name (defaults to the id)")
	}
	for _, cmd := range []*cobra.Command{installCmd, uninstallCmd} {
		cmd.Flags().Bool("plain", false, "Stream output to the terminal instead of the interactive view")
	}

	rootCmd.AddCommand(versionCmd, installCmd, uninstallCmd, statusCmd, serveCmd)
}

func main() {
	// Block root
	if os.Geteuid() == 0 {
		log.Fatal("This program should not be run as root. Exiting.")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
