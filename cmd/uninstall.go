package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/daemon"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the stylus systemd user service",
	Long: `Stop the stylus daemon and remove its systemd user service.

This command will:
  - Stop the running daemon (if any)
  - Disable the service
  - Remove the unit file from ~/.config/systemd/user/

After uninstalling, the daemon will no longer start automatically on login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		// Check if the unit exists
		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Service is not installed (unit file not found)")
			return nil
		}

		fmt.Println("Stopping daemon...")
		if err := systemctl("disable", "--now", "stylus.service"); err != nil {
			fmt.Printf("Warning: %v\n", err)
			fmt.Println("Continuing with unit file removal...")
		} else {
			fmt.Println("✓ Daemon stopped")
		}

		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)

		if err := systemctl("daemon-reload"); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		fmt.Println("\nThe stylus service has been uninstalled.")
		fmt.Println("To reinstall, run:")
		fmt.Println("  stylus install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
