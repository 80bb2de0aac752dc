package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stylus/stylus/internal/daemon"
)

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install stylus as a systemd user service",
	Long: `Install stylus as a systemd user service that starts automatically on login.

This command will:
  - Generate a systemd unit file for the stylus daemon
  - Install it to ~/.config/systemd/user/
  - Enable and start the service with systemctl --user

The daemon will run in the background and scrobble whatever the
connectors report.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		unit, err := daemon.GenerateUnit(daemon.UnitConfig{BinaryPath: binaryPath})
		if err != nil {
			return fmt.Errorf("failed to generate unit: %w", err)
		}

		unitPath, err := daemon.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
			return fmt.Errorf("failed to create systemd user directory: %w", err)
		}

		if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		if err := systemctl("daemon-reload"); err != nil {
			return err
		}
		if err := systemctl("enable", "--now", "stylus.service"); err != nil {
			return err
		}

		fmt.Println("✓ Service enabled and started")
		fmt.Println("\nThe stylus daemon is now running and will start automatically on login.")
		fmt.Println("\nYou can check the daemon status with:")
		fmt.Println("  systemctl --user status stylus")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  stylus uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// systemctl runs a systemctl --user subcommand, surfacing its output on
// failure.
func systemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("systemctl --user %s failed: %s",
				strings.Join(args, " "), strings.TrimSpace(string(output)))
		}
		return fmt.Errorf("failed to run systemctl --user %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
