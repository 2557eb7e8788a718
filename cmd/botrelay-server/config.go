package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/muurk/botrelay/internal/config"
	"github.com/muurk/botrelay/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server config file",
}

var (
	initPath  string
	initForce bool
	showPath  string
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Example: `  # Write to the user config dir
  botrelay-server config init

  # Write somewhere else, replacing any existing file
  botrelay-server config init --path ./botrelay.yaml --force`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(showPath)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().StringVar(&initPath, "path", "", "Where to write the file (default: user config dir)")
	configInitCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file without asking")
	configShowCmd.Flags().StringVar(&showPath, "config", "", "Path to config file (default: user config dir)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	printer := ui.NewPrinter(cmd.OutOrStdout())

	overwrite := initForce
	if !overwrite && ui.IsTerminal() {
		if path, err := resolveInitPath(); err == nil {
			if _, err := os.Stat(path); err == nil {
				if !ui.Confirm(cmd.InOrStdin(), cmd.OutOrStdout(), path+" exists. Overwrite?") {
					printer.PrintWarning("Config file left unchanged", map[string]string{"Path": path})
					return nil
				}
				overwrite = true
			}
		}
	}

	path, err := config.WriteDefault(initPath, overwrite)
	if err != nil {
		printer.PrintError("Could not write config file", err, []string{
			"Use --force to replace an existing file",
			"Use --path to write somewhere else",
		})
		return err
	}

	printer.PrintSuccess("Config file written", map[string]string{"Path": path})
	return nil
}

func resolveInitPath() (string, error) {
	if initPath != "" {
		return initPath, nil
	}
	return config.GetConfigPath()
}
