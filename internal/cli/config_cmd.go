// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/cortex/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit configuration",
	}
	cmd.AddCommand(
		newConfigShowCommand(opts),
		newConfigPathCommand(opts),
		newConfigGetCommand(opts),
		newConfigSetCommand(opts),
		&cobra.Command{
			Use:   "keys",
			Short: "List every settable key",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				for _, k := range config.Keys() {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
			},
		},
	)
	return cmd
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (API keys redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), e.cfg.Redacted(), format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "toml", "toml, json or yaml")
	return cmd
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch strings.ToLower(format) {
	case "toml":
		return toml.NewEncoder(w).Encode(cfg)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	default:
		return usageErrorf("unknown format %q (want toml, json or yaml)", format)
	}
}

// targetPath returns the file config edits go to.
func (o *rootOptions) targetPath(loaded string) (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	if loaded != "" {
		return loaded, nil
	}
	return config.ConfigPathTOML()
}

func newConfigPathCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			path, err := opts.targetPath(e.path)
			if err != nil {
				return err
			}
			if e.path == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (not created, using defaults)\n", path)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Print one setting",
		Example: "  cortex config get advanced.server_port",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			v, err := e.cfg.Redacted().Get(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newConfigSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Change one setting and save the config file",
		Example: "  cortex config set general.theme dark",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load()
			if err != nil {
				return err
			}
			cfg := e.cfg.Clone()
			if err := cfg.Set(args[0], args[1]); err != nil {
				return usageErrorf("%v", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			path, err := opts.targetPath(e.path)
			if err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return &CommandError{Command: "config", Action: "set", Err: err}
			}
			shown := args[1]
			if strings.HasPrefix(strings.ToLower(args[0]), "api_keys.") {
				shown = config.RedactedValue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (saved to %s)\n", args[0], shown, path)
			return nil
		},
	}
}
