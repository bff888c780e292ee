package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shehryarbajwa/railbook/internal/profile"
)

func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect and delete stored browser profiles",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored profiles",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openProfiles()
				if err != nil {
					return err
				}
				profiles, err := m.List()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(profiles) == 0 {
					fmt.Fprintln(w, "no stored profiles")
					return nil
				}
				for _, p := range profiles {
					fmt.Fprintf(w, "%-20s %10d  %s\n", p.Name, p.Size, p.UpdatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <name>",
			Short: "Print one profile as JSON",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openProfiles()
				if err != nil {
					return err
				}
				p, err := m.Get(args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(p)
			},
		},
		&cobra.Command{
			Use:   "delete <name>",
			Short: "Delete a stored profile so the next browser starts signed out",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := openProfiles()
				if err != nil {
					return err
				}
				if err := m.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted profile %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

func openProfiles() (*profile.Manager, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	if cfg.ProfileDir == "" {
		return nil, errors.New("PROFILE_DIR is not set, profile persistence is disabled")
	}
	return profile.NewManager(cfg.ProfileDir)
}
