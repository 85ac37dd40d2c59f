package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/profile"
)

func newProfileCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit the stored profile",
	}
	cmd.AddCommand(newProfileShowCommand(o))
	cmd.AddCommand(newProfileExportCommand(o))
	cmd.AddCommand(newProfileImportCommand(o))
	cmd.AddCommand(newProfileClearCommand(o))
	cmd.AddCommand(newProfileSetCommand(o))
	return cmd
}

// withProfiles runs fn against the configured profile store.
func (o *Options) withProfiles(ctx context.Context, fn func(*profile.Manager) error) error {
	a, err := o.session(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Profiles)
}

func newProfileShowCommand(o *Options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the profile grouped by section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withProfiles(cmd.Context(), func(m *profile.Manager) error {
				printProfile(cmd.OutOrStdout(), m.Get(cmd.Context()), all)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include empty fields")
	return cmd
}

func printProfile(out io.Writer, p domain.Profile, all bool) {
	if p.IsEmpty() {
		yellow.Fprintln(out, "No profile data found. Set fields with 'jobfill profile set' or 'jobfill profile import'.")
		if !all {
			return
		}
	}

	section := ""
	for _, f := range domain.ProfileSchema {
		v, ok := p.Value(f.Name)
		if !ok && !all {
			continue
		}
		if f.Section != section {
			section = f.Section
			cyan.Fprintf(out, "%s\n", section)
		}
		bold.Fprintf(out, "  %-18s", f.Name)
		if !ok {
			dim.Fprintln(out, "-")
			continue
		}
		fmt.Fprintln(out, domain.FormatValue(v))
	}
}

func newProfileExportCommand(o *Options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the profile as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withProfiles(cmd.Context(), func(m *profile.Manager) error {
				data, err := m.Export(cmd.Context())
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if output == "" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("writing %s: %w", output, err)
				}
				green.Fprintf(cmd.ErrOrStderr(), "✓ Profile exported to %s\n", output)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

func newProfileImportCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the profile with a JSON document (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			return o.withProfiles(cmd.Context(), func(m *profile.Manager) error {
				if err := m.Import(cmd.Context(), data); err != nil {
					return err
				}
				green.Fprintln(cmd.OutOrStdout(), "✓ Profile imported")
				return nil
			})
		},
	}
}

func newProfileClearCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withProfiles(cmd.Context(), func(m *profile.Manager) error {
				if err := m.Clear(cmd.Context()); err != nil {
					return err
				}
				green.Fprintln(cmd.OutOrStdout(), "✓ Profile cleared")
				return nil
			})
		},
	}
}

func newProfileSetCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <field> <value>",
		Short: "Set one profile field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withProfiles(cmd.Context(), func(m *profile.Manager) error {
				if err := m.UpdateField(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				green.Fprintf(cmd.OutOrStdout(), "✓ %s updated\n", args[0])
				return nil
			})
		},
	}
}
