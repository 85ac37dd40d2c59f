package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newMappingsCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List the loaded field mappings in declaration order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := o.session(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			table := a.Mappings.Load(ctx)
			if err := a.Mappings.Err(); err != nil {
				red.Fprintf(out, "✗ mapping table failed to load: %v\n", err)
			}

			for _, rule := range table.Rules() {
				bold.Fprintf(out, "%-20s", rule.Key)
				fmt.Fprintf(out, " -> %s", rule.Mapping.ProfileField)
				if rule.Mapping.Type != "" {
					dim.Fprintf(out, " [%s]", rule.Mapping.Type)
				}
				if rule.Fuzzy() {
					dim.Fprintf(out, " keywords: %s", strings.Join(rule.Keywords(), ", "))
				}
				fmt.Fprintln(out)
				for _, issue := range rule.Issues() {
					yellow.Fprintf(out, "    ! %s\n", issue)
				}
			}
			cyan.Fprintf(out, "%d mappings (%s)\n", table.Len(), a.Mappings.State())
			return nil
		},
	}
}
