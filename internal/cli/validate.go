package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h2323547425/weenix/internal/klog"
	"github.com/h2323547425/weenix/internal/prog"
)

func newValidateCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the boot manifest and print the resolved boot plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			if _, err := klog.ParseLevel(m.Kernel.LogLevel); err != nil {
				return err
			}
			plan, err := resolveBoot(prog.Defaults(prog.Env{}), m.Boot)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest %s is valid\n", *ctx.configFile)
			fmt.Fprintf(out, "Kernel: maxProcs=%d maxFiles=%d\n", m.Kernel.MaxProcs, m.Kernel.MaxFiles)
			if len(plan) == 0 {
				fmt.Fprintln(out, "Boot plan is empty; init exits immediately.")
				return nil
			}
			fmt.Fprintln(out, "Boot plan:")
			for i, e := range plan {
				fmt.Fprintf(out, "  %d. %s\n", i+1, e.Name)
			}
			return nil
		},
	}
	return cmd
}
