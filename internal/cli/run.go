package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel and run the manifest's programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			b, err := bootKernel(m, cmd.ErrOrStderr(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			printer := newEventPrinter(cmd.OutOrStdout())
			unsubscribe := b.bus.SubscribeAll(printer.Enqueue)
			defer func() {
				unsubscribe()
				if dropped := printer.Close(); dropped > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: dropped %d events\n", dropped)
				}
			}()

			if err := b.start(); err != nil {
				return err
			}
			runErr := b.await(cmd.Context())
			select {
			case <-b.kern.Done():
				flushShutdown(printer)
			default:
			}
			return runErr
		},
	}
	return cmd
}
