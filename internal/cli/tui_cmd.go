package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/h2323547425/weenix/internal/kevent"
	"github.com/h2323547425/weenix/internal/tui"
)

func newTuiCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Boot the kernel and watch the process table interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !supportsInteractiveOutput(cmd) {
				return fmt.Errorf("tui requires an interactive terminal")
			}

			m, err := ctx.loadManifest()
			if err != nil {
				return err
			}
			// The UI owns the screen: kernel log text goes to the ring only
			// (the dmesg pane renders it) and console echo is swallowed.
			b, err := bootKernel(m, io.Discard, io.Discard)
			if err != nil {
				return err
			}

			ui := tui.New(b.diagnostics())
			unsubscribe := b.bus.SubscribeAll(func(ev kevent.Event) {
				select {
				case ui.EventSink() <- ev:
				default:
				}
			})
			defer unsubscribe()

			if err := b.start(); err != nil {
				return err
			}
			go func() {
				<-b.kern.Done()
				ui.Stop()
			}()

			runErr := ui.Run(cmd.Context())
			ui.CloseEvents()

			// Quitting the UI tears the kernel down like an interrupt would.
			b.cancelOrdinaries()
			if !b.kern.WaitShutdown(shutdownGrace) {
				return fmt.Errorf("kernel did not shut down within %s", shutdownGrace)
			}
			if runErr != nil {
				return runErr
			}
			return b.kern.Err()
		},
	}
	return cmd
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
