package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	httpapi "github.com/h2323547425/weenix/internal/api/http"
)

var newAPIServer = httpapi.NewServer

func newServeCmd(ctx *context) *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kernel with the diagnostics HTTP API enabled",
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

			enableAPI := apiEnabled()
			if cmd.Flags().Changed("api") {
				enableAPI = true
			}
			if !enableAPI {
				fmt.Fprintln(cmd.OutOrStdout(), "Diagnostics API disabled; set WEENIX_ENABLE_API=true or pass --api to enable.")
			}

			printer := newEventPrinter(cmd.OutOrStdout())
			unsubscribe := b.bus.SubscribeAll(printer.Enqueue)
			defer func() {
				unsubscribe()
				if dropped := printer.Close(); dropped > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: dropped %d events\n", dropped)
				}
			}()

			var stopAPI func() error
			if enableAPI {
				server, err := newAPIServer(httpapi.Config{Addr: apiAddr, Source: b.diagnostics()})
				if err != nil {
					return err
				}
				serverCtx, cancel := stdcontext.WithCancel(cmd.Context())
				errCh := make(chan error, 1)
				go func() {
					errCh <- server.Run(serverCtx)
				}()
				fmt.Fprintf(cmd.OutOrStdout(), "Diagnostics API listening on %s\n", server.Addr())
				stopAPI = func() error {
					cancel()
					return <-errCh
				}
			}

			if err := b.start(); err != nil {
				if stopAPI != nil {
					_ = stopAPI()
				}
				return err
			}

			runErr := b.await(cmd.Context())
			select {
			case <-b.kern.Done():
				flushShutdown(printer)
			default:
			}
			if stopAPI != nil {
				if err := stopAPI(); err != nil && runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "127.0.0.1:7311", "address for the diagnostics HTTP API (requires WEENIX_ENABLE_API or explicit flag)")
	return cmd
}

func apiEnabled() bool {
	value := strings.TrimSpace(os.Getenv("WEENIX_ENABLE_API"))
	if value == "" {
		return false
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return enabled
}
