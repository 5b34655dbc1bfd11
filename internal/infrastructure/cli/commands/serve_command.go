package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/doeshing/hookgate/internal/app"
	"github.com/doeshing/hookgate/internal/domain"
	"github.com/doeshing/hookgate/internal/infrastructure/cli/helpers"
	"github.com/doeshing/hookgate/internal/infrastructure/hookio"
)

// NewServeCommand keeps the engine resident: one event per stdin line, one
// decision per stdout line, with the rule document reloaded on change.
func NewServeCommand(rt *Runtime) *cobra.Command {
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Evaluate a JSON-lines event stream with rule hot reload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := rt.Container(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), container, cmd.InOrStdin(), cmd.OutOrStdout(), !noWatch)
		},
	}

	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Do not reload the rule document when it changes")
	return cmd
}

func serve(ctx context.Context, container *app.Container, in io.Reader, out io.Writer, watch bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if watch {
		g.Go(func() error {
			if err := container.Rules.Watch(gctx); err != nil {
				container.Logger.Warn("rule hot reload unavailable", map[string]interface{}{
					"path":  container.Rules.Path(),
					"error": err.Error(),
				})
			}
			return nil
		})
	}

	// The reader runs outside the group: a Read blocked on an idle host must
	// not keep serve alive once the output side has failed. Readers that can
	// be closed are closed on the way out to release it.
	if closer, ok := in.(io.Closer); ok {
		stop := context.AfterFunc(gctx, func() { _ = closer.Close() })
		defer stop()
	}
	lines := make(chan []byte)
	var scanErr error
	go func() {
		defer close(lines)
		scanner := helpers.NewLineScanner(in)
		for scanner.Scan() {
			line := bytes.Clone(bytes.TrimSpace(scanner.Bytes()))
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- line:
			case <-gctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	g.Go(func() error {
		// Input ended or failed; stop the watcher either way.
		defer cancel()
		enc := json.NewEncoder(out)
		for {
			var line []byte
			select {
			case l, ok := <-lines:
				if !ok {
					return scanErr
				}
				line = l
			case <-gctx.Done():
				return nil
			}
			decision := domain.Allow()
			if ev, err := hookio.ParseEvent(line); err != nil {
				container.Logger.Warn("invalid event, allowing", map[string]interface{}{"error": err.Error()})
			} else {
				decision = container.EvalService.Evaluate(gctx, ev)
			}
			if err := enc.Encode(hookio.NewResponse(decision)); err != nil {
				return err
			}
		}
	})

	return g.Wait()
}
