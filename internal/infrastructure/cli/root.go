package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/mindtrail/internal/app"
	"github.com/doeshing/mindtrail/internal/infrastructure/cli/commands"
	configinfra "github.com/doeshing/mindtrail/internal/infrastructure/config"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

// session builds the container on first use, so that --config is honoured
// and config commands work on a broken file, and releases it once the
// command has finished.
type session struct {
	ctx        context.Context
	configPath string
	verbose    bool
	container  *app.Container
}

func (s *session) provide() (*app.Container, error) {
	if s.container != nil {
		return s.container, nil
	}
	c, err := app.BuildContainer(s.ctx, app.Options{Verbose: s.verbose, ConfigPath: s.configPath})
	if err != nil {
		return nil, err
	}
	s.container = c
	return c, nil
}

func (s *session) loader() *configinfra.FileLoader {
	return configinfra.NewFileLoader(s.configPath)
}

// Close waits for background work and releases storage. It is safe to call
// when no container was built and when the command failed.
func (s *session) Close() error {
	if s.container == nil {
		return nil
	}
	c := s.container
	s.container = nil
	return c.Close()
}

// NewRootCmd wires the cobra root command. The returned closer must be
// called after Execute regardless of its result.
func NewRootCmd(ctx context.Context, opts Options) (*cobra.Command, io.Closer) {
	sess := &session{ctx: ctx, verbose: opts.Verbose}

	root := &cobra.Command{
		Use:           "mindtrail",
		Short:         "mindtrail - action history and related-image cache",
		Long:          "mindtrail keeps a bounded, retention-managed log of assistant actions and resolves related images with a de-duplicating cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&sess.configPath, "config", "", "Config file (default ~/.mindtrail/config.yaml, or $MINDTRAIL_CONFIG)")
	root.PersistentFlags().BoolVarP(&sess.verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(commands.NewHistoryCommand(sess.provide))
	root.AddCommand(commands.NewImagesCommand(sess.provide))
	root.AddCommand(commands.NewConfigCommand(sess.loader))
	root.AddCommand(commands.NewVersionCommand())
	return root, sess
}
