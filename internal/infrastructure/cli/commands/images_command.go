package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/doeshing/mindtrail/internal/app"
	"github.com/doeshing/mindtrail/internal/domain"
)

// NewImagesCommand creates the images command with all subcommands
func NewImagesCommand(provide ContainerProvider) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:   "images",
		Short: "Look up and preload related images",
	}

	imagesCmd.AddCommand(
		newImagesRelatedCommand(provide),
		newImagesPreloadCommand(provide),
		newImagesStatsCommand(provide),
	)

	return imagesCmd
}

// newImagesRelatedCommand creates the 'images related' subcommand
func newImagesRelatedCommand(provide ContainerProvider) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "related <keyword>",
		Short: "Find images for a keyword and warm the cache",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := imageContainer(provide)
			if err != nil {
				return err
			}
			keyword := strings.Join(args, " ")
			refs := container.ImageSearch.RelatedImages(cmd.Context(), keyword)
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), MsgNoRelatedImages)
				return nil
			}
			if !waitFor(container.ImageSearch.Wait, wait) {
				fmt.Fprintf(cmd.ErrOrStderr(), "preload still running after %s\n", wait)
			}
			printResolved(cmd.OutOrStdout(), container, domain.ImageRequestsFor(keyword, refs))
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", DefaultRelatedWait, "How long to wait for preloading")
	return cmd
}

// newImagesPreloadCommand creates the 'images preload' subcommand
func newImagesPreloadCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "preload <key=url>...",
		Short: "Resolve references in bounded groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := imageContainer(provide)
			if err != nil {
				return err
			}
			requests, err := parsePreloadArgs(args)
			if err != nil {
				return err
			}
			container.ImageCache.PreloadBatch(cmd.Context(), requests)
			printResolved(cmd.OutOrStdout(), container, requests)
			return nil
		},
	}
}

// newImagesStatsCommand creates the 'images stats' subcommand
func newImagesStatsCommand(provide ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show image cache counters for this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := imageContainer(provide)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved entries: %d\n", container.ImageCache.Size())
			return writeMetrics(cmd.OutOrStdout(), container.Registry)
		},
	}
}

func imageContainer(provide ContainerProvider) (*app.Container, error) {
	container, err := provide()
	if err != nil {
		return nil, err
	}
	if container.ImageCache == nil || container.ImageSearch == nil {
		return nil, errors.New(ErrImagesUnavailable)
	}
	return container, nil
}

// parsePreloadArgs splits key=url arguments
func parsePreloadArgs(args []string) ([]domain.ImageRequest, error) {
	requests := make([]domain.ImageRequest, 0, len(args))
	for _, arg := range args {
		key, ref, ok := strings.Cut(arg, "=")
		key, ref = strings.TrimSpace(key), strings.TrimSpace(ref)
		if !ok || key == "" || ref == "" {
			return nil, fmt.Errorf(ErrInvalidPreloadPair, arg)
		}
		requests = append(requests, domain.ImageRequest{Key: key, Reference: ref})
	}
	return requests, nil
}

func printResolved(out io.Writer, container *app.Container, requests []domain.ImageRequest) {
	for _, req := range requests {
		value, ok := container.ImageCache.Lookup(req.Key)
		if !ok {
			value = req.Reference + " (pending)"
		}
		fmt.Fprintf(out, "%s\t%s\n", req.Key, value)
	}
}

// waitFor runs wait in the background and reports whether it returned within d.
func waitFor(wait func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// writeMetrics prints every counter in reg as name{labels} value
func writeMetrics(out io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}
