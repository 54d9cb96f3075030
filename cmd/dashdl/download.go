package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/engine"
)

func newDownloadCmd() *cobra.Command {
	var opts muxOptions
	var doMux bool

	cmd := &cobra.Command{
		Use:   "download <video-url> <audio-url>",
		Short: "Download the video and audio streams of one session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			// We create a context that is cancelled when the user hits Ctrl+C
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr := newManager(appCtx, false)
			renderer := engine.NewProgressRenderer(os.Stderr, domain.StreamVideo, domain.StreamAudio)

			s, err := mgr.RunNow(ctx, args[0], args[1], renderer)
			if err != nil {
				if s != nil {
					return fmt.Errorf("session %s failed: %w", s.ID, err)
				}
				return err
			}

			v := s.View()
			fmt.Printf("Session %s complete\n  video: %s (%s)\n  audio: %s (%s)\n", v.ID,
				v.VideoPath, humanize.Bytes(uint64(v.Video.Done)),
				v.AudioPath, humanize.Bytes(uint64(v.Audio.Done)))

			if !doMux {
				return nil
			}
			if opts.ref == "" {
				opts.ref = v.ID
			}
			return runMux(ctx, appCtx, v.VideoPath, v.AudioPath, opts)
		},
	}

	cmd.Flags().BoolVar(&doMux, "mux", false, "run the muxer once both streams are complete")
	opts.bind(cmd)
	return cmd
}
