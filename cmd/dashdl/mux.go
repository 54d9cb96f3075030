package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/mux"
	"github.com/datallboy/dashdl/internal/platform"
)

type muxOptions struct {
	owner string
	title string
	ref   string
}

func (o *muxOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.owner, "owner", "", "uploader name, used as the output sub directory")
	cmd.Flags().StringVar(&o.title, "title", "", "video title, used in the output file name")
	cmd.Flags().StringVar(&o.ref, "ref", "", "video reference appended to the file name (default: session id)")
}

func newMuxCmd() *cobra.Command {
	var opts muxOptions
	var videoPath, audioPath string

	cmd := &cobra.Command{
		Use:   "mux [session-id]",
		Short: "Combine downloaded video and audio into one file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appCtx, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				v, err := appCtx.Store.GetSession(args[0])
				if err != nil {
					return fmt.Errorf("session %s: %w", args[0], err)
				}
				if v.Status != domain.StatusCompleted {
					return fmt.Errorf("session %s is %s, not completed", v.ID, v.Status)
				}
				videoPath, audioPath = v.VideoPath, v.AudioPath
				if opts.ref == "" {
					opts.ref = v.ID
				}
			}

			if videoPath == "" || audioPath == "" {
				return errors.New("pass a session id or both --video and --audio")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runMux(ctx, appCtx, videoPath, audioPath, opts)
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "video sink to mux")
	cmd.Flags().StringVar(&audioPath, "audio", "", "audio sink to mux")
	opts.bind(cmd)
	return cmd
}

// newRunner resolves the configured muxer binary.
func newRunner(appCtx *app.Context) (*mux.Runner, error) {
	cfg := appCtx.Config.Mux
	bin, err := platform.LookupMuxer(cfg.Binary)
	if err != nil {
		return nil, err
	}
	return mux.New(bin, cfg.Args, cfg.OutputEncoding)
}

func runMux(ctx context.Context, appCtx *app.Context, videoPath, audioPath string, opts muxOptions) error {
	runner, err := newRunner(appCtx)
	if err != nil {
		return err
	}

	out, err := mux.OutputPath(appCtx.Config.Mux.OutputDir, opts.owner, opts.title, opts.ref)
	if err != nil {
		return err
	}

	appCtx.Logger.Info("Muxing %s + %s -> %s", videoPath, audioPath, out)

	res, err := runner.Run(ctx, mux.Job{Video: videoPath, Audio: audioPath, Output: out}, func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		return err
	}

	if res.ExitCode != 0 {
		return fmt.Errorf("muxer exited with code %d", res.ExitCode)
	}
	fmt.Printf("Mux finished: %s\n", out)
	return nil
}
