package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitaradio/client"
	"pitaradio/core/playback"
	"pitaradio/logger"
	"pitaradio/model"

	"github.com/spf13/cobra"
)

var (
	listenServer   string
	listenGenre    string
	listenDuration time.Duration
	listenTracks   int
	listenClap     bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run a headless listener against a server",
	Long: `Tune into a genre like the web player would: weighted picks, play and clap reports.
Each track "plays" for --track-duration, then the next one is picked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := client.NewClient(listenServer)
		player := playback.NewPlayer(api, logOutput{}, api, playback.WithObserver(func(tr playback.Transition) {
			var trackID int64
			if tr.Track != nil {
				trackID = tr.Track.ID
			}
			logger.Debug("Player transition",
				logger.String("from", tr.From.String()),
				logger.String("to", tr.To.String()),
				logger.Int64("trackId", trackID))
		}))
		defer player.Wait()

		if err := player.SelectGenre(ctx, listenGenre); err != nil {
			return err
		}

		for played := 0; listenTracks <= 0 || played < listenTracks; played++ {
			if player.State() == playback.Idle {
				logger.Info("Nothing to play", logger.String("genre", listenGenre))
				return nil
			}
			if listenClap {
				if _, err := player.Clap(); err != nil {
					return err
				}
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(listenDuration):
			}

			if err := player.OnTrackEnded(ctx, int64(listenDuration/time.Second)); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
		return nil
	},
}

// logOutput stands in for an audio device.
type logOutput struct{}

func (logOutput) Play(ctx context.Context, t model.TrackView) error {
	logger.Info("Now playing",
		logger.Int64("trackId", t.ID),
		logger.String("title", t.Title),
		logger.String("artist", t.Artist),
		logger.Int64("claps", t.ClapCount))
	return nil
}

func (logOutput) Pause() error  { return nil }
func (logOutput) Resume() error { return nil }

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&listenServer, "server", "http://localhost:8080", "radio server base URL")
	listenCmd.Flags().StringVarP(&listenGenre, "genre", "g", "", "genre to tune into (required)")
	listenCmd.Flags().DurationVar(&listenDuration, "track-duration", 30*time.Second, "simulated length of each track")
	listenCmd.Flags().IntVar(&listenTracks, "tracks", 0, "stop after this many tracks (0 = until interrupted)")
	listenCmd.Flags().BoolVar(&listenClap, "clap", false, "clap once for every track")
	listenCmd.MarkFlagRequired("genre")
}
