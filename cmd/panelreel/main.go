package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minawa/panelreel/internal/assets"
	"github.com/minawa/panelreel/internal/compositor"
	"github.com/minawa/panelreel/internal/config"
	"github.com/minawa/panelreel/internal/editor"
	"github.com/minawa/panelreel/internal/export"
	"github.com/minawa/panelreel/internal/gui"
	"github.com/minawa/panelreel/internal/logging"
	"github.com/minawa/panelreel/internal/persist"
	"github.com/minawa/panelreel/internal/player"
	"github.com/minawa/panelreel/internal/timeline"
	"github.com/minawa/panelreel/pkg/util"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "panelreel",
	Short: "panelreel - multi-layer panel and narration timeline editor",
	Long:  "A timeline editor that arranges image panels and narration audio on layered tracks, previews the composited result, and submits it for remote rendering.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	previewCmd.Flags().StringVar(&previewAt, "time", "0", "timeline position to composite (seconds or MM:SS)")
	previewCmd.Flags().StringVar(&previewOut, "out", "frame.png", "output PNG path")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output video path (default: render_<jobid>.mp4)")

	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(inspectCmd)
}

// engine bundles the assembled runtime for one project.
type engine struct {
	tl      *timeline.Timeline
	session *editor.Session
	bitmaps *assets.BitmapCache
	audio   *assets.AudioCache
	comp    *compositor.Compositor
	sched   *player.Scheduler
}

// buildEngine loads (or creates) the project file and wires the caches,
// compositor and scheduler around its timeline.
func buildEngine(cfg *config.Config, path string) (*engine, error) {
	var tl *timeline.Timeline
	if util.FileExists(path) {
		snap, err := persist.LoadFile(path)
		if err != nil {
			return nil, err
		}
		tl, err = persist.Restore(snap)
		if err != nil {
			return nil, fmt.Errorf("restoring project: %w", err)
		}
	} else {
		tl = timeline.New(cfg.Surface.Width, cfg.Surface.Height)
	}
	tl.SetSnap(cfg.Timeline.SnapGranularity)

	fetcher := assets.NewFetcher(log.Logger, time.Duration(cfg.Preload.TimeoutSeconds)*time.Second)
	bitmaps := assets.NewBitmapCache(log.Logger, fetcher)
	audio := assets.NewAudioCache(log.Logger, fetcher, cfg.Preload.Workers)

	sess := editor.NewSession(log.Logger, tl, cfg.Timeline.MinHandleSize)
	comp := compositor.New(log.Logger, tl, bitmaps)
	sched := player.NewScheduler(log.Logger, tl, player.NewEbitenFactory(log.Logger, audio))

	return &engine{tl: tl, session: sess, bitmaps: bitmaps, audio: audio, comp: comp, sched: sched}, nil
}

func projectID(path string) string {
	if util.FileExists(path) {
		if snap, err := persist.LoadFile(path); err == nil && snap.ProjectID != "" {
			return snap.ProjectID
		}
	}
	return fmt.Sprintf("project-%d", time.Now().Unix())
}

var editCmd = &cobra.Command{
	Use:   "edit [project file]",
	Short: "Open the editor window for a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		eng, err := buildEngine(cfg, args[0])
		if err != nil {
			return err
		}

		// Warm the audio cache so playback does not hit the network.
		go eng.audio.Preload(cmd.Context(), eng.tl.AudioClips(), eng.tl.SetNaturalDuration)

		deps := gui.Deps{
			Logger:      log.Logger,
			Config:      cfg,
			ProjectID:   projectID(args[0]),
			ProjectPath: args[0],
			Session:     eng.session,
			Compositor:  eng.comp,
			Scheduler:   eng.sched,
			Bitmaps:     eng.bitmaps,
		}
		if cfg.Services.PersistURL != "" {
			deps.Store = persist.NewStore(log.Logger, cfg.Services.PersistURL, 0)
		}
		if cfg.Services.UploadURL != "" {
			deps.Serializer = export.NewSerializer(log.Logger, export.NewUploader(log.Logger, cfg.Services.UploadURL, 0))
		} else {
			deps.Serializer = export.NewSerializer(log.Logger, nil)
		}
		deps.Render = export.NewClient(log.Logger, cfg.Services.RenderURL, 0)

		gui.RunGUI(deps)
		return nil
	},
}

var (
	previewAt  string
	previewOut string
)

var previewCmd = &cobra.Command{
	Use:   "preview [project file]",
	Short: "Composite one frame of a project to a PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		at, err := util.ParseTimestamp(previewAt)
		if err != nil {
			return err
		}

		eng, err := buildEngine(cfg, args[0])
		if err != nil {
			return err
		}

		frame, err := compositeSettled(cmd.Context(), eng, at, time.Duration(cfg.Preload.TimeoutSeconds)*time.Second)
		if err != nil {
			return err
		}

		out, err := os.Create(previewOut)
		if err != nil {
			return err
		}
		defer out.Close()
		if err := png.Encode(out, frame); err != nil {
			return fmt.Errorf("encoding %s: %w", previewOut, err)
		}

		log.Info().Str("out", previewOut).Float64("time", at).Msg("frame written")
		return nil
	},
}

// compositeSettled renders frames until every image clip active at the
// requested time has either decoded or failed, then returns the frame.
func compositeSettled(ctx context.Context, eng *engine, at float64, timeout time.Duration) (*image.RGBA, error) {
	deadline := time.Now().Add(timeout)
	for {
		f := eng.comp.Frame(ctx, at)
		settled := true
		for _, p := range eng.tl.ImagesAt(at) {
			if _, ok := eng.bitmaps.Lookup(p.Clip.ID); !ok && !eng.bitmaps.Failed(p.Clip.ID) {
				settled = false
			}
		}
		if settled {
			return f, nil
		}
		if time.Now().After(deadline) {
			return f, nil
		}
		time.Sleep(20 * time.Millisecond)
	}
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export [project file]",
	Short: "Submit a project to the render service and save the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())

		eng, err := buildEngine(cfg, args[0])
		if err != nil {
			return err
		}

		var uploader *export.Uploader
		if cfg.Services.UploadURL != "" {
			uploader = export.NewUploader(log.Logger, cfg.Services.UploadURL, 0)
		}
		exporter := export.NewExporter(
			log.Logger,
			export.NewSerializer(log.Logger, uploader),
			export.NewClient(log.Logger, cfg.Services.RenderURL, 0),
			nil,
		)

		res := export.Resolution{Width: cfg.Surface.Width, Height: cfg.Surface.Height}
		result, err := exporter.Export(cmd.Context(), projectID(args[0]), eng.tl, res)
		if err != nil {
			return err
		}

		video := result.Video
		if result.URL != "" {
			client := export.NewClient(log.Logger, cfg.Services.RenderURL, 0)
			video, err = client.Download(cmd.Context(), result.URL)
			if err != nil {
				return err
			}
		}

		out := exportOut
		if out == "" {
			out = fmt.Sprintf("render_%s.mp4", result.JobID)
		}
		if err := os.WriteFile(out, video, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}

		log.Info().Str("out", out).Str("job_id", result.JobID).Msg("export complete")
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [project file]",
	Short: "Print a project's layers and clips",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := persist.LoadFile(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("project %s (%dx%d)\n", snap.ProjectID, snap.Width, snap.Height)
		for li, l := range snap.Layers {
			fmt.Printf("  [%d] %s (%d clips)\n", li, l.Name, len(l.Clips))
			for ci, c := range l.Clips {
				dur := "?"
				if c.Duration != nil {
					dur = util.FormatTimestamp(*c.Duration)
				}
				src := c.Src
				if c.Inline {
					src = "(inline bytes, stripped)"
				}
				fmt.Printf("      %d. %-5s start=%s dur=%s %s\n", ci, c.Kind, util.FormatTimestamp(c.Start), dur, src)
			}
		}
		return nil
	},
}
