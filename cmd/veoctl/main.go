package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"veorelay/internal/domain"
	"veorelay/internal/infra"
	"veorelay/internal/poller"
	"veorelay/internal/relay"
	"veorelay/internal/storage"
)

func main() {
	var (
		relayURL    = flag.String("relay", getEnv("RELAY_BASE_URL", "http://localhost:8080"), "relay base URL")
		prompt      = flag.String("prompt", "", "text prompt for the video")
		imagePath   = flag.String("image", "", "optional reference image file")
		aspect      = flag.String("aspect", string(domain.AspectLandscape), "aspect ratio (16:9, 9:16, 1:1, 4:3, 3:4)")
		duration    = flag.Int("duration", 8, "video duration in seconds")
		audio       = flag.Bool("audio", true, "generate audio")
		outDir      = flag.String("out", "./videos", "directory for downloaded videos")
		interval    = flag.Duration("interval", 10*time.Second, "poll interval")
		cancelAfter = flag.Duration("cancel-after", 0, "cancel the job after this duration (0 disables)")
	)
	flag.Parse()

	logger := infra.NewLogger(getEnv("APP_ENV", "development"), "veoctl")

	if strings.TrimSpace(*prompt) == "" {
		logger.Fatal().Msg("-prompt is required")
	}
	if !domain.ValidAspectRatio(*aspect) {
		logger.Fatal().Str("aspect", *aspect).Msg("unsupported aspect ratio")
	}

	var image *domain.ReferenceImage
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("read reference image")
		}
		image = &domain.ReferenceImage{Data: data, MIMEType: http.DetectContentType(data)}
		if !image.IsImage() {
			logger.Fatal().Str("mime", image.MIMEType).Msg("reference file is not an image")
		}
	}

	client, err := relay.NewClient(relay.Options{BaseURL: *relayURL})
	if err != nil {
		logger.Fatal().Err(err).Msg("build relay client")
	}

	updates := make(chan poller.State, 16)
	p := poller.New(poller.Options{
		Relay:    client,
		Interval: *interval,
		Logger:   logger,
		OnTransition: func(s poller.State) {
			select {
			case updates <- s:
			default:
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = p.Start(ctx, strings.TrimSpace(*prompt), image, domain.GenerationParams{
		AspectRatio:     domain.AspectRatio(*aspect),
		DurationSeconds: *duration,
		GenerateAudio:   *audio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("start generation")
	}
	snapshot := p.Snapshot()
	logger.Info().Str("operation_id", snapshot.Job.OperationID).Msg("generation started")

	var cancelTimer <-chan time.Time
	if *cancelAfter > 0 {
		cancelTimer = time.After(*cancelAfter)
	}

	final := watch(ctx, logger, p, updates, cancelTimer)
	if final.Job == nil {
		return
	}
	if final.Job.Status != domain.JobStatusSucceeded {
		logger.Fatal().
			Str("status", string(final.Job.Status)).
			Str("error", final.Job.ErrorMessage).
			Msg("generation did not finish")
	}

	data, _, err := client.Video(context.Background(), final.Job.OperationID)
	if err != nil {
		logger.Fatal().Err(err).Msg("download video")
	}
	store, err := storage.NewFileStore(*outDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("open output directory")
	}
	path, err := store.Write(videoKey(final.Job.Prompt), data)
	if err != nil {
		logger.Fatal().Err(err).Msg("save video")
	}
	logger.Info().Str("path", path).Int("bytes", len(data)).Msg("video saved")
}

// watch consumes poller transitions until the job terminates, the user
// interrupts, or the cancel timer fires.
func watch(ctx context.Context, logger infra.Logger, p *poller.Poller, updates <-chan poller.State, cancelTimer <-chan time.Time) poller.State {
	for {
		select {
		case <-ctx.Done():
			logger.Warn().Msg("interrupted, cancelling job")
			_ = p.Cancel(context.Background())
			return p.Snapshot()
		case <-cancelTimer:
			logger.Info().Msg("cancel-after elapsed, cancelling job")
			_ = p.Cancel(context.Background())
			return p.Snapshot()
		case s := <-updates:
			if s.Job == nil {
				return s
			}
			logger.Info().Str("status", string(s.Job.Status)).Msg("job update")
			if s.LastError != "" {
				logger.Error().Str("error", s.LastError).Msg("polling halted")
				return s
			}
			if s.Job.Status.Terminal() {
				return s
			}
		}
	}
}

// videoKey derives a stable filename from the prompt, title-cased for the
// human-facing part.
func videoKey(prompt string) string {
	title := cases.Title(language.Und).String(prompt)
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "video"
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}
	return fmt.Sprintf("%s-%d.mp4", slug, time.Now().Unix())
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
