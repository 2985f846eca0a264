// Command scribe transcribes one audio file and exits.
//
//	scribe -provider whisper -fallbacks batch -output talk.txt talk.wav
//
// Without -output the assembled transcript goes to stdout; the manifest
// is always written next to the output file when one is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/scribe/app"
	"github.com/kbukum/scribe/audio"
	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/transcription"
	"github.com/kbukum/scribe/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "scribe:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "config file path")
		showVersion = flag.Bool("version", false, "print version and exit")

		provider  = flag.String("provider", "whisper", "primary transcription provider")
		fallbacks = flag.String("fallbacks", "", "comma-separated fallback providers")
		output    = flag.String("output", "", "transcript output path (default stdout)")
		format    = flag.String("format", "", "output format: text, srt or vtt")
		language  = flag.String("language", "", "source language hint")
		model     = flag.String("model", "", "provider model override")

		maxChunk    = flag.Duration("max-chunk", 0, "maximum chunk duration")
		silenceGap  = flag.Duration("silence-gap", 0, "minimum silence run for a cut point")
		maxBytes    = flag.Int("max-chunk-bytes", 0, "maximum chunk payload size")
		concurrency = flag.Int("concurrency", 0, "chunks in flight at once")
		unitTimeout = flag.Duration("unit-timeout", 0, "deadline per chunk attempt")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return nil
	}
	if flag.NArg() != 1 {
		return fmt.Errorf("usage: scribe [flags] <audio.wav>")
	}
	source := flag.Arg(0)

	cfg, err := app.LoadConfig("scribe", *configFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Logging, "scribe")

	reg, err := app.NewRegistry(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := app.NewOrchestrator(ctx, cfg, reg, log)
	if err != nil {
		return err
	}

	dec, err := audio.OpenWAV(source)
	if err != nil {
		return errors.SourceUnreadable(source, err)
	}
	defer dec.Close()

	job := transcription.Job{
		Provider:     *provider,
		Fallbacks:    splitList(*fallbacks),
		Output:       *output,
		OutputFormat: *format,
		Language:     *language,
		Model:        *model,
		Segmenter: audio.SegmenterConfig{
			MaxChunkDuration: *maxChunk,
			MaxChunkBytes:    *maxBytes,
			SilenceGap:       *silenceGap,
		},
		Concurrency: *concurrency,
		UnitTimeout: *unitTimeout,
	}

	started := time.Now()
	result, err := orch.Run(ctx, job, dec, func(ev transcription.ProgressEvent) {
		log.Info("chunk finished", logger.Fields(
			logger.FieldChunk, ev.ChunkIndex,
			logger.FieldStatus, string(ev.Status),
			logger.FieldProvider, ev.Provider,
		))
	})
	if err != nil {
		return err
	}

	printSummary(os.Stderr, result, time.Since(started))
	if *output == "" {
		fmt.Println(result.Text)
	}
	return nil
}

func printSummary(w *os.File, result *transcription.TranscriptionResult, elapsed time.Duration) {
	m := result.Manifest
	var failed int
	for _, c := range m.Chunks {
		if c.Status == transcription.StatusFailed {
			failed++
		}
	}
	fmt.Fprintf(w, "%d chunks (%d failed), %d characters, %s source, done in %s\n",
		m.ChunkCount, failed, m.TextLength, m.SourceDuration.Round(time.Second), elapsed.Round(time.Millisecond))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
