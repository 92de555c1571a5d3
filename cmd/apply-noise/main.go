// Command apply-noise corrupts sentences of token ids with the configured
// noise model, for inspecting what the denoising autoencoder is trained on.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/config"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/corpus"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/noise"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "apply-noise: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("apply-noise", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	inputPath := flags.String("input", "-", "sentences of token ids, one per line")
	outputPath := flags.String("output", "-", "where to write the noisy sentences")
	batchSize := flags.Int("batch-size", 64, "sentences per batch")
	maxLen := flags.Int("max-len", 0, "padded batch length (0 = longest sentence in each batch)")
	flags.Int("permutation", 3, "maximum local shuffle window")
	flags.Float64("deletion", 0.1, "per-token deletion probability")
	flags.Float64("insertion", 0, "per-position insertion probability")
	flags.Int("insertion-vocab", 0, "number of ids random insertions draw from")
	flags.Int("workers", 1, "rows corrupted concurrently")
	flags.Uint64("seed", 0, "random seed (0 = nondeterministic)")
	flags.Int("reserved-symbols", len(internal.VocabSymbols), "reserved ids inserted tokens are offset past")
	flags.String("log-level", internal.DefaultLogLevel, "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}
	logger := internal.GetLoggerWithLevel(cfg.Log.Level)

	model, err := noise.NewModel(cfg.Noise.Model(), append(cfg.NoiseOptions(), noise.WithLogger(logger))...)
	if err != nil {
		return err
	}

	in := stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			return fmt.Errorf("failed to open input %s: %w", *inputPath, err)
		}
		defer f.Close()
		in = f
	}
	sentences, err := corpus.ReadSentences(in)
	if err != nil {
		return fmt.Errorf("%s: %w", *inputPath, err)
	}

	noisy := make([][]int32, 0, len(sentences))
	var deleted, inserted uint64
	for _, chunk := range corpus.Chunk(sentences, *batchSize) {
		batch, err := noise.FromRows(chunk, *maxLen)
		if err != nil {
			return err
		}
		out, trace, err := model.ApplyTraced(ctx, batch)
		if err != nil {
			return err
		}
		noisy = append(noisy, out.Sequences()...)
		deleted += uint64(trace.Deleted())
		inserted += trace.InsertedCount()
	}
	logger.Info().
		Int("sentences", len(noisy)).
		Uint64("deleted", deleted).
		Uint64("inserted", inserted).
		Str("noise", model.Config().String()).
		Msg("applied noise")

	out := stdout
	if *outputPath != "-" {
		f, err := os.Create(*outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output %s: %w", *outputPath, err)
		}
		defer f.Close()
		out = f
	}
	return corpus.WriteSentences(out, noisy)
}
