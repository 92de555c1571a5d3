// Command replace-embedding replaces a checkpoint's source or target embedding
// table with pretrained word vectors from a .vec file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	internal "github.com/ZanzyTHEbar/nmt-denoise/nmt"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/config"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/embedding"
	"github.com/ZanzyTHEbar/nmt-denoise/nmt/params"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "replace-embedding: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("replace-embedding", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	paramsPath := flags.String("params", "", "checkpoint to read (required)")
	checkpointID := flags.String("checkpoint-id", "", "checkpoint to read from a .db params file (default latest)")
	listCheckpoints := flags.Bool("list-checkpoints", false, "print the checkpoint ids in a .db params file, newest first, and exit")
	embedFile := flags.String("embed-file", "", "pretrained .vec file (required)")
	outputParams := flags.String("output-params", "", "checkpoint to write (default <params>.<side>_embed_weight-<embed file>)")
	vocabFile := flags.String("vocab-file", "", "vocabulary JSON to write (default vocab.<src|trg>.0.<embed file>.json)")
	flags.String("side", internal.DefaultEmbeddingSide, "embedding to replace: source or target")
	flags.String("log-level", internal.DefaultLogLevel, "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *paramsPath == "" {
		return fmt.Errorf("--params is required")
	}
	if *listCheckpoints {
		return printCheckpoints(ctx, *paramsPath, stdout)
	}
	if *embedFile == "" {
		return fmt.Errorf("--embed-file is required")
	}

	var id uuid.UUID
	if *checkpointID != "" {
		parsed, err := uuid.Parse(*checkpointID)
		if err != nil {
			return fmt.Errorf("bad --checkpoint-id %q: %w", *checkpointID, err)
		}
		id = parsed
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}
	logger := internal.GetLoggerWithLevel(cfg.Log.Level)

	side, err := embedding.ParseSide(cfg.Embedding.Side)
	if err != nil {
		return err
	}

	res, err := embedding.NewReplacer(logger).Replace(ctx, embedding.Options{
		Params:       *paramsPath,
		CheckpointID: id,
		EmbedFile:    *embedFile,
		Side:         side,
		OutputParams: *outputParams,
		VocabFile:    *vocabFile,
	})
	if err != nil {
		return err
	}
	logger.Info().
		Str("output_params", res.OutputParams).
		Str("vocab_file", res.VocabFile).
		Int("vocab_size", res.VocabSize).
		Int("dim", res.Dim).
		Msg("embedding replaced")
	return nil
}

func printCheckpoints(ctx context.Context, path string, w io.Writer) error {
	catalog, err := params.CatalogFor(path)
	if err != nil {
		return err
	}
	ids, err := catalog.List(ctx, path)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintln(w, id); err != nil {
			return err
		}
	}
	return nil
}
