package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/snappy-loop/wordtales/internal/config"
	"github.com/snappy-loop/wordtales/internal/llm"
	"github.com/snappy-loop/wordtales/internal/models"
	"github.com/snappy-loop/wordtales/internal/pipeline"
)

// learn runs each word given on the command line through the pipeline and
// writes the analysis, scene pictures and chant audio to OUTPUT_DIR/<word>/.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := config.Load()
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	words := os.Args[1:]
	if len(words) == 0 {
		fmt.Fprintln(os.Stderr, "usage: learn <word> [word...]")
		os.Exit(2)
	}
	outDir := os.Getenv("OUTPUT_DIR")
	if outDir == "" {
		outDir = "wordtales-out"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Interrupted, stopping...")
		cancel()
	}()

	controller := pipeline.NewController(
		cfg.AIConfig(),
		llm.NewFactory(cfg.ProviderOptions()),
		pipeline.WithRetryPolicy(cfg.RetryPolicy()),
		pipeline.WithImageInterval(cfg.ImageRequestInterval),
		pipeline.WithHooks(pipeline.Hooks{
			OnImageSlotUpdate: func(_ uuid.UUID, index int, url, errMsg *string) {
				if url == nil && errMsg == nil {
					return
				}
				if errMsg != nil {
					log.Warn().Int("scene", index+1).Str("reason", *errMsg).Msg("Scene picture failed")
					return
				}
				log.Info().Int("scene", index+1).Msg("Scene picture ready")
			},
		}),
	)

	failed := 0
	for _, word := range words {
		if ctx.Err() != nil {
			break
		}
		if _, err := controller.Search(ctx, word); err != nil {
			log.Fatal().Err(err).Msg("Cannot start search")
		}
		controller.Wait()

		state := controller.State()
		if state.Status != models.StatusComplete {
			log.Error().Str("word", word).Str("error", state.Error).Msg("Word failed")
			failed++
			continue
		}
		dir, err := writeResult(outDir, state)
		if err != nil {
			log.Error().Err(err).Str("word", word).Msg("Failed to write result")
			failed++
			continue
		}
		log.Info().Str("word", state.Data.Word).Str("dir", dir).Msg("Word saved")
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// writeResult stores analysis.json, scene-N.<ext> for each generated picture
// and chant.wav when narration is available.
func writeResult(outDir string, state models.RequestState) (string, error) {
	dir := filepath.Join(outDir, safeName(state.Data.Word))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	analysis, err := json.MarshalIndent(state.Data, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "analysis.json"), analysis, 0o644); err != nil {
		return "", err
	}

	for i, url := range state.ImageURLs {
		if url == nil {
			continue
		}
		mimeType, data, err := llm.DecodeDataURI(*url)
		if err != nil {
			log.Warn().Err(err).Int("scene", i+1).Msg("Skipping undecodable picture")
			continue
		}
		name := fmt.Sprintf("scene-%d%s", i+1, llm.ImageExtension(mimeType))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return "", err
		}
	}

	if len(state.AudioData) > 0 {
		if err := os.WriteFile(filepath.Join(dir, "chant.wav"), state.AudioData, 0o644); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func safeName(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || word == "." || word == ".." {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r < ' ' {
			return '_'
		}
		return r
	}, word)
}
