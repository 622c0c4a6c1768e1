package main

import (
	"fmt"

	"github.com/nao1215/sitesift/internal/checkpoint"
	"github.com/nao1215/sitesift/internal/config"
	"github.com/nao1215/sitesift/internal/database"
	"github.com/nao1215/sitesift/internal/pipeline"
	"github.com/spf13/cobra"
)

// NewTranslateCmd creates the translate command.
func NewTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate subpage text with LibreTranslate or DeepL",
		Long: `Translate sends the text of every subpage to a translation backend in
chunks of at most --chunk-size characters.

Progress is saved to the checkpoint file after every subpage. Running the
command again with the same checkpoint skips subpages already translated,
so an interrupted or rate-limited translation can simply be restarted.
Rate-limit responses are retried with exponential backoff; a Retry-After
header longer than the backoff wins.

The API key is read from SITESIFT_TRANSLATE_API_KEY (or the .env file).

Examples:
  # Translate with a local LibreTranslate server
  sitesift translate -i filtered.json -o translated.json

  # Translate with DeepL
  SITESIFT_TRANSLATE_API_KEY=... sitesift translate --backend deepl -i filtered.json -o translated.json

  # Pause for two minutes after every 20 requests
  sitesift translate -i filtered.json --cooldown-every 20 --cooldown 2m`,
		Args: cobra.NoArgs,
		RunE: runTranslateCmd,
	}
	addInputFlags(cmd)
	addTranslateFlags(cmd)
	addOutputFlags(cmd)
	return cmd
}

// runTranslateCmd executes the translate command.
func runTranslateCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, args, (*config.Config).ValidateTranslate)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext(cmd.Context(), a.logger)
	defer cancel()

	input, err := a.readInput(ctx, cmd)
	if err != nil {
		return err
	}

	step, release, err := a.newTranslateStep()
	if err != nil {
		return err
	}
	defer release()

	return a.executeStages(ctx, database.NewRunID(), nil, input, step)
}

// newTranslateStep opens the checkpoint and builds the translate step. The
// returned function releases the checkpoint lock.
func (a *app) newTranslateStep() (*pipeline.TranslateStep, func(), error) {
	store, err := checkpoint.Open(a.cfg.CheckpointPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	release := func() {
		if err := store.Close(); err != nil {
			a.logger.Warn("failed to release checkpoint", "path", store.Path(), "error", err)
		}
	}
	a.logger.Info("translation checkpoint", "path", store.Path(), "backend", a.cfg.TranslateBackend)
	return pipeline.NewTranslateStep(a.newTranslator(store)), release, nil
}
