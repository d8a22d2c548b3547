package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kozaktomas/biogate/internal/account"
	"github.com/kozaktomas/biogate/internal/audiomatch"
	"github.com/kozaktomas/biogate/internal/config"
	"github.com/kozaktomas/biogate/internal/database"
	"github.com/kozaktomas/biogate/internal/database/mariadb"
	"github.com/kozaktomas/biogate/internal/database/postgres"
	"github.com/kozaktomas/biogate/internal/facematch"
	"github.com/kozaktomas/biogate/internal/logging"
	"github.com/kozaktomas/biogate/internal/login"
	"github.com/kozaktomas/biogate/internal/speech"
)

// descriptorModel is stored with cached descriptors so a model change can
// be told apart from a picture change.
const descriptorModel = "insightface/buffalo_l"

// backend holds everything a command needs to run login attempts.
type backend struct {
	cfg         *config.Config
	log         *slog.Logger
	accounts    *account.FileStore
	service     *login.Service
	transcriber speech.Transcriber
	sessions    database.SessionStore
	audit       database.AttemptReader
	closers     []func() error
}

// openBackend wires the collaborators from the configuration. PostgreSQL and
// MariaDB are optional: without them descriptors are not cached, sessions
// live in memory and attempts are only logged.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	log, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	b := &backend{
		cfg:      cfg,
		log:      log,
		accounts: account.NewFileStore(cfg.Accounts.Dir),
	}

	phrases, err := speech.NewPhraseSet(cfg.Speech.Phrases)
	if err != nil {
		return nil, fmt.Errorf("loading phrases: %w", err)
	}

	transcriber, err := speech.NewTranscriber(ctx, cfg.Speech.Provider, cfg.OpenAI.Token, cfg.Gemini.APIKey)
	switch {
	case errors.Is(err, speech.ErrNoTranscriber):
		log.Info("speech recognition runs in the browser")
	case err != nil:
		return nil, fmt.Errorf("configuring speech provider: %w", err)
	default:
		log.Info("server-side speech recognition enabled", "provider", transcriber.Name())
		b.transcriber = transcriber
	}

	var (
		cache     database.DescriptorCache
		recorders database.MultiRecorder
	)

	if cfg.Database.URL != "" {
		pool, applied, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		for _, name := range applied {
			log.Info("applied migration", "name", name)
		}

		cache = postgres.NewDescriptorRepository(pool)
		b.sessions = postgres.NewSessionRepository(pool)
		attempts := postgres.NewAttemptRepository(pool)
		recorders = append(recorders, attempts)
		b.audit = attempts
		log.Info("using PostgreSQL for descriptors, sessions and audit")
	}

	if cfg.Audit.MariaDBDSN != "" {
		pool, err := mariadb.NewPool(cfg.Audit.MariaDBDSN)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to initialize MariaDB: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("failed to prepare MariaDB audit table: %w", err)
		}
		recorders = append(recorders, pool)
		if b.audit == nil {
			b.audit = pool
		}
		log.Info("writing attempt audit log to MariaDB")
	}

	audio := audiomatch.NewClient(cfg.Audio.AuthURL, cfg.Audio.Threshold)
	log.Info("audio matcher configured", "url", audio.BaseURL(), "threshold", audio.Threshold())

	deps := login.Dependencies{
		Accounts: b.accounts,
		Detector: facematch.NewEmbeddingDetector(cfg.Face.EmbeddingURL, cfg.Face.MaxImageSize),
		Audio:    audio,
		Phrases:  phrases,
		Gallery:  facematch.NewGallery(cfg.Face.Threshold),
		Logger:   log,
	}
	if cache != nil {
		deps.Cache = cache
	}
	if len(recorders) > 0 {
		deps.Recorder = recorders
	}

	service, err := login.NewService(deps, login.Options{
		FaceThreshold: cfg.Face.Threshold,
		RecordWindow:  cfg.Audio.RecordWindow,
		RequireSpeech: cfg.Speech.Require,
		Model:         descriptorModel,
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating login service: %w", err)
	}
	b.service = service

	return b, nil
}

// Close cancels live attempts and closes the database pools.
func (b *backend) Close() {
	if b.service != nil {
		b.service.Shutdown()
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			b.log.Warn("close failed", "error", err)
		}
	}
	b.closers = nil
}
