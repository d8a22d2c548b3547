// Package login runs biometric login attempts: it loads the account's
// reference face, drives capture, scores each modality and resolves the
// attempt to exactly one outcome.
package login

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/biogate/internal/account"
	"github.com/kozaktomas/biogate/internal/biometric"
	"github.com/kozaktomas/biogate/internal/capture"
	"github.com/kozaktomas/biogate/internal/constants"
	"github.com/kozaktomas/biogate/internal/database"
	"github.com/kozaktomas/biogate/internal/facematch"
	"github.com/kozaktomas/biogate/internal/logging"
	"github.com/kozaktomas/biogate/internal/speech"
)

// ErrGalleryDisabled is returned by Identify when no gallery is configured.
var ErrGalleryDisabled = errors.New("face gallery is not enabled")

// ErrGalleryEmpty is returned by Identify when no account is enrolled yet.
var ErrGalleryEmpty = errors.New("no faces enrolled")

// AudioMatcher scores a voice clip. It never fails: errors become failed results.
type AudioMatcher interface {
	Match(ctx context.Context, clip []byte) biometric.MatchResult
}

// Dependencies are the collaborators of a Service. Cache, Recorder, Gallery
// and Logger are optional.
type Dependencies struct {
	Accounts account.Store
	Detector facematch.Detector
	Audio    AudioMatcher
	Phrases  *speech.PhraseSet
	Cache    database.DescriptorCache
	Recorder database.AttemptRecorder
	Gallery  *facematch.Gallery
	Logger   *slog.Logger
}

// Options tune a Service.
type Options struct {
	FaceThreshold float64
	RecordWindow  time.Duration
	RequireSpeech bool
	Retention     time.Duration // resolved attempts are kept this long
	Model         string        // recorded with cached descriptors
}

// Service owns the attempts. At most one attempt per account is live:
// starting a new one supersedes the previous.
type Service struct {
	deps Dependencies
	opts Options
	log  *slog.Logger
	now  func() time.Time

	mu        sync.RWMutex
	attempts  map[string]*Attempt
	byAccount map[string]*Attempt
}

// NewService validates the dependencies and creates a service.
func NewService(deps Dependencies, opts Options) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, errors.New("account store is required")
	case deps.Detector == nil:
		return nil, errors.New("face detector is required")
	case deps.Audio == nil:
		return nil, errors.New("audio matcher is required")
	case deps.Phrases == nil:
		return nil, errors.New("phrase set is required")
	}
	if opts.FaceThreshold <= 0 {
		opts.FaceThreshold = constants.FaceDistanceThreshold
	}
	if opts.RecordWindow <= 0 {
		opts.RecordWindow = constants.RecordWindow
	}
	if opts.Retention <= 0 {
		opts.Retention = constants.AttemptRetention
	}
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Service{
		deps:      deps,
		opts:      opts,
		log:       log,
		now:       time.Now,
		attempts:  make(map[string]*Attempt),
		byAccount: make(map[string]*Attempt),
	}, nil
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// Get returns an attempt by ID.
func (s *Service) Get(id string) (*Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return a, nil
}

// List returns all retained attempts, newest first.
func (s *Service) List() []*Attempt {
	s.mu.RLock()
	list := make([]*Attempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		list = append(list, a)
	}
	s.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list
}

// Prune drops attempts that resolved longer ago than the retention period.
func (s *Service) Prune() int {
	cutoff := s.now().Add(-s.opts.Retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, a := range s.attempts {
		if !a.resolvedBefore(cutoff) {
			continue
		}
		delete(s.attempts, id)
		if s.byAccount[a.AccountID] == a {
			delete(s.byAccount, a.AccountID)
		}
		removed++
	}
	return removed
}

// Begin starts an attempt for the account and loads its reference face.
// The attempt is returned in awaiting_capture, or already resolved when the
// reference could not be loaded.
func (s *Service) Begin(ctx context.Context, accountID string) (*Attempt, error) {
	acc, err := s.deps.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	s.Prune()

	a := newAttempt(uuid.NewString(), acc.ID, s.deps.Phrases.Choose(), s.opts.RequireSpeech, s.now())

	s.mu.Lock()
	prev := s.byAccount[acc.ID]
	s.byAccount[acc.ID] = a
	s.attempts[a.ID] = a
	s.mu.Unlock()

	if prev != nil && !prev.State().Terminal() {
		s.log.Info("superseding login attempt", "account", acc.ID, "previous", prev.ID, "attempt", a.ID)
		s.cancel(prev, ErrSuperseded)
	}

	s.log.Info("login attempt started", "account", acc.ID, "attempt", a.ID)

	if err := a.transition(StateAwaitingModels); err != nil {
		return a, nil
	}

	runCtx, done := a.runContext(ctx)
	defer done()

	ref, failure := s.loadReference(runCtx, acc)
	if failure != nil {
		a.setResult(biometric.ModalityFace, *failure)
		s.finish(a)
		return a, nil
	}

	matcher, err := facematch.NewMatcher([]facematch.LabeledDescriptors{
		{Label: acc.ID, Descriptors: []facematch.Descriptor{ref}},
	}, s.opts.FaceThreshold)
	if err != nil {
		a.setResult(biometric.ModalityFace, biometric.Failed(1, biometric.FailureModelLoad, "Failed to load face model"))
		s.finish(a)
		return a, nil
	}
	a.setMatcher(matcher)

	if err := a.transition(StateAwaitingCapture); err != nil {
		return a, nil
	}
	return a, nil
}

// Capture acquires the media from src and runs the audio, face and speech
// checks in that order. The audio result is awaited before the face scan, and
// the face scan runs even when audio failed.
func (s *Service) Capture(ctx context.Context, attemptID string, src capture.Source) (*Outcome, error) {
	a, err := s.Get(attemptID)
	if err != nil {
		return nil, err
	}

	orch := capture.NewOrchestrator(s.opts.RecordWindow, a.status)
	matcher, err := a.beginCapture(orch.Release)
	if err != nil {
		return a.Outcome(), err
	}
	defer orch.Release()

	runCtx, done := a.runContext(ctx)
	defer done()

	media := orch.Acquire(runCtx, src)

	if err := a.transition(StateAwaitingAudio); err != nil {
		return s.finish(a), nil
	}
	audio, failed := media.Status[biometric.ModalityAudio]
	if !failed {
		audio = s.deps.Audio.Match(runCtx, media.Audio)
	}
	a.setResult(biometric.ModalityAudio, audio)

	if err := a.transition(StateAwaitingFace); err != nil {
		return s.finish(a), nil
	}
	face, failed := media.Status[biometric.ModalityFace]
	if !failed {
		face = s.matchFace(runCtx, matcher, media.Frame)
	}
	a.setResult(biometric.ModalityFace, face)

	if err := a.transition(StateAwaitingSpeech); err != nil {
		return s.finish(a), nil
	}
	spoken, failed := media.Status[biometric.ModalitySpeech]
	if !failed {
		a.setTranscript(media.Transcript)
		spoken = speech.Check(media.Transcript, a.Phrase)
	}
	a.setResult(biometric.ModalitySpeech, spoken)

	return s.finish(a), nil
}

// Run begins an attempt and captures immediately.
func (s *Service) Run(ctx context.Context, accountID string, src capture.Source) (*Attempt, *Outcome, error) {
	a, err := s.Begin(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if out := a.Outcome(); out != nil {
		return a, out, nil
	}
	out, err := s.Capture(ctx, a.ID, src)
	return a, out, err
}

// Cancel resolves the attempt as cancelled and releases its devices.
func (s *Service) Cancel(attemptID string) (*Outcome, error) {
	a, err := s.Get(attemptID)
	if err != nil {
		return nil, err
	}
	return s.cancel(a, ErrCancelled), nil
}

func (s *Service) cancel(a *Attempt, cause error) *Outcome {
	a.cancel(cause)
	return s.finish(a)
}

// Shutdown cancels every live attempt.
func (s *Service) Shutdown() {
	for _, a := range s.List() {
		if !a.State().Terminal() {
			s.cancel(a, ErrCancelled)
		}
	}
}

// finish resolves the attempt and, on first resolution, logs and audits it.
func (s *Service) finish(a *Attempt) *Outcome {
	out, first := a.resolve(s.now())
	if !first {
		return out
	}

	s.log.Info("login attempt resolved",
		"account", a.AccountID,
		"attempt", a.ID,
		"status", out.Status,
		"face_distance", out.Face.Score,
		"audio_similarity", out.Audio.Score,
		"speech_matched", out.Speech.Matched,
	)

	if s.deps.Recorder != nil {
		view := a.View()
		rec := database.AttemptRecord{
			ID:             a.ID,
			AccountID:      a.AccountID,
			Success:        out.Success,
			Status:         out.Status,
			FaceMatched:    out.Face.Matched,
			FaceDistance:   out.Face.Score,
			AudioMatched:   out.Audio.Matched,
			AudioScore:     out.Audio.Score,
			SpeechMatched:  out.Speech.Matched,
			FailureReasons: out.FailureReasons(),
			StartedAt:      a.CreatedAt,
			ResolvedAt:     *view.ResolvedAt,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deps.Recorder.RecordAttempt(ctx, rec); err != nil {
			s.log.Error("failed to record login attempt", "attempt", a.ID, "error", err)
		}
	}
	return out
}

// runContext derives a context cancelled by either the attempt token or the caller.
func (a *Attempt) runContext(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancelCause(a.ctx)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	return runCtx, func() {
		stop()
		cancel(nil)
	}
}

// loadReference returns the account's reference descriptor, or the failed
// face result that resolves the attempt before capture.
func (s *Service) loadReference(ctx context.Context, acc *account.Account) (facematch.Descriptor, *biometric.MatchResult) {
	fail := func(kind biometric.Failure, reason string) (facematch.Descriptor, *biometric.MatchResult) {
		r := biometric.Failed(1, kind, reason)
		return nil, &r
	}

	picture, err := s.deps.Accounts.Picture(ctx, acc)
	if err != nil {
		s.log.Warn("failed to load reference picture", "account", acc.ID, "error", err)
		return fail(biometric.FailureModelLoad, "Failed to load reference image")
	}

	sum := sha256.Sum256(picture)
	hash := hex.EncodeToString(sum[:])

	if s.deps.Cache != nil {
		cached, err := s.deps.Cache.GetDescriptor(ctx, acc.ID, hash, s.opts.Model)
		if err != nil {
			s.log.Warn("descriptor cache lookup failed", "account", acc.ID, "error", err)
		} else if cached != nil {
			s.remember(acc.ID, cached.Descriptor)
			return cached.Descriptor, nil
		}
	}

	ref, err := s.deps.Detector.DetectDescriptor(ctx, picture)
	switch {
	case errors.Is(err, facematch.ErrNoFace):
		return fail(biometric.FailureNoFaceReference, "No face detected in reference image")
	case ctx.Err() != nil:
		return fail(biometric.FailureCancelled, cancelReason(context.Cause(ctx)))
	case err != nil:
		s.log.Warn("failed to extract reference descriptor", "account", acc.ID, "error", err)
		return fail(biometric.FailureModelLoad, "Failed to load face model")
	}

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SaveDescriptor(ctx, database.StoredDescriptor{
			AccountID:   acc.ID,
			PictureHash: hash,
			Descriptor:  ref,
			Model:       s.opts.Model,
		}); err != nil {
			s.log.Warn("failed to cache reference descriptor", "account", acc.ID, "error", err)
		}
	}
	s.remember(acc.ID, ref)
	return ref, nil
}

// remember indexes the descriptor for identification. The gallery is
// auxiliary; failing to index never fails the attempt.
func (s *Service) remember(accountID string, d facematch.Descriptor) {
	if s.deps.Gallery == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("face gallery panicked", "account", accountID, "panic", r)
		}
	}()
	if err := s.deps.Gallery.Put(accountID, d); err != nil {
		s.log.Warn("failed to index reference descriptor", "account", accountID, "error", err)
	}
}

// matchFace detects the live face and compares it with the reference.
func (s *Service) matchFace(ctx context.Context, matcher *facematch.Matcher, frame []byte) biometric.MatchResult {
	live, err := s.deps.Detector.DetectDescriptor(ctx, frame)
	switch {
	case errors.Is(err, facematch.ErrNoFace):
		return biometric.Failed(1, biometric.FailureLiveDetection, "No face detected")
	case ctx.Err() != nil:
		return biometric.Failed(1, biometric.FailureCancelled, cancelReason(context.Cause(ctx)))
	case errors.Is(err, facematch.ErrImageDecode):
		return biometric.Failed(1, biometric.FailureLiveDetection, "Invalid camera frame")
	case err != nil:
		s.log.Warn("live face detection failed", "error", err)
		return biometric.Failed(1, biometric.FailureNetwork, "Face detection failed")
	}
	return matcher.Match(live)
}

// WarmGallery loads the cached reference descriptors of the current model
// into the gallery and returns how many were indexed.
func (s *Service) WarmGallery(ctx context.Context) (int, error) {
	if s.deps.Gallery == nil || s.deps.Cache == nil {
		return 0, nil
	}
	stored, err := s.deps.Cache.ListDescriptors(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading cached descriptors: %w", err)
	}
	loaded := 0
	for _, d := range stored {
		if d.Model != s.opts.Model {
			s.log.Debug("skipping descriptor from another model", "account", d.AccountID, "model", d.Model)
			continue
		}
		if err := s.deps.Gallery.Put(d.AccountID, d.Descriptor); err != nil {
			s.log.Warn("skipping cached descriptor", "account", d.AccountID, "error", err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// Forget drops the cached and indexed reference descriptor of an account so
// the next load extracts it again.
func (s *Service) Forget(ctx context.Context, accountID string) error {
	if s.deps.Gallery != nil {
		s.deps.Gallery.Remove(accountID)
	}
	if s.deps.Cache == nil {
		return nil
	}
	if err := s.deps.Cache.DeleteDescriptor(ctx, accountID); err != nil {
		return fmt.Errorf("forgetting descriptor of %s: %w", accountID, err)
	}
	return nil
}

// Enroll extracts and remembers the reference descriptor for an account
// without starting an attempt.
func (s *Service) Enroll(ctx context.Context, accountID string) error {
	acc, err := s.deps.Accounts.Get(ctx, accountID)
	if err != nil {
		return fmt.Errorf("loading account %s: %w", accountID, err)
	}
	if _, failure := s.loadReference(ctx, acc); failure != nil {
		return fmt.Errorf("account %s: %s", accountID, failure.Reason)
	}
	return nil
}

// Identify returns the closest enrolled account for a frame.
func (s *Service) Identify(ctx context.Context, frame []byte) (facematch.BestMatch, error) {
	if s.deps.Gallery == nil {
		return facematch.BestMatch{}, ErrGalleryDisabled
	}
	if s.deps.Gallery.Len() == 0 {
		return facematch.BestMatch{}, ErrGalleryEmpty
	}
	live, err := s.deps.Detector.DetectDescriptor(ctx, frame)
	if err != nil {
		return facematch.BestMatch{}, fmt.Errorf("detecting face: %w", err)
	}
	return s.deps.Gallery.Identify(live), nil
}
