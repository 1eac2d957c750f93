// Package invite implements the bulk invitation engine: it draws stored
// candidates, applies quotas and the cooldown policy, invites each candidate
// into a destination channel and records the outcome.
package invite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/scoutbot/internal/database"
	"github.com/edgard/scoutbot/internal/directory"
	apperrors "github.com/edgard/scoutbot/internal/errors"
	"github.com/edgard/scoutbot/internal/limiter"
	"github.com/edgard/scoutbot/internal/metrics"
)

// DefaultCooldown is the minimum time between two invitations of one user.
const DefaultCooldown = 48 * time.Hour

// Store is the part of the record store the engine uses.
type Store interface {
	ListCandidates(ctx context.Context, q database.CandidateQuery) ([]database.UserRecord, error)
	MarkInvited(ctx context.Context, telegramID int64) error
	Delete(ctx context.Context, telegramID int64) error
}

// Request describes one invitation batch.
type Request struct {
	// Limit is the number of candidates requested.
	Limit int
	// Destination is the exact display name of the target channel.
	Destination string
	// Force also draws candidates that were invited before.
	Force bool
}

// Summary is the outcome of a batch. It is returned with partial counts
// when a batch aborts.
type Summary struct {
	BatchID     string
	Destination string

	Requested    int
	Fetched      int
	Attempted    int
	TotalInvited int
	Refused      int
	Deleted      int
	Skipped      int
	Failed       int

	CappedByDailyLimit bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithCooldown replaces DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		e.cooldown = d
	}
}

// Engine runs invitation batches. It borrows the directory client and the
// limiter from the session that owns them.
type Engine struct {
	store    Store
	dir      directory.Client
	limiter  *limiter.Limiter
	logger   *slog.Logger
	now      func() time.Time
	cooldown time.Duration
}

func NewEngine(store Store, dir directory.Client, lim *limiter.Limiter, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		store:    store,
		dir:      dir,
		limiter:  lim,
		logger:   logger.With("component", "invite_engine"),
		now:      time.Now,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one batch. Per-user refusals and generic invite failures are
// tallied and the batch continues; flood waits, resolution failures,
// transport and storage errors stop it and are returned with the partial
// summary.
func (e *Engine) Run(ctx context.Context, req Request) (sum Summary, err error) {
	sum = Summary{
		BatchID:     uuid.NewString(),
		Destination: req.Destination,
		Requested:   req.Limit,
	}
	log := e.logger.With("batch_id", sum.BatchID)

	defer func() {
		metrics.IncBatch(batchResult(sum, err))
		if err != nil {
			log.WarnContext(ctx, "Invitation batch stopped", "error", err, "code", apperrors.Code(err),
				"invited", sum.TotalInvited, "attempted", sum.Attempted)
			return
		}
		log.InfoContext(ctx, "Invitation batch finished",
			"invited", sum.TotalInvited, "refused", sum.Refused, "deleted", sum.Deleted,
			"skipped", sum.Skipped, "failed", sum.Failed, "capped", sum.CappedByDailyLimit)
	}()

	log.InfoContext(ctx, "Starting invitation batch", "destination", req.Destination, "limit", req.Limit, "force", req.Force)

	if err := e.limiter.CheckBatch(req.Limit); err != nil {
		return sum, err
	}

	dest, err := e.resolveDestination(ctx, req.Destination)
	if err != nil {
		return sum, err
	}

	working, err := e.limiter.TryReserve(ctx, req.Limit)
	if err != nil {
		return sum, err
	}
	if working < req.Limit {
		sum.CappedByDailyLimit = true
		log.InfoContext(ctx, "Batch clamped to the remaining daily budget", "working_limit", working)
	}

	now := e.now()
	candidates, err := e.store.ListCandidates(ctx, database.CandidateQuery{
		AsOf:           now,
		IncludeInvited: req.Force,
		Limit:          working,
	})
	if err != nil {
		return sum, err
	}
	sum.Fetched = len(candidates)

	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		if rec.Invited() && now.Sub(rec.InvitedAt.Time) < e.cooldown {
			sum.Skipped++
			metrics.IncInvite(metrics.OutcomeSkipped)
			log.DebugContext(ctx, "Skipping user in cooldown", "telegram_id", rec.TelegramID, "invited_at", rec.InvitedAt.Time)
			continue
		}

		user, err := e.dir.ResolveUser(ctx, rec.TelegramID)
		if err != nil {
			if errors.Is(err, directory.ErrUnresolved) {
				return sum, apperrors.New(apperrors.CodeResolutionFailed,
					fmt.Sprintf("cannot resolve user %d", rec.TelegramID), err)
			}
			return sum, apperrors.NewTransportError(fmt.Sprintf("resolving user %d failed", rec.TelegramID), err)
		}

		sum.Attempted++
		stop, err := e.invite(ctx, log, dest, user, rec, &sum)
		if err != nil || stop {
			return sum, err
		}
	}

	return sum, nil
}

func (e *Engine) resolveDestination(ctx context.Context, name string) (directory.Dialog, error) {
	dest, ok, err := directory.FindDialog(ctx, e.dir, name)
	if err != nil {
		return directory.Dialog{}, apperrors.NewTransportError("failed to list dialogs", err)
	}
	if !ok {
		return directory.Dialog{}, apperrors.Newf(apperrors.CodeDestinationNotFound, "no dialog named %q", name)
	}
	if !dest.AcceptsInvites() {
		return directory.Dialog{}, apperrors.Newf(apperrors.CodeNotAChannel, "%q is a %s, not a channel", name, dest.Kind)
	}
	return dest, nil
}

// invite attempts one candidate and updates sum. It reports whether the
// batch must stop.
func (e *Engine) invite(ctx context.Context, log *slog.Logger, dest directory.Dialog, user directory.Entity, rec database.UserRecord, sum *Summary) (bool, error) {
	err := e.dir.InviteToChannel(ctx, dest.Peer, user)

	switch {
	case err == nil:
		sum.TotalInvited++
		metrics.IncInvite(metrics.OutcomeInvited)

		// A confirmed invite always consumes budget, even if recording it fails.
		if err := e.limiter.Commit(ctx, 1); err != nil {
			return true, err
		}
		if err := e.store.MarkInvited(ctx, rec.TelegramID); err != nil {
			return true, err
		}
		remaining, err := e.limiter.Remaining(ctx)
		if err != nil {
			return true, err
		}
		if remaining == 0 {
			sum.CappedByDailyLimit = true
			log.InfoContext(ctx, "Daily invitation limit reached, stopping batch")
			return true, nil
		}
		return false, nil

	case errors.Is(err, directory.ErrPrivacyRestricted):
		err = apperrors.New(apperrors.CodePerUserInvite, "invitation refused", err)
		sum.Refused++
		metrics.IncInvite(metrics.OutcomeRefused)
		if err := e.store.Delete(ctx, rec.TelegramID); err != nil {
			return true, err
		}
		sum.Deleted++
		metrics.IncInvite(metrics.OutcomeDeleted)
		log.InfoContext(ctx, "User privacy forbids invitations, record deleted", "telegram_id", rec.TelegramID, "error", err)
		return false, nil

	case errors.Is(err, directory.ErrNotMutualContact):
		err = apperrors.New(apperrors.CodePerUserInvite, "invitation refused", err)
		sum.Refused++
		metrics.IncInvite(metrics.OutcomeRefused)
		log.InfoContext(ctx, "User is not a mutual contact", "telegram_id", rec.TelegramID, "error", err)
		return false, nil

	case errors.Is(err, directory.ErrFloodWait):
		return true, apperrors.New(apperrors.CodeFloodWait, "directory flood limit reached", err)

	case errors.Is(err, directory.ErrNotConnected),
		errors.Is(err, directory.ErrNotAuthorized),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true, apperrors.NewTransportError("directory session lost during batch", err)

	default:
		sum.Failed++
		metrics.IncInvite(metrics.OutcomeFailed)
		log.WarnContext(ctx, "Invitation failed", "telegram_id", rec.TelegramID, "error", err)
		return false, nil
	}
}

func batchResult(sum Summary, err error) string {
	switch {
	case err == nil && sum.CappedByDailyLimit:
		return "capped"
	case err == nil:
		return "completed"
	}
	switch apperrors.Code(err) {
	case apperrors.CodeFloodWait:
		return "flood_wait"
	case apperrors.CodeResolutionFailed:
		return "resolution_failed"
	case apperrors.CodeStorage:
		return "storage"
	case apperrors.CodeTransport:
		return "transport"
	case apperrors.CodeDailyLimitExceeded, apperrors.CodeBatchTooLarge:
		return "rejected"
	case apperrors.CodeDestinationNotFound, apperrors.CodeNotAChannel:
		return "bad_destination"
	}
	return "error"
}
