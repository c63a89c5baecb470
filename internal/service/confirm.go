package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"tg-banshare/internal/logger"
	"tg-banshare/internal/metrics"
	"tg-banshare/internal/models"
)

type Outcome string

const (
	OutcomeDone            Outcome = "done"
	OutcomeAlreadyActioned Outcome = "already_actioned"
	OutcomeInProgress      Outcome = "in_progress"
	OutcomeNotRecognized   Outcome = "not_recognized"
	OutcomeLookupFailed    Outcome = "lookup_failed"
	OutcomePermission      Outcome = "permission_denied"
	OutcomeEnforcement     Outcome = "enforcement_failed"
	// OutcomePersistence means the platform action happened but recording it
	// failed; activating the control again only retries the recording.
	OutcomePersistence Outcome = "persistence_failed"
)

// GuildContext identifies where a confirmation was activated.
type GuildContext struct {
	GuildID int64
	ActorID int64
}

// ConfirmResult is returned to the interaction surface for rendering.
type ConfirmResult struct {
	Outcome Outcome
	Token   Token
	// BanID is the recorded ban after a successful ban confirmation.
	BanID uint
	Err   error
}

type confirmKey struct {
	guildID int64
	userID  int64
	kind    ActionKind
}

// Confirmer carries out the action an alert proposes.
type Confirmer struct {
	bans     BanStore
	dir      Directory
	enforcer Enforcer
	marker   string
	inflight *xsync.MapOf[confirmKey, struct{}]
	log      *zap.SugaredLogger
}

func NewConfirmer(bans BanStore, dir Directory, enforcer Enforcer, marker string) *Confirmer {
	return &Confirmer{
		bans:     bans,
		dir:      dir,
		enforcer: enforcer,
		marker:   marker,
		inflight: xsync.NewMapOf[confirmKey, struct{}](),
		log:      logger.Named("confirm"),
	}
}

// HandleConfirmation acts on an activated control. Enforcement is attempted
// at most once per activation, and never when the platform already reflects
// the action.
func (c *Confirmer) HandleConfirmation(ctx context.Context, raw string, gctx GuildContext, ctl Control) ConfirmResult {
	tok, ok := DecodeToken(raw)
	if !ok {
		metrics.Confirmations.WithLabelValues("unknown", string(OutcomeNotRecognized)).Inc()
		return ConfirmResult{Outcome: OutcomeNotRecognized, Err: fmt.Errorf("%w: token %q", ErrValidation, raw)}
	}

	res := c.confirm(ctx, tok, gctx, ctl)
	res.Token = tok
	metrics.Confirmations.WithLabelValues(string(tok.Kind), string(res.Outcome)).Inc()
	return res
}

func (c *Confirmer) confirm(ctx context.Context, tok Token, gctx GuildContext, ctl Control) ConfirmResult {
	key := confirmKey{guildID: gctx.GuildID, userID: tok.UserID, kind: tok.Kind}
	if _, busy := c.inflight.LoadOrStore(key, struct{}{}); busy {
		return ConfirmResult{Outcome: OutcomeInProgress}
	}
	defer c.inflight.Delete(key)

	log := c.log.With("kind", tok.Kind, "guild", gctx.GuildID, "user", tok.UserID, "actor", gctx.ActorID)

	stored, err := c.bans.GetBan(ctx, gctx.GuildID, tok.UserID)
	if err != nil {
		log.Errorw("cannot read ban store", "error", err)
		return ConfirmResult{Outcome: OutcomeLookupFailed, Err: err}
	}

	// a failed platform lookup counts as not actioned; re-issuing a ban or
	// unban that is already in effect is harmless on the platform
	banned, err := c.dir.IsBanned(ctx, gctx.GuildID, tok.UserID)
	if err != nil {
		log.Warnw("platform state lookup failed", "error", err)
		banned = tok.Kind == ActionUnban
	}

	var platformDone, storeDone bool
	switch tok.Kind {
	case ActionBan:
		platformDone, storeDone = banned, stored != nil
	case ActionUnban:
		platformDone, storeDone = !banned, stored == nil
	}

	if platformDone && storeDone {
		c.disable(ctx, ctl, "control_already", log)
		res := ConfirmResult{Outcome: OutcomeAlreadyActioned}
		if stored != nil {
			res.BanID = stored.ID
		}
		return res
	}

	if !platformDone {
		if err := c.enforce(ctx, tok, gctx); err != nil {
			if errors.Is(err, ErrPermission) {
				log.Warnw("enforcement not permitted", "error", err)
				return ConfirmResult{Outcome: OutcomePermission, Err: err}
			}
			log.Errorw("enforcement failed", "error", err)
			return ConfirmResult{Outcome: OutcomeEnforcement, Err: err}
		}
	}

	res := ConfirmResult{Outcome: OutcomeDone}
	switch tok.Kind {
	case ActionBan:
		id, err := c.bans.RecordBan(ctx, models.BanInput{
			GuildID:  gctx.GuildID,
			UserID:   tok.UserID,
			Reason:   c.reason(tok.Kind),
			BannedBy: &gctx.ActorID,
			RefBanID: tok.BanID,
		})
		if err != nil {
			log.Errorw("ban enforced but not recorded", "error", err)
			return ConfirmResult{Outcome: OutcomePersistence, Err: fmt.Errorf("%w: %v", ErrPersistence, err)}
		}
		res.BanID = id
	case ActionUnban:
		if !storeDone {
			if _, err := c.bans.RemoveBan(ctx, gctx.GuildID, tok.UserID); err != nil {
				log.Errorw("unban enforced but not recorded", "error", err)
				return ConfirmResult{Outcome: OutcomePersistence, Err: fmt.Errorf("%w: %v", ErrPersistence, err)}
			}
		}
	}

	label := "control_banned"
	if tok.Kind == ActionUnban {
		label = "control_unbanned"
	}
	c.disable(ctx, ctl, label, log)

	log.Infow("confirmation carried out", "enforced", !platformDone, "ban_id", res.BanID)
	return res
}

func (c *Confirmer) enforce(ctx context.Context, tok Token, gctx GuildContext) error {
	if tok.Kind == ActionUnban {
		return c.enforcer.Unban(ctx, gctx.GuildID, tok.UserID, c.reason(tok.Kind))
	}
	return c.enforcer.Ban(ctx, gctx.GuildID, tok.UserID, c.reason(tok.Kind))
}

func (c *Confirmer) reason(kind ActionKind) string {
	if kind == ActionUnban {
		return SelfReason(c.marker, "Unban confirmed by admin")
	}
	return SelfReason(c.marker, "Confirmed by admin")
}

// disable is best effort: the outcome is final whatever happens to the control.
func (c *Confirmer) disable(ctx context.Context, ctl Control, label string, log *zap.SugaredLogger) {
	if ctl == nil {
		return
	}
	if err := ctl.Disable(ctx, label); err != nil {
		log.Warnw("cannot disable control", "label", label, "error", err)
	}
}
