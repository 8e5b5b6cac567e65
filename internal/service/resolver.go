package service

import (
	"context"
	"errors"
	"time"

	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/repository"
	"github.com/behzodk/shortlink/internal/visitor"
)

// Outcome is the terminal state of one resolution attempt.
type Outcome string

const (
	OutcomeNotFound         Outcome = "not_found"
	OutcomeExpired          Outcome = "expired"
	OutcomeChallengePending Outcome = "challenge_pending"
	OutcomeChallengeFailed  Outcome = "challenge_failed"
	OutcomeResolved         Outcome = "resolved"
)

// Resolution is the result of resolving one slug. VisitErr carries any
// swallowed visit-recording failure and LookupErr any swallowed store
// error behind a NotFound outcome; callers may observe either (to log a
// warning) but neither ever changes the outcome.
type Resolution struct {
	Outcome        Outcome
	Slug           string
	DestinationURL string
	VisitErr       error
	LookupErr      error
}

// VisitRecorder appends one visit record. Implementations may write to
// the database directly or hand the record to the analytics pipeline.
type VisitRecorder interface {
	Record(ctx context.Context, visit *model.Visit) error
}

// Resolver decides, for a slug and an optional passcode, whether to
// redirect, challenge, or bounce, and records a visit when an attempt is
// made against a real link. It is stateless; every dependency is
// injected and each call is independent of all others.
type Resolver struct {
	repo     repository.LinkRepositoryInterface
	recorder VisitRecorder
}

// ResolverInterface defines the contract for short-link resolution
type ResolverInterface interface {
	Resolve(ctx context.Context, slug, passcode string, meta visitor.Metadata) *Resolution
}

// NewResolver creates a new resolver
func NewResolver(repo repository.LinkRepositoryInterface, recorder VisitRecorder) *Resolver {
	return &Resolver{repo: repo, recorder: recorder}
}

// Resolve runs the per-request state machine:
//
//	Start -> NotFound          lookup missed or store failed (fail closed)
//	Start -> Expired           expires_at in the past; no visit logged
//	Start -> Resolved          public link; visit logged, then redirect
//	Start -> ChallengePending  passcode required, none supplied; no visit
//	Start -> ChallengeFailed   passcode mismatch; failed visit logged
//	Start -> Resolved          passcode match; successful visit logged
//
// An empty passcode counts as not supplied. Visit recording happens
// before the caller issues the redirect but its failure never blocks it.
func (r *Resolver) Resolve(ctx context.Context, slug, passcode string, meta visitor.Metadata) *Resolution {
	res := &Resolution{Outcome: OutcomeNotFound, Slug: slug}

	link, err := r.repo.GetBySlug(ctx, slug)
	if err != nil {
		// Store unavailability is indistinguishable from a missing
		// slug on purpose; keep the error observable for logging.
		if !errors.Is(err, repository.ErrNotFound) {
			res.LookupErr = err
		}
		return res
	}

	if link.Expired(time.Now()) {
		res.Outcome = OutcomeExpired
		return res
	}

	if !link.RequirePasscode {
		res.Outcome = OutcomeResolved
		res.DestinationURL = link.DestinationURL
		res.VisitErr = r.record(ctx, link, meta, nil)
		return res
	}

	if passcode == "" {
		res.Outcome = OutcomeChallengePending
		return res
	}

	// Plaintext, case-sensitive comparison, matching the stored value
	// byte for byte.
	if link.Passcode != nil && passcode == *link.Passcode {
		success := true
		res.Outcome = OutcomeResolved
		res.DestinationURL = link.DestinationURL
		res.VisitErr = r.record(ctx, link, meta, &success)
		return res
	}

	success := false
	res.Outcome = OutcomeChallengeFailed
	res.VisitErr = r.record(ctx, link, meta, &success)
	return res
}

func (r *Resolver) record(ctx context.Context, link *model.ShortLink, meta visitor.Metadata, passcodeSuccess *bool) error {
	visit := &model.Visit{
		ShortLinkID:     link.ID,
		VisitedAt:       time.Now().UTC(),
		DeviceType:      meta.DeviceType,
		Browser:         meta.Browser,
		PasscodeSuccess: passcodeSuccess,
	}
	if meta.IPAddress != "" {
		ip := meta.IPAddress
		visit.IPAddress = &ip
	}
	if meta.Location != "" {
		loc := meta.Location
		visit.Location = &loc
	}
	return r.recorder.Record(ctx, visit)
}

// Ensure Resolver implements ResolverInterface at compile time
var _ ResolverInterface = (*Resolver)(nil)
