package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/behzodk/shortlink/internal/model"
	"github.com/behzodk/shortlink/internal/repository"
)

var (
	ErrInvalidURL        = errors.New("invalid destination URL")
	ErrInvalidSlug       = errors.New("invalid slug format")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidOwner      = errors.New("invalid owner id")
	ErrPasscodeRequired  = errors.New("private links require a passcode")
	ErrLinkNotFound      = errors.New("short link not found")
	ErrSlugExists        = errors.New("slug already exists")
	ErrSlugGeneration    = errors.New("failed to generate a free slug")
)

// VisitStore provides read access to the visits table for analytics.
type VisitStore interface {
	ListByLink(ctx context.Context, linkID uuid.UUID, limit int) ([]*model.Visit, error)
	StatsByLink(ctx context.Context, linkID uuid.UUID) (*repository.LinkStats, error)
}

// LinkService handles business logic for short-link management
type LinkService struct {
	repo        repository.LinkRepositoryInterface
	visits      VisitStore
	baseURL     string
	slugRetries int
}

// LinkServiceInterface defines the contract for short-link management
type LinkServiceInterface interface {
	CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.CreateLinkResponse, error)
	GetLink(ctx context.Context, slug string) (*model.LinkResponse, error)
	ListLinks(ctx context.Context) ([]*model.LinkResponse, error)
	DeleteLink(ctx context.Context, slug string) error
	LinkVisits(ctx context.Context, slug string, limit int) ([]*model.VisitResponse, error)
	LinkStats(ctx context.Context, slug string) (*model.LinkStatsResponse, error)
}

// NewLinkService creates a new link service
func NewLinkService(repo repository.LinkRepositoryInterface, visits VisitStore, baseURL string, slugRetries int) *LinkService {
	return &LinkService{
		repo:        repo,
		visits:      visits,
		baseURL:     baseURL,
		slugRetries: slugRetries,
	}
}

// CreateLink creates a new short link. A custom slug is sanitized and
// validated; without one a random slug is reserved with bounded retries.
func (s *LinkService) CreateLink(ctx context.Context, req *model.CreateLinkRequest) (*model.CreateLinkResponse, error) {
	destination, err := NormalizeDestination(req.URL)
	if err != nil {
		return nil, err
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = model.VisibilityPublic
	}
	if visibility != model.VisibilityPublic && visibility != model.VisibilityPrivate {
		return nil, ErrInvalidVisibility
	}

	// require_passcode is true exactly when the link is private, and a
	// private link must carry a non-empty passcode.
	var passcode *string
	requirePasscode := visibility == model.VisibilityPrivate
	if requirePasscode {
		trimmed := trimPasscode(req.Passcode)
		if trimmed == "" {
			return nil, ErrPasscodeRequired
		}
		passcode = &trimmed
	}

	var ownerID *uuid.UUID
	if req.OwnerID != "" {
		id, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return nil, ErrInvalidOwner
		}
		ownerID = &id
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	link := &model.ShortLink{
		ID:              uuid.New(),
		DestinationURL:  destination,
		Visibility:      visibility,
		RequirePasscode: requirePasscode,
		Passcode:        passcode,
		OwnerID:         ownerID,
		ExpiresAt:       expiresAt,
	}

	if req.Slug != "" {
		slug := SanitizeSlug(req.Slug)
		if slug == "" || !slugPattern.MatchString(slug) {
			return nil, ErrInvalidSlug
		}
		link.Slug = slug
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrSlugConflict) {
				return nil, ErrSlugExists
			}
			return nil, err
		}
	} else {
		created := false
		for attempt := 0; attempt < s.slugRetries; attempt++ {
			link.Slug = RandomSlug()
			if err := s.repo.Create(ctx, link); err != nil {
				if errors.Is(err, repository.ErrSlugConflict) {
					continue
				}
				return nil, err
			}
			created = true
			break
		}
		if !created {
			return nil, ErrSlugGeneration
		}
	}

	var expiresAtStr string
	if expiresAt != nil {
		expiresAtStr = expiresAt.Format(time.RFC3339)
	}

	return &model.CreateLinkResponse{
		Slug:           link.Slug,
		ShortURL:       s.shortURL(link.Slug),
		DestinationURL: link.DestinationURL,
		Visibility:     link.Visibility,
		ExpiresAt:      expiresAtStr,
	}, nil
}

// GetLink retrieves link metadata by slug without logging a visit.
func (s *LinkService) GetLink(ctx context.Context, slug string) (*model.LinkResponse, error) {
	link, err := s.findLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.toLinkResponse(link), nil
}

// ListLinks returns all links, newest first.
func (s *LinkService) ListLinks(ctx context.Context) ([]*model.LinkResponse, error) {
	links, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.LinkResponse, 0, len(links))
	for _, link := range links {
		out = append(out, s.toLinkResponse(link))
	}
	return out, nil
}

// DeleteLink removes a short link. Its visits cascade away with it.
func (s *LinkService) DeleteLink(ctx context.Context, slug string) error {
	if err := s.repo.Delete(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return err
	}
	return nil
}

// LinkVisits returns up to limit recent visits for a link, newest first.
func (s *LinkService) LinkVisits(ctx context.Context, slug string, limit int) ([]*model.VisitResponse, error) {
	link, err := s.findLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	visits, err := s.visits.ListByLink(ctx, link.ID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*model.VisitResponse, 0, len(visits))
	for _, v := range visits {
		resp := &model.VisitResponse{
			VisitedAt:       v.VisitedAt.Format(time.RFC3339),
			DeviceType:      v.DeviceType,
			Browser:         v.Browser,
			PasscodeSuccess: v.PasscodeSuccess,
		}
		if v.IPAddress != nil {
			resp.IPAddress = *v.IPAddress
		}
		if v.Location != nil {
			resp.Location = *v.Location
		}
		out = append(out, resp)
	}
	return out, nil
}

// LinkStats returns aggregated visit analytics for a link.
func (s *LinkService) LinkStats(ctx context.Context, slug string) (*model.LinkStatsResponse, error) {
	link, err := s.findLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	stats, err := s.visits.StatsByLink(ctx, link.ID)
	if err != nil {
		return nil, err
	}
	resp := &model.LinkStatsResponse{
		Slug:             link.Slug,
		TotalVisits:      stats.TotalVisits,
		PasscodeAccepted: stats.PasscodeAccepted,
		PasscodeRejected: stats.PasscodeRejected,
		Devices:          stats.Devices,
		Browsers:         stats.Browsers,
	}
	if stats.LastVisitAt != nil {
		resp.LastVisitAt = stats.LastVisitAt.Format(time.RFC3339)
	}
	return resp, nil
}

func (s *LinkService) findLink(ctx context.Context, slug string) (*model.ShortLink, error) {
	link, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return link, nil
}

func (s *LinkService) toLinkResponse(link *model.ShortLink) *model.LinkResponse {
	var expiresAtStr string
	if link.ExpiresAt != nil {
		expiresAtStr = link.ExpiresAt.Format(time.RFC3339)
	}
	return &model.LinkResponse{
		Slug:            link.Slug,
		ShortURL:        s.shortURL(link.Slug),
		DestinationURL:  link.DestinationURL,
		Visibility:      link.Visibility,
		RequirePasscode: link.RequirePasscode,
		CreatedAt:       link.CreatedAt.Format(time.RFC3339),
		ExpiresAt:       expiresAtStr,
	}
}

func (s *LinkService) shortURL(slug string) string {
	return s.baseURL + "/s/" + slug
}

// trimPasscode trims surrounding whitespace at creation only; the
// resolver compares the stored value byte for byte.
func trimPasscode(p string) string {
	return strings.TrimSpace(p)
}

// Ensure LinkService implements LinkServiceInterface at compile time
var _ LinkServiceInterface = (*LinkService)(nil)
