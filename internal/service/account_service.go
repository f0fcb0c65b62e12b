package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/charity-tasks-api/internal/dto"
	"github.com/noah-isme/charity-tasks-api/internal/models"
	"github.com/noah-isme/charity-tasks-api/internal/repository"
	appErrors "github.com/noah-isme/charity-tasks-api/pkg/errors"
)

type accountUserStore interface {
	EnsureUser(ctx context.Context, user *models.User) (bool, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindActor(ctx context.Context, userID string) (*models.Actor, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type charityStore interface {
	Create(ctx context.Context, charity *models.Charity) error
	FindByUserID(ctx context.Context, userID string) (*models.Charity, error)
}

type benefactorStore interface {
	Create(ctx context.Context, benefactor *models.Benefactor) error
	FindByUserID(ctx context.Context, userID string) (*models.Benefactor, error)
}

type actorCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// AccountService resolves callers into actors and manages their profiles.
type AccountService struct {
	users       accountUserStore
	charities   charityStore
	benefactors benefactorStore
	cache       actorCache
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAccountService constructs an AccountService. cache may be nil.
func NewAccountService(users accountUserStore, charities charityStore, benefactors benefactorStore, cache actorCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{
		users:       users,
		charities:   charities,
		benefactors: benefactors,
		cache:       cache,
		cacheTTL:    cacheTTL,
		validator:   validate,
		logger:      logger,
	}
}

func actorCacheKey(userID string) string {
	return "actor:" + userID
}

// ResolveActor maps validated token claims to the actor, provisioning the
// user row on the first request of a new identity.
func (s *AccountService) ResolveActor(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error) {
	userID := claims.SubjectID()
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}

	key := actorCacheKey(userID)
	if s.cache != nil {
		var cached models.Actor
		if hit, _ := s.cache.Get(ctx, key, &cached); hit && cached.UserID == userID && actorSettled(&cached) {
			return &cached, nil
		}
	}

	actor, err := s.users.FindActor(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		actor, err = s.provision(ctx, claims)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve user")
	}

	if s.cache != nil && actorSettled(actor) {
		_ = s.cache.Set(ctx, key, actor, s.cacheTTL)
	}
	return actor, nil
}

// actorSettled reports whether the actor owns both role profiles. Profiles
// are only ever added, so a settled actor cannot go stale; anything else may
// be racing a registration and is always read from the database.
func actorSettled(actor *models.Actor) bool {
	return actor.IsCharity() && actor.IsBenefactor()
}

func (s *AccountService) provision(ctx context.Context, claims *models.JWTClaims) (*models.Actor, error) {
	userID := claims.SubjectID()
	username := claims.Username
	if username == "" {
		username = userID
	}

	created, err := s.users.EnsureUser(ctx, &models.User{ID: userID, Username: username, Email: claims.Email})
	if err != nil {
		return nil, err
	}
	if !created && username != userID {
		// The username is taken by another identity; the subject is unique.
		if _, err := s.users.EnsureUser(ctx, &models.User{ID: userID, Username: userID, Email: claims.Email}); err != nil {
			return nil, err
		}
	}

	actor, err := s.users.FindActor(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("provisioned user", zap.String("user_id", userID), zap.String("username", actor.Username))
	return actor, nil
}

// Profile returns the caller's profile with the role profiles it owns.
func (s *AccountService) Profile(ctx context.Context, actor *models.Actor) (*dto.ProfileView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}

	view := &dto.ProfileView{User: *user, IsCharity: actor.IsCharity(), IsBenefactor: actor.IsBenefactor()}
	if actor.IsCharity() {
		charity, err := s.charities.FindByUserID(ctx, actor.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load charity")
		}
		view.Charity = charity
	}
	if actor.IsBenefactor() {
		benefactor, err := s.benefactors.FindByUserID(ctx, actor.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load benefactor")
		}
		view.Benefactor = benefactor
	}
	return view, nil
}

// UpdateProfile replaces the mutable profile fields of the caller.
func (s *AccountService) UpdateProfile(ctx context.Context, actor *models.Actor, req dto.UpdateProfileRequest) (*dto.ProfileView, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	before := *user

	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Email = req.Email
	user.Phone = req.Phone
	user.Address = req.Address
	user.Gender = req.Gender
	user.Age = req.Age
	user.Description = req.Description

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to update profile")
	}

	emitAudit(ctx, s.users, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionProfileUpdate,
		Resource:   "user",
		ResourceID: &actor.UserID,
		OldValues:  auditPayload(before),
		NewValues:  auditPayload(user),
	})
	return s.Profile(ctx, actor)
}

// RegisterCharity creates the caller's charity profile.
func (s *AccountService) RegisterCharity(ctx context.Context, actor *models.Actor, req dto.RegisterCharityRequest) (*models.Charity, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charity payload")
	}
	if actor.IsCharity() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "charity profile already registered")
	}

	charity := &models.Charity{UserID: actor.UserID, Name: req.Name, RegNumber: req.RegNumber}
	if err := s.charities.Create(ctx, charity); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "charity profile already registered")
		}
		return nil, appErrors.Internal(err, "failed to register charity")
	}

	s.forgetActor(ctx, actor.UserID)
	emitAudit(ctx, s.users, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionCharityRegister,
		Resource:   "charity",
		ResourceID: &charity.ID,
		NewValues:  auditPayload(charity),
	})
	return charity, nil
}

// RegisterBenefactor creates the caller's benefactor profile.
func (s *AccountService) RegisterBenefactor(ctx context.Context, actor *models.Actor, req dto.RegisterBenefactorRequest) (*models.Benefactor, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid benefactor payload")
	}
	if actor.IsBenefactor() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "benefactor profile already registered")
	}

	benefactor := &models.Benefactor{UserID: actor.UserID, Experience: models.ExperienceBeginner}
	if req.Experience != nil {
		benefactor.Experience = models.ExperienceLevel(*req.Experience)
	}
	if req.FreeTimePerWeek != nil {
		benefactor.FreeTimePerWeek = *req.FreeTimePerWeek
	}
	if err := s.benefactors.Create(ctx, benefactor); err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "benefactor profile already registered")
		}
		return nil, appErrors.Internal(err, "failed to register benefactor")
	}

	s.forgetActor(ctx, actor.UserID)
	emitAudit(ctx, s.users, s.logger, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionBenefactorRegister,
		Resource:   "benefactor",
		ResourceID: &benefactor.ID,
		NewValues:  auditPayload(benefactor),
	})
	return benefactor, nil
}

func (s *AccountService) forgetActor(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, actorCacheKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate cached actor", zap.String("user_id", userID), zap.Error(err))
	}
}
