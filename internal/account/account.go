// Package account handles registration, password login with JWT issuing and
// the one-to-one user profile.
package account

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/talkincode/pizzeria/internal/access"
	"github.com/talkincode/pizzeria/internal/apperr"
	"github.com/talkincode/pizzeria/internal/domain"
	"github.com/talkincode/pizzeria/pkg/common"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type ProfileInput struct {
	Phone   string
	Address string
}

type Service struct {
	db     *gorm.DB
	tokens *TokenIssuer
}

func NewService(db *gorm.DB, tokens *TokenIssuer) *Service {
	return &Service{db: db, tokens: tokens}
}

// Register creates a regular (non-staff) account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if !usernamePattern.MatchString(in.Username) {
		return nil, apperr.Validation("username",
			"enter a valid username of up to 150 letters, digits and @/./+/-/_ characters")
	}
	if in.Password == "" {
		return nil, apperr.Validation("password", "this field may not be blank")
	}
	return s.create(ctx, in, false)
}

// EnsureUser creates the account when the username is free and reports
// whether it did. Used for seeding.
func (s *Service) EnsureUser(ctx context.Context, in RegisterInput, staff bool) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("username = ?", in.Username).Count(&n).Error; err != nil {
		return false, apperr.FromStore(err, "user")
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.create(ctx, in, staff); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) create(ctx context.Context, in RegisterInput, staff bool) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	now := time.Now()
	u := domain.User{
		ID:        common.UUIDint64(),
		Username:  in.Username,
		Email:     strings.TrimSpace(in.Email),
		Password:  string(hash),
		IsStaff:   staff,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&domain.User{}).Where("username = ?", u.Username).Count(&n).Error; err != nil {
			return apperr.FromStore(err, "user")
		}
		if n > 0 {
			return apperr.Conflict("USERNAME_TAKEN", "a user with that username already exists")
		}
		return apperr.FromStore(tx.Create(&u).Error, "user")
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username), zap.Bool("staff", staff))
	return &u, nil
}

// Login checks the password and returns a signed access token. Unknown users
// and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, *domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.FromStore(err, "user")
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, nil, apperr.Unauthenticated("no active account found with the given credentials")
	}

	tok, err := s.tokens.Issue(&u)
	if err != nil {
		return nil, nil, err
	}
	u.LastLogin = time.Now()
	if err := s.db.WithContext(ctx).Model(&u).Update("last_login", u.LastLogin).Error; err != nil {
		zap.L().Warn("update last login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	return tok, &u, nil
}

// GetProfile returns the actor's profile, an unsaved empty one if none exists yet.
func (s *Service) GetProfile(ctx context.Context, actor *access.Actor) (*domain.UserProfile, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpRead, access.Owned(access.Profile, actor.UserID)); err != nil {
		return nil, err
	}
	var p domain.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", actor.UserID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.UserProfile{UserID: actor.UserID}, nil
	}
	if err != nil {
		return nil, apperr.FromStore(err, "profile")
	}
	return &p, nil
}

// UpdateProfile creates or replaces the actor's profile.
func (s *Service) UpdateProfile(ctx context.Context, actor *access.Actor, in ProfileInput) (*domain.UserProfile, error) {
	if err := access.Authenticated(actor); err != nil {
		return nil, err
	}
	if err := access.Require(actor, access.OpUpdate, access.Owned(access.Profile, actor.UserID)); err != nil {
		return nil, err
	}
	in.Phone = strings.TrimSpace(in.Phone)
	if len(in.Phone) > 15 {
		return nil, apperr.Validation("phone", "ensure this field has no more than 15 characters")
	}

	var p domain.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", actor.UserID).First(&p).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.FromStore(err, "profile")
		}
		now := time.Now()
		p.Phone = in.Phone
		p.Address = strings.TrimSpace(in.Address)
		p.UpdatedAt = now
		if err != nil {
			p.ID = common.UUIDint64()
			p.UserID = actor.UserID
			p.CreatedAt = now
			return apperr.FromStore(tx.Create(&p).Error, "profile")
		}
		return apperr.FromStore(tx.Save(&p).Error, "profile")
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Actor reloads the identity behind verified token claims, so revoked staff
// rights and deleted accounts apply before the token expires.
func (s *Service) Actor(ctx context.Context, claims *Claims) (*access.Actor, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Select("id", "username", "is_staff").First(&u, claims.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Unauthenticated("the account behind this token no longer exists")
	}
	if err != nil {
		return nil, apperr.FromStore(err, "user")
	}
	a := claims.Actor()
	a.Username = u.Username
	a.Privileged = u.IsStaff
	return a, nil
}
