package service

import (
	"errors"
	"fmt"
	"go-auth-api/common"
	"go-auth-api/config"
	"go-auth-api/logger"
	"go-auth-api/model"
	"go-auth-api/repository"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

func accessKey() []byte {
	return []byte(config.AppConfig.JWT.AccessSecret)
}

func refreshKey() []byte {
	return []byte(config.AppConfig.JWT.RefreshSecret)
}

// AuthService owns credential verification and the session rotation protocol:
// login, refresh and logout transitions over the single stored refresh token.
type AuthService struct {
	userRepo repository.IUserRepository
}

func NewAuthService(userRepo repository.IUserRepository) *AuthService {
	return &AuthService{userRepo: userRepo}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), config.AppConfig.Auth.BcryptCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), nil
}

func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// GenerateAccessToken mints a short-lived token carrying the account id and
// email, signed with the access secret.
func (s *AuthService) GenerateAccessToken(user *model.User) (string, error) {
	now := time.Now()
	claims := &model.AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWT.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(accessKey())
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign access token")
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// GenerateRefreshToken mints a long-lived token carrying only the account id,
// signed with the distinct refresh secret. The jti claim makes every issued
// token textually unique, so rotation always produces a new value even within
// the same second.
func (s *AuthService) GenerateRefreshToken(user *model.User) (string, error) {
	now := time.Now()
	claims := &model.RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.AppConfig.JWT.RefreshTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(refreshKey())
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", user.ID).Error("Failed to sign refresh token")
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return tokenString, nil
}

// ParseAccessToken verifies signature and expiry and distinguishes the two
// failure kinds so the middleware can report them separately.
func (s *AuthService) ParseAccessToken(tokenString string) (*model.AccessClaims, *common.AppError) {
	claims := &model.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return accessKey(), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired()
		}
		return nil, common.ErrInvalidToken()
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken()
	}
	return claims, nil
}

func (s *AuthService) parseRefreshToken(tokenString string, validateExpiry bool) (*model.RefreshClaims, error) {
	claims := &model.RefreshClaims{}
	parser := jwt.NewParser()
	if !validateExpiry {
		// Logout only needs a signature check; an expired token can still
		// name the session to end.
		parser = jwt.NewParser(jwt.WithoutClaimsValidation())
	}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return refreshKey(), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

// Register creates the account and opens its first session.
func (s *AuthService) Register(req *model.RegisterRequest) (*model.User, *model.TokenPair, *common.AppError) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	hashedPassword, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, nil, common.ErrInternal(err)
	}

	user := &model.User{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    hashedPassword,
		DisplayName: displayName,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, common.ErrDuplicateEmail()
		}
		return nil, nil, common.ErrInternal(err)
	}

	pair, appErr := s.issueTokenPair(user)
	if appErr != nil {
		return nil, nil, appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User registered")

	return user, pair, nil
}

// Login verifies the credentials and replaces any previous session. Unknown
// email and wrong password produce the identical error on purpose.
func (s *AuthService) Login(req *model.LoginRequest) (*model.User, *model.TokenPair, *common.AppError) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, common.ErrInvalidCredentials()
		}
		return nil, nil, common.ErrInternal(err)
	}

	if !s.CheckPasswordHash(req.Password, user.Password) {
		return nil, nil, common.ErrInvalidCredentials()
	}

	pair, appErr := s.issueTokenPair(user)
	if appErr != nil {
		return nil, nil, appErr
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("User logged in")

	return user, pair, nil
}

// Refresh rotates the session: the presented token is exchanged for a brand
// new pair and permanently invalidated. The conditional update in the
// repository guarantees that of two concurrent calls with the same token,
// exactly one wins.
func (s *AuthService) Refresh(presentedToken string) (*model.TokenPair, *common.AppError) {
	claims, err := s.parseRefreshToken(presentedToken, true)
	if err != nil {
		return nil, common.ErrRefreshInvalid()
	}

	user, err := s.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.ErrAccountNotFound(http.StatusForbidden)
		}
		return nil, common.ErrInternal(err)
	}

	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, common.ErrInternal(err)
	}
	refreshToken, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, common.ErrInternal(err)
	}

	rotated, err := s.userRepo.RotateRefreshToken(user.ID, presentedToken, refreshToken)
	if err != nil {
		return nil, common.ErrInternal(err)
	}
	if !rotated {
		// Stored value changed: the session was logged out or the token was
		// already spent by a concurrent rotation.
		logger.Log.WithField("user_id", user.ID).Warn("Refresh attempt with revoked or stale token")
		return nil, common.ErrRefreshRevoked()
	}

	return &model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout clears the stored refresh token. It is idempotent and succeeds
// regardless of whether the presented token still matches the stored one.
func (s *AuthService) Logout(presentedToken string) *common.AppError {
	claims, err := s.parseRefreshToken(presentedToken, false)
	if err != nil {
		return common.ErrInvalidToken()
	}

	if _, err := s.userRepo.GetUserByID(claims.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return common.ErrInternal(err)
	}

	if err := s.userRepo.ClearRefreshToken(claims.UserID); err != nil {
		return common.ErrInternal(err)
	}

	logger.Log.WithField("user_id", claims.UserID).Info("User logged out")
	return nil
}

// Authenticate verifies an access token and loads the account it names,
// without the password hash or refresh token. Used by the auth middleware.
func (s *AuthService) Authenticate(tokenString string) (*model.User, *common.AppError) {
	claims, appErr := s.ParseAccessToken(tokenString)
	if appErr != nil {
		return nil, appErr
	}

	user, err := s.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.ErrAccountNotFound(http.StatusUnauthorized)
		}
		return nil, common.ErrInternal(err)
	}
	return user, nil
}

func (s *AuthService) issueTokenPair(user *model.User) (*model.TokenPair, *common.AppError) {
	accessToken, err := s.GenerateAccessToken(user)
	if err != nil {
		return nil, common.ErrInternal(err)
	}
	refreshToken, err := s.GenerateRefreshToken(user)
	if err != nil {
		return nil, common.ErrInternal(err)
	}

	if err := s.userRepo.UpdateRefreshToken(user.ID, refreshToken); err != nil {
		return nil, common.ErrInternal(err)
	}

	return &model.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
