// Package auth はアカウント登録・パスワード認証・セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/aidbook/internal/form"
	"github.com/hitoshi/aidbook/internal/model"
	"github.com/hitoshi/aidbook/internal/repository"
)

const maxUsernameLength = 150

// ユーザー名に使える文字（英数字と @ . + - _）。
var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // 0の場合はbcrypt.DefaultCost
}

// RegisterInput は支援提供者の登録フォームの値。
type RegisterInput struct {
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	FirstName       string   `json:"first_name"`
	LastName        string   `json:"last_name"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"password_confirm"`
	Bio             string   `json:"bio"`
	CategoryIDs     []string `json:"help_categories"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	accounts    repository.AccountRepository
	sessionRepo repository.SessionRepository
	categories  repository.CategoryRepository
	config      ServiceConfig
	// ユーザーが存在しない場合も比較を行い、応答時間からユーザーの有無を推測されないようにする
	dummyHash []byte
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	categories repository.CategoryRepository,
	config ServiceConfig,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("aidbook-dummy-password"), config.BcryptCost)
	return &Service{
		accounts:    accounts,
		sessionRepo: sessionRepo,
		categories:  categories,
		config:      config,
		dummyHash:   dummy,
		now:         time.Now,
	}
}

// Register はアカウントと支援提供者を作成し、ログインセッションを発行する。
// 入力エラーは*form.ValidationErrors、ユーザー名の重複はConflictのAPIErrorとして返す。
// アカウント・提供者・担当支援種別は同一トランザクションで作成される。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, *model.Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := s.validateRegistration(ctx, in); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	account := &model.Account{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	provider := &model.Provider{
		ID:          uuid.New().String(),
		AccountID:   account.ID,
		Username:    account.Username,
		Bio:         strings.TrimSpace(in.Bio),
		CategoryIDs: in.CategoryIDs,
		CreatedAt:   now,
	}

	if err := s.accounts.CreateWithProvider(ctx, account, provider); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, nil, model.NewUsernameConflictError()
		}
		return nil, nil, fmt.Errorf("failed to create account and provider: %w", err)
	}

	slog.Info("provider registered",
		slog.String("account_id", account.ID),
		slog.String("provider_id", provider.ID),
		slog.Int("categories", len(in.CategoryIDs)),
	)

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return account, session, nil
}

func (s *Service) validateRegistration(ctx context.Context, in RegisterInput) error {
	verrs := &form.ValidationErrors{}

	switch {
	case in.Username == "":
		verrs.Add("username", model.ErrCodeMissingRequiredField, "この項目は必須です。")
	case len([]rune(in.Username)) > maxUsernameLength:
		verrs.Add("username", model.ErrCodeInvalidInput, fmt.Sprintf("%d文字以内で入力してください。", maxUsernameLength))
	case !usernamePattern.MatchString(in.Username):
		verrs.Add("username", model.ErrCodeInvalidInput, "英数字と @ . + - _ のみ使用できます。")
	}

	if in.Email != "" {
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			verrs.Add("email", model.ErrCodeInvalidInput, "有効なメールアドレスを入力してください。")
		}
	}

	if in.Password == "" {
		verrs.Add("password", model.ErrCodeMissingRequiredField, "この項目は必須です。")
	}
	if in.PasswordConfirm == "" {
		verrs.Add("password_confirm", model.ErrCodeMissingRequiredField, "この項目は必須です。")
	} else if in.Password != in.PasswordConfirm {
		verrs.Add("password_confirm", model.ErrCodeInvalidInput, "パスワードが一致しません。")
	}

	if len(in.CategoryIDs) == 0 {
		verrs.Add("help_categories", model.ErrCodeMissingRequiredField, "提供する支援種別を1つ以上選択してください。")
	}
	for _, id := range in.CategoryIDs {
		c, err := s.categories.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find category: %w", err)
		}
		if c == nil {
			verrs.Add("help_categories", model.ErrCodeInvalidInput, fmt.Sprintf("選択された支援種別は存在しません: %s", id))
			break
		}
	}

	if verrs.HasErrors() {
		return verrs
	}
	return nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザー名・パスワードのどちらが誤っていても同じInvalidCredentialsのAPIErrorを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.Account, *model.Session, error) {
	account, err := s.accounts.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("account logged in", slog.String("account_id", account.ID))
	return account, session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("account logged out", slog.String("session_id", sessionID))
	return nil
}

// CurrentAccount はアカウントIDからログイン中のアカウントを取得する。
func (s *Service) CurrentAccount(ctx context.Context, accountID string) (*model.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, model.NewUnauthorizedError()
	}
	return account, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, accountID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		AccountID: accountID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
