package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/models"
	"github.com/gp1080/MrGamePlayer-sub001/internal/api/repository"
)

func jwtSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("dev_only_secret")
}

// AccountService defines the interface for account business logic.
type AccountService interface {
	Register(ctx context.Context, req *models.RegisterRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
	GuestLogin(ctx context.Context) (string, error)
}

type accountService struct {
	accountRepo repository.AccountRepository
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountRepo repository.AccountRepository) AccountService {
	return &accountService{accountRepo: accountRepo}
}

// Register creates an account for a wallet address.
func (s *accountService) Register(ctx context.Context, req *models.RegisterRequest) error {
	existing, err := s.accountRepo.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("username already taken")
	}

	byWallet, err := s.accountRepo.GetAccountByWallet(ctx, req.WalletAddress)
	if err != nil {
		return err
	}
	if byWallet != nil {
		return errors.New("wallet address already registered")
	}

	account := &models.Account{
		Username:      req.Username,
		WalletAddress: req.WalletAddress,
	}
	return s.accountRepo.CreateAccount(ctx, account, req.Password)
}

// Login verifies credentials and returns a JWT plus the wallet address
// the client should use as its player identity on the socket.
func (s *accountService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	account, err := s.accountRepo.GetAccountByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("invalid username or password")
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		return nil, errors.New("invalid username or password")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    account.ID,
		"un":     account.Username,
		"wallet": account.WalletAddress,
		"exp":    time.Now().Add(time.Hour * 72).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret())
	if err != nil {
		return nil, err
	}

	return &models.LoginResponse{Token: tokenString, WalletAddress: account.WalletAddress}, nil
}

// GuestLogin generates a throwaway identity for wallet-less players.
func (s *accountService) GuestLogin(ctx context.Context) (string, error) {
	return "guest-" + uuid.New().String(), nil
}
