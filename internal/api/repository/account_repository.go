package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/gp1080/MrGamePlayer-sub001/internal/api/models"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account, password string) error
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByWallet(ctx context.Context, walletAddress string) (*models.Account, error)
}

type sqliteAccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new SQLite-based AccountRepository.
func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &sqliteAccountRepository{db: db}
}

// CreateAccount hashes the password and inserts a new account.
func (r *sqliteAccountRepository) CreateAccount(ctx context.Context, account *models.Account, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	account.PasswordHash = string(hashedPassword)

	query := `INSERT INTO accounts (username, wallet_address, password_hash) VALUES (?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, account.Username, account.WalletAddress, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByUsername retrieves an account by username. A missing
// account is (nil, nil), not an error.
func (r *sqliteAccountRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, username, wallet_address, password_hash FROM accounts WHERE username = ?`
	err := r.db.GetContext(ctx, &account, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}
	return &account, nil
}

// GetAccountByWallet retrieves an account by wallet address.
func (r *sqliteAccountRepository) GetAccountByWallet(ctx context.Context, walletAddress string) (*models.Account, error) {
	var account models.Account
	query := `SELECT id, username, wallet_address, password_hash FROM accounts WHERE wallet_address = ?`
	err := r.db.GetContext(ctx, &account, query, walletAddress)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by wallet: %w", err)
	}
	return &account, nil
}
