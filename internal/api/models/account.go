package models

// Account links a platform username to a wallet address.
type Account struct {
	ID            int64  `db:"id"`
	Username      string `db:"username"`
	WalletAddress string `db:"wallet_address"`
	PasswordHash  string `db:"password_hash"`
}

// RegisterRequest defines the structure for an account registration request.
type RegisterRequest struct {
	Username      string `json:"username" binding:"required,min=3,max=20"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	Password      string `json:"password" binding:"required,min=6,max=50"`
}

// LoginRequest defines the structure for a login request.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse defines the structure for a successful login response.
type LoginResponse struct {
	Token         string `json:"token"`
	WalletAddress string `json:"walletAddress"`
}
