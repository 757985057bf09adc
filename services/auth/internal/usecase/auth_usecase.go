package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"reelshare/pkg/apperr"
	"reelshare/pkg/chain"
	"reelshare/pkg/jwt"
	"reelshare/pkg/logger"
	"reelshare/pkg/wallet"
	"reelshare/services/auth/internal/entity"
	"reelshare/services/auth/internal/repo/cache"
	"reelshare/services/auth/internal/repo/persistent"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const NonceTTL = 5 * time.Minute

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthUseCase interface {
	Register(email, username, password string, role entity.UserRole) (*entity.User, string, error)
	Login(email, password string) (*entity.User, string, error)
	GetUser(userID string) (*entity.User, error)
	IssueNonce(ctx context.Context, address string) (string, error)
	Authenticate(ctx context.Context, address, signature string) (*entity.User, string, error)
	Balances(ctx context.Context, userID string, networks []string) (wallet.Balances, error)
}

// Networks resolves configured chains.
type Networks interface {
	Network(name string) (*chain.Network, error)
	Networks() []*chain.Network
}

type BalanceAggregator interface {
	Aggregate(ctx context.Context, address string, networks []*chain.Network) (wallet.Balances, error)
}

type authUseCase struct {
	userRepo   persistent.UserRepository
	nonces     cache.NonceStore
	jwtService *jwt.Service
	deriver    *wallet.Deriver
	networks   Networks
	balances   BalanceAggregator
	logger     *logger.Logger
}

func NewAuthUseCase(
	userRepo persistent.UserRepository,
	nonces cache.NonceStore,
	jwtService *jwt.Service,
	deriver *wallet.Deriver,
	networks Networks,
	balances BalanceAggregator,
	logger *logger.Logger,
) AuthUseCase {
	return &authUseCase{
		userRepo:   userRepo,
		nonces:     nonces,
		jwtService: jwtService,
		deriver:    deriver,
		networks:   networks,
		balances:   balances,
		logger:     logger,
	}
}

// SignInMessage is the exact text a wallet signs to authenticate.
func SignInMessage(address, nonce string) string {
	return fmt.Sprintf("Sign in to ReelShare\nAddress: %s\nNonce: %s", strings.ToLower(address), nonce)
}

func (uc *authUseCase) newUser(id string, role entity.UserRole) (*entity.User, error) {
	custodial, err := uc.deriver.Address(id)
	if err != nil {
		return nil, fmt.Errorf("failed to derive custodial wallet: %w", err)
	}
	return &entity.User{
		ID:               id,
		Role:             role,
		CustodialAddress: custodial,
		IsActive:         true,
	}, nil
}

func (uc *authUseCase) Register(email, username, password string, role entity.UserRole) (*entity.User, string, error) {
	if role == "" {
		role = entity.RoleViewer
	}
	if !role.Valid() {
		return nil, "", apperr.Validation("invalid role %q", role)
	}

	if _, err := uc.userRepo.GetByEmail(email); err == nil {
		return nil, "", apperr.Conflict("user with this email already exists")
	}
	if _, err := uc.userRepo.GetByUsername(username); err == nil {
		return nil, "", apperr.Conflict("username already taken")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		uc.logger.Error("Failed to hash password: %v", err)
		return nil, "", fmt.Errorf("failed to process registration")
	}

	user, err := uc.newUser(uuid.New().String(), role)
	if err != nil {
		uc.logger.Error("Failed to derive wallet: %v", err)
		return nil, "", err
	}
	user.Email = email
	user.Username = username
	user.Password = string(hashedPassword)

	if err := uc.userRepo.Create(user); err != nil {
		uc.logger.Error("Failed to create user: %v", err)
		return nil, "", fmt.Errorf("failed to create user")
	}

	token, err := uc.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, "", fmt.Errorf("failed to generate token")
	}

	uc.logger.Info("Registered user %s with custodial wallet %s", user.ID, wallet.ShortAddress(user.CustodialAddress))
	user.Password = ""
	return user, token, nil
}

func (uc *authUseCase) Login(email, password string) (*entity.User, string, error) {
	user, err := uc.userRepo.GetByEmail(email)
	if err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if user.Password == "" {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, "", apperr.Authorization("account is deactivated")
	}

	token, err := uc.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, "", fmt.Errorf("failed to generate token")
	}

	user.Password = ""
	return user, token, nil
}

func (uc *authUseCase) GetUser(userID string) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Password = ""
	return user, nil
}

func (uc *authUseCase) IssueNonce(ctx context.Context, address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", apperr.Validation("invalid wallet address")
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := hex.EncodeToString(buf)

	if err := uc.nonces.Save(ctx, address, nonce, NonceTTL); err != nil {
		uc.logger.Error("Failed to store nonce for %s: %v", wallet.ShortAddress(address), err)
		return "", fmt.Errorf("failed to store nonce: %w", err)
	}
	return SignInMessage(address, nonce), nil
}

// Authenticate verifies a signature over the last issued challenge and signs
// in the wallet's owner, creating a viewer account on first use.
func (uc *authUseCase) Authenticate(ctx context.Context, address, signature string) (*entity.User, string, error) {
	if !common.IsHexAddress(address) {
		return nil, "", apperr.Validation("invalid wallet address")
	}

	nonce, err := uc.nonces.Take(ctx, address)
	if err != nil {
		if errors.Is(err, cache.ErrNonceNotFound) {
			return nil, "", apperr.Authorization("sign-in challenge expired, request a new nonce")
		}
		return nil, "", fmt.Errorf("failed to load nonce: %w", err)
	}

	if !chain.VerifySignature(SignInMessage(address, nonce), signature, address) {
		uc.logger.Warn("Signature verification failed for %s", wallet.ShortAddress(address))
		return nil, "", apperr.Authorization("signature does not match wallet address")
	}

	user, err := uc.userRepo.GetByWalletAddress(address)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, "", err
		}
		user, err = uc.newUser(uuid.New().String(), entity.RoleViewer)
		if err != nil {
			return nil, "", err
		}
		user.Username = strings.ToLower(address)
		user.WalletAddress = strings.ToLower(address)
		if err := uc.userRepo.Create(user); err != nil {
			uc.logger.Error("Failed to create wallet user: %v", err)
			return nil, "", fmt.Errorf("failed to create user")
		}
		uc.logger.Info("Created wallet user %s for %s", user.ID, wallet.ShortAddress(address))
	}

	if !user.IsActive {
		return nil, "", apperr.Authorization("account is deactivated")
	}

	token, err := uc.jwtService.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		uc.logger.Error("Failed to generate token: %v", err)
		return nil, "", fmt.Errorf("failed to generate token")
	}

	user.Password = ""
	return user, token, nil
}

func (uc *authUseCase) Balances(ctx context.Context, userID string, names []string) (wallet.Balances, error) {
	user, err := uc.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	networks := uc.networks.Networks()
	if len(names) > 0 {
		networks = networks[:0:0]
		for _, name := range names {
			n, err := uc.networks.Network(name)
			if err != nil {
				return nil, err
			}
			networks = append(networks, n)
		}
	}

	return uc.balances.Aggregate(ctx, user.ActiveAddress(), networks)
}
