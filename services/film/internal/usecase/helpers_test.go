package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"reelshare/pkg/chain"
	"reelshare/pkg/chain/chaintest"
	"reelshare/pkg/logger"
	"reelshare/pkg/money"
	"reelshare/pkg/queue"
	"reelshare/pkg/s3"
	"reelshare/pkg/wallet"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/model"
	"reelshare/services/film/internal/repo/cache"
	"reelshare/services/film/internal/repo/persistent"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	testNetwork      = "sepolia"
	testWalletSecret = "film-usecase-test-secret-0123456789abcdef"
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) UploadMedia(key string, file io.Reader, _ string) (*s3.Upload, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	sum := sha256.Sum256(data)
	return &s3.Upload{Key: key, ContentHash: hex.EncodeToString(sum[:]), Size: int64(len(data))}, nil
}

func (s *memoryStorage) StreamURL(key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://media.example/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (s *memoryStorage) DeleteFile(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.ViewEvent
}

func (p *recordingPublisher) PublishView(event queue.ViewEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

type fixture struct {
	db       *gorm.DB
	node     *chaintest.Client
	gateway  *chain.Gateway
	deriver  *wallet.Deriver
	platform *chain.KeySigner
	contents persistent.ContentRepository
	records  persistent.LedgerRepository
	ledger   *Ledger
	sessions cache.SessionStore
	orch     PurchaseUseCase
	films    FilmUseCase
	storage  *memoryStorage
	views    *recordingPublisher
	// nextID numbers fixture listings apart from ids the fake node assigns.
	nextID int64
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.UserModel{},
		&model.ContentModel{},
		&model.PurchaseModel{},
		&model.InvestmentModel{},
		&model.EarningModel{},
		&model.PlatformRevenueModel{},
		&model.UnsettledPaymentModel{},
		&model.PayoutModel{},
	))

	deriver, err := wallet.NewDeriver(testWalletSecret)
	require.NoError(t, err)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	platform := chain.NewKeySigner(key)

	log := logger.New()
	node := chaintest.New()
	gw := chain.NewGateway([]*chain.Network{node.Network(testNetwork)}, log, chain.Options{
		ReadRetries:    1,
		RetryInterval:  time.Millisecond,
		PollInterval:   time.Millisecond,
		ReceiptTimeout: 50 * time.Millisecond,
	})

	contents := persistent.NewContentRepository(db)
	users := persistent.NewUserRepository(db)
	records := persistent.NewLedgerRepository(db)
	ledger := NewLedger(records, nil, log)
	sessions := cache.NewMemorySessionStore()
	storage := newMemoryStorage()
	views := &recordingPublisher{}

	orch := NewOrchestrator(contents, users, sessions, gw, deriver, ledger, OrchestratorConfig{
		SettlementDecimals: 6,
		QuoteTTL:           time.Minute,
	}, log)
	films := NewFilmUseCase(contents, users, records, ledger, storage, views, gw, platform, deriver, FilmConfig{
		SettlementDecimals: 6,
		DefaultNetwork:     testNetwork,
		StreamURLTTL:       time.Hour,
		Payouts:            true,
	}, log)

	return &fixture{
		db:       db,
		node:     node,
		gateway:  gw,
		deriver:  deriver,
		platform: platform,
		contents: contents,
		records:  records,
		ledger:   ledger,
		sessions: sessions,
		orch:     orch,
		films:    films,
		storage:  storage,
		views:    views,
		nextID:   100,
	}
}

// createUser inserts an account. An empty wallet makes it custodial.
func (f *fixture) createUser(t *testing.T, role, walletAddress string) string {
	t.Helper()
	id := uuid.New().String()
	custodial, err := f.deriver.Address(id)
	require.NoError(t, err)
	m := &model.UserModel{ID: id, Role: role, CustodialAddress: custodial, IsActive: true}
	if walletAddress != "" {
		m.WalletAddress = &walletAddress
	}
	require.NoError(t, f.db.Create(m).Error)
	return id
}

func (f *fixture) custodialAddress(t *testing.T, userID string) common.Address {
	t.Helper()
	w, err := f.deriver.Derive(userID)
	require.NoError(t, err)
	return w.Address
}

// createContent stores a minted listing with a 60/30/10 split.
func (f *fixture) createContent(t *testing.T, producerID string, mutate func(c *entity.Content)) *entity.Content {
	t.Helper()
	f.nextID++
	content := &entity.Content{
		ProducerID:      producerID,
		Title:           "The Long Take",
		Network:         testNetwork,
		MediaKey:        "films/" + producerID + "/long-take.mp4",
		ChainContentID:  fmt.Sprint(f.nextID),
		TokenID:         fmt.Sprint(f.nextID),
		DirectPrice:     money.FromInt64(5_000_000),
		NFTPrice:        money.FromInt64(50_000_000),
		PricePerShare:   money.FromInt64(1_000_000),
		TotalShares:     100,
		AvailableShares: 100,
		CreatorShare:    60,
		InvestorShare:   30,
		PlatformFee:     10,
		IsActive:        true,
	}
	if mutate != nil {
		mutate(content)
	}
	require.NoError(t, f.contents.Create(content))
	f.node.SetFilm(f.nextID, &chaintest.Film{
		Owner:      f.platform.Address(),
		Metadata:   chain.FilmMetadata{Title: content.Title, Producer: f.platform.Address()},
		RoyaltyBps: 1000,
	})
	return content
}

func (f *fixture) fund(addr common.Address, amount int64) {
	f.node.SetBalance(addr, big.NewInt(amount))
}

func (f *fixture) content(t *testing.T, id string) *entity.Content {
	t.Helper()
	c, err := f.contents.GetByID(id)
	require.NoError(t, err)
	return c
}

func (f *fixture) count(t *testing.T, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func txHash(n int) string {
	return common.BigToHash(big.NewInt(int64(n))).Hex()
}

func settleInvestment(ctx context.Context, l *Ledger, buyerID string, c *entity.Content, shares int64, hash string) (*entity.Purchase, error) {
	return l.Settle(ctx, Settlement{
		BuyerID:     buyerID,
		ContentID:   c.ID,
		Type:        entity.PurchaseInvestment,
		Shares:      shares,
		Network:     c.Network,
		Price:       c.PricePerShare.MulInt(shares),
		ChainAmount: c.PricePerShare.MulInt(shares),
		TxHash:      hash,
	})
}
