package bot

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
	"github.com/rovshanmuradov/mirror-bot/internal/executor"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
	"github.com/rovshanmuradov/mirror-bot/internal/strategy"
	"github.com/rovshanmuradov/mirror-bot/internal/stream"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

type mockClient struct {
	mu      sync.Mutex
	sends   int
	balance uint64
}

func (m *mockClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	return solana.Hash{1}, nil
}

func (m *mockClient) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	return solana.Signature{9}, nil
}

func (m *mockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	return m.SendTransaction(ctx, tx)
}

func (m *mockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	return &blockchain.SimulationResult{}, nil
}

func (m *mockClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	return nil, nil
}

func (m *mockClient) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	return nil
}

func (m *mockClient) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	return 0, nil
}

func (m *mockClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, nil
}

func (m *mockClient) GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey) ([]blockchain.TokenAccount, error) {
	return nil, nil
}

func (m *mockClient) sendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sends
}

var _ blockchain.Client = (*mockClient)(nil)

// pump.fun swap fixture: the buy discriminator followed by token and SOL
// amounts, against the standard twelve-account layout.
var buyDisc = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
var sellDisc = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}

func swapInstruction(disc []byte, trader, mint solana.PublicKey, tokenAmount, solAmount uint64) domain.CompiledInstruction {
	accounts := make([]solana.PublicKey, 12)
	for i := range accounts {
		accounts[i] = solana.NewWallet().PublicKey()
	}
	accounts[2] = mint
	accounts[6] = trader
	accounts[10] = pumpfun.EventAuthority
	accounts[11] = pumpfun.ProgramID

	data := make([]byte, 24)
	copy(data[0:8], disc)
	binary.LittleEndian.PutUint64(data[8:16], tokenAmount)
	binary.LittleEndian.PutUint64(data[16:24], solAmount)

	return domain.CompiledInstruction{
		ProgramID: pumpfun.ProgramID,
		Accounts:  accounts,
		Data:      data,
	}
}

func newTestService(t *testing.T, client blockchain.Client, trader solana.PublicKey) *Service {
	t.Helper()
	logger := zap.NewNop()

	kp := solana.NewWallet()
	w, err := wallet.New(kp.PrivateKey.String())
	require.NoError(t, err)

	bus := events.NewBus(logger, 16)
	t.Cleanup(func() {
		_ = bus.Shutdown(context.Background())
	})

	book, err := ledger.New(logger, bus, 100)
	require.NoError(t, err)

	registry, err := dex.NewRegistry(logger, pumpfun.New(logger))
	require.NoError(t, err)

	strat, err := strategy.New(logger, book,
		strategy.ProportionalSizer{Ratio: 0.1, MaxLamports: 500_000_000},
		strategy.Options{SlippageBps: 500})
	require.NoError(t, err)

	exec, err := executor.New(logger, client, w, registry, book, bus, executor.Options{})
	require.NoError(t, err)

	filter, err := stream.NewWalletFilter(map[solana.PublicKey]struct{}{trader: {}})
	require.NoError(t, err)

	return &Service{
		logger:   logger,
		wallet:   w,
		client:   client,
		bus:      bus,
		book:     book,
		registry: registry,
		strat:    strat,
		exec:     exec,
		filter:   filter,
	}
}

func TestPipelineMirrorsBuy(t *testing.T) {
	trader := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	client := &mockClient{balance: 50_000}
	svc := newTestService(t, client, trader)

	ev := &domain.TransactionEvent{
		Signature: solana.Signature{1},
		Accounts:  []solana.PublicKey{trader},
		Instructions: []domain.CompiledInstruction{
			// Observed: 1M tokens for 2 SOL.
			swapInstruction(buyDisc, trader, mint, 1_000_000, 2_000_000_000),
		},
	}

	g, ctx := errgroup.WithContext(context.Background())
	svc.handleEvent(ctx, g, ev)
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, client.sendCount())

	pos, ok := svc.book.Get(mint)
	require.True(t, ok)
	assert.Equal(t, domain.PositionActive, pos.State)
	assert.Equal(t, uint64(50_000), pos.Amount)
	assert.Equal(t, int64(1), svc.strat.Issued())
}

func TestPipelineIgnoresUnmonitoredWallet(t *testing.T) {
	trader := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()
	client := &mockClient{}
	svc := newTestService(t, client, trader)

	ev := &domain.TransactionEvent{
		Accounts: []solana.PublicKey{other},
		Instructions: []domain.CompiledInstruction{
			swapInstruction(buyDisc, other, solana.NewWallet().PublicKey(), 1, 1),
		},
	}

	g, ctx := errgroup.WithContext(context.Background())
	svc.handleEvent(ctx, g, ev)
	require.NoError(t, g.Wait())

	assert.Zero(t, client.sendCount())
	assert.Zero(t, svc.book.Len())
}

func TestPipelineIgnoresUnrecognizedTransaction(t *testing.T) {
	trader := solana.NewWallet().PublicKey()
	client := &mockClient{}
	svc := newTestService(t, client, trader)

	// The trader is mentioned but the transaction holds no known swap.
	ev := &domain.TransactionEvent{
		Accounts: []solana.PublicKey{trader},
		Instructions: []domain.CompiledInstruction{
			{ProgramID: solana.SystemProgramID, Data: []byte{2, 0, 0, 0}},
		},
	}

	g, ctx := errgroup.WithContext(context.Background())
	svc.handleEvent(ctx, g, ev)
	require.NoError(t, g.Wait())

	assert.Zero(t, client.sendCount())
	assert.Zero(t, svc.book.Len())
}

func TestPipelineSkipsUntrackedSell(t *testing.T) {
	trader := solana.NewWallet().PublicKey()
	client := &mockClient{}
	svc := newTestService(t, client, trader)

	ev := &domain.TransactionEvent{
		Accounts: []solana.PublicKey{trader},
		Instructions: []domain.CompiledInstruction{
			swapInstruction(sellDisc, trader, solana.NewWallet().PublicKey(), 1_000_000, 200_000_000),
		},
	}

	g, ctx := errgroup.WithContext(context.Background())
	svc.handleEvent(ctx, g, ev)
	require.NoError(t, g.Wait())

	assert.Zero(t, client.sendCount())
	assert.Zero(t, svc.book.Len())
}
