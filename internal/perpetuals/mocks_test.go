package perpetuals

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
	"github.com/rovshanmuradov/perps-client/internal/oracle"
)

// MockClient - мок blockchain.Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockClient) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	args := m.Called(ctx, pubkey)
	if v := args.Get(0); v != nil {
		return v.(*rpc.GetAccountInfoResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetMultipleAccounts(ctx context.Context, pubkeys ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error) {
	args := m.Called(ctx, pubkeys)
	if v := args.Get(0); v != nil {
		return v.(*rpc.GetMultipleAccountsResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetProgramAccounts(ctx context.Context, programID solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error) {
	args := m.Called(ctx, programID, opts)
	if v := args.Get(0); v != nil {
		return v.(rpc.GetProgramAccountsResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) GetMinimumBalanceForRentExemption(ctx context.Context, dataSize uint64) (uint64, error) {
	args := m.Called(ctx, dataSize)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) GetBalance(ctx context.Context, pubkey solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, pubkey)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	args := m.Called(ctx, signatures)
	if v := args.Get(0); v != nil {
		return v.(*rpc.GetSignatureStatusesResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	if v := args.Get(0); v != nil {
		return v.(*blockchain.SimulationResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	args := m.Called(ctx, signature, commitment)
	return args.Error(0)
}

var _ blockchain.Client = (*MockClient)(nil)

// ---- фикстуры ----

var (
	testUSDC  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	testSOL   = solana.WrappedSol
	testOwner = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
)

func encodeAccount(t *testing.T, discriminator []byte, v interface{}) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	buf.Write(discriminator)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(v))
	return buf.Bytes()
}

func accountInfo(data []byte) *rpc.GetAccountInfoResult {
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)}}
}

// returnLogs имитирует логи симуляции с set_return_data.
func returnLogs(t *testing.T, programID solana.PublicKey, v interface{}) []string {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bin.NewBorshEncoder(buf).Encode(v))
	return []string{
		"Program " + programID.String() + " invoke [1]",
		"Program log: Instruction: View",
		"Program return: " + programID.String() + " " + base64.StdEncoding.EncodeToString(buf.Bytes()),
		"Program " + programID.String() + " success",
	}
}

// market - пул "crypto" с кастоди SOL и USDC.
type market struct {
	client    *MockClient
	resolver  *Resolver
	reader    *Reader
	quotes    *QuoteClient
	builder   *Builder
	poolName  string
	pool      solana.PublicKey
	poolAcc   *PoolAccount
	custodies map[solana.PublicKey]*CustodyAccount
	oracles   map[solana.PublicKey]solana.PublicKey
}

func newMarket(t *testing.T) *market {
	t.Helper()
	client := &MockClient{}
	resolver := NewResolver(DefaultProgramID)
	reader := NewReader(client, resolver, zap.NewNop())
	quotes := NewQuoteClient(client, reader, testOwner, zap.NewNop())
	builder := NewBuilder(client, reader, quotes, oracle.NewFeedResolver(oracle.DefaultShard),
		computebudget.NewDefaultConfig(), zap.NewNop())
	pool, err := resolver.Pool("crypto")
	require.NoError(t, err)

	m := &market{
		client:    client,
		resolver:  resolver,
		reader:    reader,
		quotes:    quotes,
		builder:   builder,
		poolName:  "crypto",
		pool:      pool,
		custodies: make(map[solana.PublicKey]*CustodyAccount),
		oracles:   make(map[solana.PublicKey]solana.PublicKey),
	}

	m.poolAcc = &PoolAccount{Name: m.poolName}
	for _, mint := range []solana.PublicKey{testSOL, testUSDC} {
		key := resolver.Custody(m.pool, mint)
		oracleKey := solana.NewWallet().PublicKey()
		m.poolAcc.Custodies = append(m.poolAcc.Custodies, key)
		m.poolAcc.Ratios = append(m.poolAcc.Ratios, TokenRatios{Target: 5000, Min: 1, Max: 10000})
		m.custodies[key] = &CustodyAccount{
			Pool:         m.pool,
			Mint:         mint,
			TokenAccount: resolver.CustodyTokenAccount(m.pool, mint),
			Decimals:     9,
			IsStable:     mint.Equals(testUSDC),
			Oracle:       OracleParams{OracleAccount: oracleKey, OracleType: OraclePyth},
		}
		m.oracles[key] = oracleKey
	}
	return m
}

// expectPool регистрирует чтение пула и всех его кастоди.
func (m *market) expectPool(t *testing.T) {
	t.Helper()
	m.client.On("GetAccountInfo", mock.Anything, m.pool).
		Return(accountInfo(encodeAccount(t, poolAccountDiscriminator, m.poolAcc)), nil).Maybe()

	accounts := make([]*rpc.Account, 0, len(m.poolAcc.Custodies))
	for _, key := range m.poolAcc.Custodies {
		data := encodeAccount(t, custodyAccountDiscriminator, m.custodies[key])
		accounts = append(accounts, &rpc.Account{Data: rpc.DataBytesOrJSONFromBytes(data)})
		m.client.On("GetAccountInfo", mock.Anything, key).Return(accountInfo(data), nil).Maybe()
	}
	m.client.On("GetMultipleAccounts", mock.Anything, mock.Anything).
		Return(&rpc.GetMultipleAccountsResult{Value: accounts}, nil).Maybe()
}

func (m *market) expectBlockhash() {
	m.client.On("GetLatestBlockhash", mock.Anything).Return(solana.Hash{1, 2, 3}, nil).Maybe()
}

// expectATA задает существование ATA владельца.
func (m *market) expectATA(owner, mint solana.PublicKey, exists bool) solana.PublicKey {
	ata, _, _ := solana.FindAssociatedTokenAddress(owner, mint)
	if exists {
		m.client.On("GetAccountInfo", mock.Anything, ata).Return(accountInfo([]byte{0}), nil).Maybe()
	} else {
		m.client.On("GetAccountInfo", mock.Anything, ata).Return(nil, rpc.ErrNotFound).Maybe()
	}
	return ata
}

func (m *market) expectReturn(t *testing.T, v interface{}) {
	t.Helper()
	m.client.On("SimulateTransaction", mock.Anything, mock.Anything).
		Return(&blockchain.SimulationResult{Logs: returnLogs(t, m.resolver.ProgramID(), v), UnitsConsumed: 42_000}, nil).Once()
}

// programIDs возвращает программы инструкций транзакции по порядку.
func programIDs(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	out := make([]solana.PublicKey, 0, len(tx.Message.Instructions))
	for _, ix := range tx.Message.Instructions {
		out = append(out, tx.Message.AccountKeys[ix.ProgramIDIndex])
	}
	return out
}

// lastInstructionData возвращает данные основной (последней) инструкции.
func lastInstructionData(tx *solana.Transaction) []byte {
	ixs := tx.Message.Instructions
	return []byte(ixs[len(ixs)-1].Data)
}
