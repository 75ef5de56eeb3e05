// =============================
// File: internal/perpetuals/builder.go
// =============================
package perpetuals

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/associatedtoken"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/computebudget"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/oracle"
)

// Builder собирает неподписанные транзакции для каждой операции программы.
//
// Порядок инструкций в транзакции всегда один и тот же: compute budget,
// создание нового mint (если нужно), создание ATA (если нет в сети),
// затем основная инструкция. Параметры проверяются до первого RPC-вызова.
type Builder struct {
	client   blockchain.Client
	reader   *Reader
	quotes   *QuoteClient
	resolver *Resolver
	feeds    *oracle.FeedResolver
	budget   computebudget.Config
	logger   *zap.Logger
}

// NewBuilder создает билдер. feeds используется для вывода oracle-аккаунта
// из feed id, когда он не задан явно.
func NewBuilder(
	client blockchain.Client,
	reader *Reader,
	quotes *QuoteClient,
	feeds *oracle.FeedResolver,
	budget computebudget.Config,
	logger *zap.Logger,
) *Builder {
	if feeds == nil {
		feeds = oracle.NewFeedResolver(oracle.DefaultShard)
	}
	return &Builder{
		client:   client,
		reader:   reader,
		quotes:   quotes,
		resolver: reader.Resolver(),
		feeds:    feeds,
		budget:   budget,
		logger:   logger.Named("perpetuals-builder"),
	}
}

// Resolver возвращает резолвер адресов программы.
func (b *Builder) Resolver() *Resolver { return b.resolver }

func (b *Builder) newTx(payer solana.PublicKey) *transaction.Builder {
	return transaction.NewBuilder(payer).SetComputeBudget(b.budget)
}

// finish добавляет основную инструкцию и собирает транзакцию со свежим blockhash.
func (b *Builder) finish(ctx context.Context, op string, tx *transaction.Builder, ix solana.Instruction, err error) (*transaction.Unsigned, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	start := time.Now()
	unsigned, err := tx.AddInstruction(ix).Build(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b.logger.Debug("Transaction built",
		zap.String("operation", op),
		zap.Int("instructions", len(unsigned.Tx.Message.Instructions)),
		zap.Int("extra_signers", len(unsigned.ExtraSigners)),
		zap.Duration("took", time.Since(start)))
	return unsigned, nil
}

// ensureATA возвращает ATA владельца и добавляет инструкцию создания, только если аккаунта нет.
func (b *Builder) ensureATA(ctx context.Context, tx *transaction.Builder, payer, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, ixs, err := associatedtoken.Ensure(ctx, b.client, payer, owner, mint, b.logger)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("token account for %s: %w", mint, err)
	}
	tx.AddInstruction(ixs...)
	return ata, nil
}

// createMint добавляет создание и инициализацию нового mint и регистрирует
// его ключ как дополнительного подписанта.
func (b *Builder) createMint(ctx context.Context, tx *transaction.Builder, payer, authority solana.PublicKey, decimals uint8) (solana.PublicKey, error) {
	mintKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("generate mint keypair: %w", err)
	}
	mint := mintKey.PublicKey()

	lamports, err := b.client.GetMinimumBalanceForRentExemption(ctx, MintAccountSize)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("mint rent: %w", err)
	}

	create, err := system.NewCreateAccountInstruction(lamports, MintAccountSize, TokenProgramID, payer, mint).ValidateAndBuild()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create mint account: %w", err)
	}
	initMint, err := token.NewInitializeMintInstructionBuilder().
		SetDecimals(decimals).
		SetMintAuthority(authority).
		SetMintAccount(mint).
		SetSysVarRentPubkeyAccount(RentSysvarID).
		ValidateAndBuild()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("initialize mint: %w", err)
	}

	tx.AddInstruction(create, initMint).AddSigner(mintKey)
	b.logger.Info("Virtual mint prepared",
		zap.Stringer("mint", mint),
		zap.Uint8("decimals", decimals),
		zap.Uint64("rent_lamports", lamports))
	return mint, nil
}

func (b *Builder) adminAccounts(admin solana.PublicKey) AdminAccounts {
	return AdminAccounts{Admin: admin, Multisig: b.resolver.Multisig()}
}

func (b *Builder) custodyAccounts(admin solana.PublicKey, poolName string, mint solana.PublicKey) (CustodyAccounts, error) {
	pool, err := b.resolver.Pool(poolName)
	if err != nil {
		return CustodyAccounts{}, err
	}
	return CustodyAccounts{
		AdminAccounts:       b.adminAccounts(admin),
		TransferAuthority:   b.resolver.TransferAuthority(),
		Perpetuals:          b.resolver.Perpetuals(),
		Pool:                pool,
		Custody:             b.resolver.Custody(pool, mint),
		CustodyTokenAccount: b.resolver.CustodyTokenAccount(pool, mint),
		CustodyTokenMint:    mint,
	}, nil
}

// resolveOracle подставляет адрес feed-аккаунта Pyth, если он не задан.
func (b *Builder) resolveOracle(o *OracleParams) error {
	if o.OracleType != OraclePyth || !o.OracleAccount.IsZero() {
		return nil
	}
	var zero [32]byte
	if o.FeedID == zero {
		return newValidationError("oracle.feedId", "", "set when oracle account is omitted")
	}
	account, err := oracle.FeedAccount(b.feeds.Shard(), oracle.FeedID(o.FeedID))
	if err != nil {
		return err
	}
	o.OracleAccount = account
	return nil
}

func requirePositive(field string, v uint64) error {
	if v == 0 {
		return newValidationError(field, v, "> 0")
	}
	return nil
}

func requireKey(field string, pk solana.PublicKey) error {
	if pk.IsZero() {
		return newValidationError(field, pk, "a non-zero address")
	}
	return nil
}
