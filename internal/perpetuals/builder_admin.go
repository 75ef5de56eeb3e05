// =============================
// File: internal/perpetuals/builder_admin.go
// =============================
package perpetuals

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/programs/associatedtoken"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
)

// InitRequest - параметры инициализации программы.
type InitRequest struct {
	UpgradeAuthority solana.PublicKey
	Admins           []solana.PublicKey
	MinSignatures    uint8
	Permissions      Permissions
}

// Init собирает транзакцию init. Подписывает upgrade authority программы.
func (b *Builder) Init(ctx context.Context, req InitRequest) (*transaction.Unsigned, error) {
	if err := ValidateInit(req.MinSignatures, len(req.Admins)); err != nil {
		return nil, err
	}
	tx := b.newTx(req.UpgradeAuthority)
	ix, err := NewInitInstruction(b.resolver.ProgramID(), InitAccounts{
		UpgradeAuthority:  req.UpgradeAuthority,
		Multisig:          b.resolver.Multisig(),
		TransferAuthority: b.resolver.TransferAuthority(),
		Perpetuals:        b.resolver.Perpetuals(),
		ProgramData:       b.resolver.ProgramData(),
		Program:           b.resolver.ProgramID(),
		Admins:            req.Admins,
	}, InitParams{MinSignatures: req.MinSignatures, Permissions: req.Permissions})
	return b.finish(ctx, "init", tx, ix, err)
}

// SetAdminSigners заменяет набор админов multisig.
func (b *Builder) SetAdminSigners(ctx context.Context, admin solana.PublicKey, admins []solana.PublicKey, minSignatures uint8) (*transaction.Unsigned, error) {
	if err := ValidateInit(minSignatures, len(admins)); err != nil {
		return nil, err
	}
	tx := b.newTx(admin)
	ix, err := NewSetAdminSignersInstruction(b.resolver.ProgramID(), b.adminAccounts(admin), admins,
		SetAdminSignersParams{MinSignatures: minSignatures})
	return b.finish(ctx, "setAdminSigners", tx, ix, err)
}

func (b *Builder) SetPermissions(ctx context.Context, admin solana.PublicKey, permissions Permissions) (*transaction.Unsigned, error) {
	tx := b.newTx(admin)
	ix, err := NewSetPermissionsInstruction(b.resolver.ProgramID(), b.adminAccounts(admin), b.resolver.Perpetuals(), permissions)
	return b.finish(ctx, "setPermissions", tx, ix, err)
}

// SetTestTime работает только в тестовой сборке программы.
func (b *Builder) SetTestTime(ctx context.Context, admin solana.PublicKey, unixTime int64) (*transaction.Unsigned, error) {
	tx := b.newTx(admin)
	ix, err := NewSetTestTimeInstruction(b.resolver.ProgramID(), b.adminAccounts(admin), b.resolver.Perpetuals(),
		SetTestTimeParams{Time: unixTime})
	return b.finish(ctx, "setTestTime", tx, ix, err)
}

// CreateStableMint создает тестовый стейблкоин-mint с authority у admin
// и ATA админа для него. Адрес mint - первый из ExtraSigners.
func (b *Builder) CreateStableMint(ctx context.Context, admin solana.PublicKey, decimals uint8) (*transaction.Unsigned, solana.PublicKey, error) {
	tx := b.newTx(admin)
	mint, err := b.createMint(ctx, tx, admin, admin, decimals)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("createStableMint: %w", err)
	}
	ix, err := associatedtoken.NewCreateIdempotentInstruction(admin, admin, mint)
	unsigned, err := b.finish(ctx, "createStableMint", tx, ix, err)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return unsigned, mint, nil
}

func (b *Builder) poolAccounts(admin solana.PublicKey, name string) (PoolAccounts, error) {
	pool, err := b.resolver.Pool(name)
	if err != nil {
		return PoolAccounts{}, err
	}
	return PoolAccounts{
		AdminAccounts:     b.adminAccounts(admin),
		TransferAuthority: b.resolver.TransferAuthority(),
		Perpetuals:        b.resolver.Perpetuals(),
		Pool:              pool,
		LPTokenMint:       b.resolver.LPTokenMint(pool),
	}, nil
}

// AddPool создает пул и его LP mint.
func (b *Builder) AddPool(ctx context.Context, admin solana.PublicKey, name string) (*transaction.Unsigned, error) {
	accounts, err := b.poolAccounts(admin, name)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(admin)
	ix, err := NewAddPoolInstruction(b.resolver.ProgramID(), accounts, AddPoolParams{Name: name})
	return b.finish(ctx, "addPool", tx, ix, err)
}

// RemovePool удаляет пул. Пул должен быть без кастоди.
func (b *Builder) RemovePool(ctx context.Context, admin solana.PublicKey, name string) (*transaction.Unsigned, error) {
	accounts, err := b.poolAccounts(admin, name)
	if err != nil {
		return nil, err
	}
	pool, err := b.reader.GetPool(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(pool.Custodies) > 0 {
		return nil, newValidationError("pool custodies", len(pool.Custodies), "0 before the pool can be removed")
	}
	tx := b.newTx(admin)
	ix, err := NewRemovePoolInstruction(b.resolver.ProgramID(), accounts)
	return b.finish(ctx, "removePool", tx, ix, err)
}

// VirtualMint описывает новый mint синтетического инструмента.
type VirtualMint struct {
	Decimals uint8
}

// AddCustodyRequest - параметры добавления кастоди.
// Для виртуального инструмента Mint можно не задавать: будет создан новый
// mint с Virtual.Decimals, его authority - transfer authority программы.
type AddCustodyRequest struct {
	Admin    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Virtual  *VirtualMint
	Config   CustodyConfig
}

// AddCustody собирает addCustodyInit и addCustody в одной транзакции.
func (b *Builder) AddCustody(ctx context.Context, req AddCustodyRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if req.Mint.IsZero() && req.Virtual == nil {
		return nil, newValidationError("mint", req.Mint, "set for non-virtual custody")
	}
	cfg := req.Config
	if req.Virtual != nil {
		cfg.IsVirtual = true
	}
	if err := b.resolveOracle(&cfg.Oracle); err != nil {
		return nil, err
	}
	if err := ValidateCustodyConfig(cfg, 0); err != nil {
		return nil, err
	}

	pool, err := b.reader.GetPool(ctx, req.PoolName)
	if err != nil {
		return nil, err
	}
	if len(cfg.Ratios) != len(pool.Custodies)+1 {
		return nil, newValidationError("ratios", len(cfg.Ratios),
			fmt.Sprintf("exactly %d entries (one per custody)", len(pool.Custodies)+1))
	}

	tx := b.newTx(req.Admin)
	mint := req.Mint
	if mint.IsZero() {
		mint, err = b.createMint(ctx, tx, req.Admin, b.resolver.TransferAuthority(), req.Virtual.Decimals)
		if err != nil {
			return nil, err
		}
	}

	accounts, err := b.custodyAccounts(req.Admin, req.PoolName, mint)
	if err != nil {
		return nil, err
	}
	initIx, err := NewAddCustodyInitInstruction(b.resolver.ProgramID(), accounts)
	if err != nil {
		return nil, fmt.Errorf("addCustodyInit: %w", err)
	}
	tx.AddInstruction(initIx)

	b.logger.Info("Adding custody",
		zap.String("pool", req.PoolName),
		zap.Stringer("mint", mint),
		zap.Stringer("custody", accounts.Custody),
		zap.Bool("virtual", cfg.IsVirtual))

	ix, err := NewAddCustodyInstruction(b.resolver.ProgramID(), accounts, cfg)
	return b.finish(ctx, "addCustody", tx, ix, err)
}

// RemoveCustodyRequest - Ratios задаются для оставшихся кастоди пула.
type RemoveCustodyRequest struct {
	Admin    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Ratios   []TokenRatios
}

func (b *Builder) RemoveCustody(ctx context.Context, req RemoveCustodyRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if err := requireKey("mint", req.Mint); err != nil {
		return nil, err
	}
	if len(req.Ratios) > 0 {
		if err := ValidateRatios(req.Ratios); err != nil {
			return nil, err
		}
	}

	pool, err := b.reader.GetPool(ctx, req.PoolName)
	if err != nil {
		return nil, err
	}
	accounts, err := b.custodyAccounts(req.Admin, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}
	if pool.CustodyIndex(accounts.Custody) < 0 {
		return nil, &NotFoundError{Kind: "custody", Key: fmt.Sprintf("%s/%s", req.PoolName, req.Mint)}
	}
	if len(req.Ratios) != len(pool.Custodies)-1 {
		return nil, newValidationError("ratios", len(req.Ratios),
			fmt.Sprintf("exactly %d entries (one per remaining custody)", len(pool.Custodies)-1))
	}

	tx := b.newTx(req.Admin)
	ix, err := NewRemoveCustodyInstruction(b.resolver.ProgramID(), accounts, RemoveCustodyParams{Ratios: req.Ratios})
	return b.finish(ctx, "removeCustody", tx, ix, err)
}

func (b *Builder) UpgradeCustody(ctx context.Context, admin solana.PublicKey, poolName string, mint solana.PublicKey) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(poolName); err != nil {
		return nil, err
	}
	if err := requireKey("mint", mint); err != nil {
		return nil, err
	}
	accounts, err := b.custodyAccounts(admin, poolName, mint)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(admin)
	ix, err := NewUpgradeCustodyInstruction(b.resolver.ProgramID(), accounts)
	return b.finish(ctx, "upgradeCustody", tx, ix, err)
}

// SetCustodyConfigRequest - полная новая конфигурация кастоди.
type SetCustodyConfigRequest struct {
	Admin    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Config   CustodyConfig
}

func (b *Builder) SetCustodyConfig(ctx context.Context, req SetCustodyConfigRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if err := requireKey("mint", req.Mint); err != nil {
		return nil, err
	}
	cfg := req.Config
	if err := b.resolveOracle(&cfg.Oracle); err != nil {
		return nil, err
	}
	if err := ValidateCustodyConfig(cfg, 0); err != nil {
		return nil, err
	}

	pool, err := b.reader.GetPool(ctx, req.PoolName)
	if err != nil {
		return nil, err
	}
	if len(cfg.Ratios) != len(pool.Custodies) {
		return nil, newValidationError("ratios", len(cfg.Ratios),
			fmt.Sprintf("exactly %d entries (one per custody)", len(pool.Custodies)))
	}

	accounts, err := b.custodyAccounts(req.Admin, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(req.Admin)
	ix, err := NewSetCustodyConfigInstruction(b.resolver.ProgramID(), accounts, cfg)
	return b.finish(ctx, "setCustodyConfig", tx, ix, err)
}

// SetCustomOraclePriceRequest - цена для кастомного оракула кастоди (пул, mint).
type SetCustomOraclePriceRequest struct {
	Admin    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Price    SetCustomOraclePriceParams
}

func (b *Builder) SetCustomOraclePrice(ctx context.Context, req SetCustomOraclePriceRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if err := requireKey("mint", req.Mint); err != nil {
		return nil, err
	}
	if err := requirePositive("price", req.Price.Price); err != nil {
		return nil, err
	}
	accounts, err := b.custodyAccounts(req.Admin, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}
	oracleAccount := b.resolver.CustomOracle(accounts.Pool, req.Mint)

	tx := b.newTx(req.Admin)
	ix, err := NewSetCustomOraclePriceInstruction(b.resolver.ProgramID(), accounts, oracleAccount, req.Price)
	return b.finish(ctx, "setCustomOraclePrice", tx, ix, err)
}

// WithdrawFeesRequest - вывод протокольных комиссий кастоди на ATA Receiver.
type WithdrawFeesRequest struct {
	Admin    solana.PublicKey
	PoolName string
	Mint     solana.PublicKey
	Amount   uint64
	Receiver solana.PublicKey
}

func (b *Builder) WithdrawFees(ctx context.Context, req WithdrawFeesRequest) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(req.PoolName); err != nil {
		return nil, err
	}
	if err := requireKey("mint", req.Mint); err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	receiver := req.Receiver
	if receiver.IsZero() {
		receiver = req.Admin
	}

	accounts, err := b.custodyAccounts(req.Admin, req.PoolName, req.Mint)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(req.Admin)
	receiving, err := b.ensureATA(ctx, tx, req.Admin, receiver, req.Mint)
	if err != nil {
		return nil, err
	}
	ix, err := NewWithdrawFeesInstruction(b.resolver.ProgramID(), accounts,
		receiving, WithdrawFeesParams{Amount: req.Amount})
	return b.finish(ctx, "withdrawFees", tx, ix, err)
}

// WithdrawSolFees выводит lamports, накопленные на transfer authority.
func (b *Builder) WithdrawSolFees(ctx context.Context, admin solana.PublicKey, amount uint64, receiver solana.PublicKey) (*transaction.Unsigned, error) {
	if err := requirePositive("amount", amount); err != nil {
		return nil, err
	}
	if receiver.IsZero() {
		receiver = admin
	}
	tx := b.newTx(admin)
	ix, err := NewWithdrawSolFeesInstruction(b.resolver.ProgramID(), b.adminAccounts(admin),
		b.resolver.TransferAuthority(), b.resolver.Perpetuals(), receiver, WithdrawFeesParams{Amount: amount})
	return b.finish(ctx, "withdrawSolFees", tx, ix, err)
}

// UpdatePoolAum пересчитывает AUM пула; remaining accounts - все кастоди и их оракулы.
func (b *Builder) UpdatePoolAum(ctx context.Context, payer solana.PublicKey, poolName string) (*transaction.Unsigned, error) {
	if err := ValidatePoolName(poolName); err != nil {
		return nil, err
	}
	pool, err := b.resolver.Pool(poolName)
	if err != nil {
		return nil, err
	}
	metas, err := b.reader.CustodyMetas(ctx, poolName)
	if err != nil {
		return nil, err
	}
	tx := b.newTx(payer)
	ix, err := NewUpdatePoolAumInstruction(b.resolver.ProgramID(), payer, b.resolver.Perpetuals(), pool, metas)
	return b.finish(ctx, "updatePoolAum", tx, ix, err)
}
