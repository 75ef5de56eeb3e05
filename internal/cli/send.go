// internal/cli/send.go
package cli

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/perps-client/internal/blockchain"
	"github.com/rovshanmuradov/perps-client/internal/blockchain/solana/transaction"
	"github.com/rovshanmuradov/perps-client/internal/ui/style"
	"github.com/rovshanmuradov/perps-client/internal/wallet"
)

// submit показывает сводку, спрашивает подтверждение (если нет --yes),
// подписывает и отправляет транзакцию один раз.
func (a *app) submit(ctx context.Context, op string, unsigned *transaction.Unsigned, summary ...style.KV) error {
	w, err := a.signer()
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, style.Title(op))
	summary = append(summary,
		style.KV{Key: "Signer", Value: w.String()},
		style.KV{Key: "Environment", Value: string(a.env)},
		style.KV{Key: "Instructions", Value: fmt.Sprint(len(unsigned.Tx.Message.Instructions))},
	)
	fmt.Fprint(a.out, style.Fields(summary...))

	if !a.flags.yes {
		if a.prompter == nil {
			return fmt.Errorf("%s: confirmation required, pass --yes", op)
		}
		ok, err := a.prompter.Confirm(fmt.Sprintf("Send %s?", op))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, style.Warning("Cancelled"))
			return nil
		}
	}

	opLogger := a.log.WithOperation(op)
	sig, err := w.SignAndSend(ctx, a.client, unsigned, wallet.SendOptions{
		TransactionOptions: blockchain.TransactionOptions{PreflightCommitment: rpc.CommitmentConfirmed},
		Operation:          op,
	}, opLogger)
	if err != nil {
		if sig == (solana.Signature{}) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: transaction %s: %w", op, sig, err)
	}

	a.log.WithTransaction(sig).Info("Transaction confirmed", zap.String("operation", op))
	fmt.Fprintln(a.out, style.Success(fmt.Sprintf("%s confirmed: %s", op, sig)))
	return nil
}
