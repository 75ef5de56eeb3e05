package solbc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	gateway "github.com/rovshanmuradov/perps-client/internal/blockchain/solbc/rpc"
)

const anchorLog = "Program log: AnchorError occurred. Error Code: StaleOraclePrice. Error Number: 6003. Error Message: Stale oracle price."

func TestFindAnchorError(t *testing.T) {
	logs := []string{
		"Program 6Rfd invoke [1]",
		anchorLog,
		"Program 6Rfd failed: custom program error: 0x1773",
	}
	a, ok := FindAnchorError(logs)
	require.True(t, ok)
	assert.Equal(t, 6003, a.Code)
	assert.Equal(t, "StaleOraclePrice", a.Name)
	assert.Equal(t, "Stale oracle price", a.Msg)

	_, ok = FindAnchorError([]string{"Program log: Instruction: Swap"})
	assert.False(t, ok)
}

func TestProgramError(t *testing.T) {
	raw := map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 6003}}}

	withAnchor := NewProgramError(raw, []string{anchorLog})
	assert.Contains(t, withAnchor.Error(), "StaleOraclePrice (6003)")

	plain := NewProgramError(raw, nil)
	assert.Nil(t, plain.Anchor)
	assert.Contains(t, plain.Error(), `"Custom":6003`)

	wrapped := fmt.Errorf("getEntryPriceAndFee: %w", plain)
	assert.True(t, IsProgramError(wrapped))
	assert.False(t, IsProgramError(errors.New("timeout")))
}

func TestAsProgramError(t *testing.T) {
	ea := NewErrorAnalyzer(zap.NewNop())

	preflight := &jsonrpc.RPCError{
		Code:    -32002,
		Message: "Transaction simulation failed: Error processing Instruction 1: custom program error: 0x1773",
		Data: map[string]interface{}{
			"err":  map[string]interface{}{"InstructionError": []interface{}{1, map[string]interface{}{"Custom": 6003}}},
			"logs": []interface{}{"Program log: Instruction: OpenPosition", anchorLog},
		},
	}
	pe := ea.AsProgramError(gateway.NewError(preflight, "http://primary", "sendTransaction"))
	require.NotNil(t, pe)
	require.NotNil(t, pe.Anchor)
	assert.Equal(t, 6003, pe.Anchor.Code)
	assert.Len(t, pe.Logs, 2)

	assert.Nil(t, ea.AsProgramError(&jsonrpc.RPCError{Code: -32005, Message: "Node is behind"}))
	assert.Nil(t, ea.AsProgramError(errors.New("connection refused")))
}

func TestReturnData(t *testing.T) {
	program := solana.MustPublicKeyFromBase58("6RfdxdBjsqLmgBtJizGSAu4NyXTctDGPRYJB8YmeqGio")
	other := solana.SystemProgramID
	logs := []string{
		"Program return: " + program.String() + " " + base64.StdEncoding.EncodeToString([]byte{1}),
		"Program return: " + other.String() + " " + base64.StdEncoding.EncodeToString([]byte{9}),
		"Program return: " + program.String() + " " + base64.StdEncoding.EncodeToString([]byte{2, 3}),
		"Program " + program.String() + " success",
	}

	data, err := ReturnData(logs, program)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, data, "last entry of the program wins")

	_, err = ReturnData(logs[3:], program)
	assert.ErrorIs(t, err, ErrNoReturnData)

	_, err = ReturnData([]string{"Program return: " + program.String() + " !!!"}, program)
	assert.Error(t, err)
}

type accountGetter struct {
	mock.Mock
}

func (m *accountGetter) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	args := m.Called(ctx, pubkey)
	if v := args.Get(0); v != nil {
		return v.(*rpc.GetAccountInfoResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func mintAccount(t *testing.T, owner solana.PublicKey, m token.Mint) *rpc.GetAccountInfoResult {
	t.Helper()
	data, err := bin.MarshalBin(&m)
	require.NoError(t, err)
	return &rpc.GetAccountInfoResult{Value: &rpc.Account{
		Owner: owner,
		Data:  rpc.DataBytesOrJSONFromBytes(data),
	}}
}

func TestTokenMetadataCache(t *testing.T) {
	ctx := context.Background()
	mintKey := solana.NewWallet().PublicKey()
	authority := solana.NewWallet().PublicKey()

	getter := new(accountGetter)
	getter.On("GetAccountInfo", ctx, mintKey).
		Return(mintAccount(t, solana.TokenProgramID, token.Mint{
			MintAuthority: &authority,
			Supply:        1_000,
			Decimals:      6,
			IsInitialized: true,
		}), nil).Once()

	cache := NewTokenMetadataCache(zap.NewNop())
	md, err := cache.GetTokenMetadata(ctx, getter, mintKey)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), md.Decimals)
	assert.Equal(t, uint64(1_000), md.Supply)
	require.NotNil(t, md.MintAuthority)
	assert.Equal(t, authority, *md.MintAuthority)

	dec, err := cache.Decimals(ctx, getter, mintKey)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), dec)
	getter.AssertNumberOfCalls(t, "GetAccountInfo", 1)

	t.Run("expired entry is refetched", func(t *testing.T) {
		cache.ttl = time.Nanosecond
		getter.On("GetAccountInfo", ctx, mintKey).Return(nil, errors.New("rpc down")).Once()
		time.Sleep(time.Millisecond)
		_, err := cache.GetTokenMetadata(ctx, getter, mintKey)
		assert.Error(t, err)
	})

	t.Run("wrong owner", func(t *testing.T) {
		other := solana.NewWallet().PublicKey()
		getter.On("GetAccountInfo", ctx, other).
			Return(mintAccount(t, solana.SystemProgramID, token.Mint{IsInitialized: true}), nil).Once()
		_, err := NewTokenMetadataCache(zap.NewNop()).GetTokenMetadata(ctx, getter, other)
		assert.ErrorContains(t, err, "not an SPL token mint")
	})
}

func TestReached(t *testing.T) {
	assert.True(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentProcessed))
	assert.False(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed))
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed))
	assert.False(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentFinalized))
}

// rpcServer отвечает на JSON-RPC по имени метода.
func rpcServer(t *testing.T, handlers map[string]func(params json.RawMessage) interface{}) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		h, ok := handlers[req.Method]
		if !ok {
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": h(req.Params)})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	gw, err := gateway.NewGateway([]string{url}, zap.NewNop())
	require.NoError(t, err)
	return NewClient(gw, zap.NewNop())
}

func TestClient_SimulateUnsignedTransaction(t *testing.T) {
	var sent solana.Transaction
	srv, _ := rpcServer(t, map[string]func(json.RawMessage) interface{}{
		"simulateTransaction": func(params json.RawMessage) interface{} {
			var p []json.RawMessage
			require.NoError(t, json.Unmarshal(params, &p))
			var encoded string
			require.NoError(t, json.Unmarshal(p[0], &encoded))
			raw, err := base64.StdEncoding.DecodeString(encoded)
			require.NoError(t, err)
			require.NoError(t, sent.UnmarshalWithDecoder(bin.NewBinDecoder(raw)))
			return map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": map[string]interface{}{
					"err":           nil,
					"logs":          []string{"Program log: ok"},
					"unitsConsumed": 1200,
				},
			}
		},
	})
	c := newTestClient(t, srv.URL)

	payer := solana.NewWallet().PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{solana.NewInstruction(solana.MemoProgramID, solana.AccountMetaSlice{solana.Meta(payer).SIGNER()}, []byte("x"))},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	res, err := c.SimulateTransaction(context.Background(), tx)
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, uint64(1200), res.UnitsConsumed)
	assert.Empty(t, tx.Signatures, "caller's transaction is not modified")
	assert.Len(t, sent.Signatures, 1)
}

func TestClient_WaitForTransactionConfirmation(t *testing.T) {
	sig := solana.Signature{4, 2}

	t.Run("confirmed after pending", func(t *testing.T) {
		var n atomic.Int32
		srv, _ := rpcServer(t, map[string]func(json.RawMessage) interface{}{
			"getSignatureStatuses": func(json.RawMessage) interface{} {
				status := interface{}(nil)
				if n.Add(1) > 1 {
					status = map[string]interface{}{"slot": 10, "confirmations": 1, "err": nil, "confirmationStatus": "confirmed"}
				}
				return map[string]interface{}{"context": map[string]interface{}{"slot": 10}, "value": []interface{}{status}}
			},
		})
		c := newTestClient(t, srv.URL)
		c.SetConfirmTimeout(10 * time.Second)

		require.NoError(t, c.WaitForTransactionConfirmation(context.Background(), sig, rpc.CommitmentConfirmed))
		assert.GreaterOrEqual(t, n.Load(), int32(2))
	})

	t.Run("failed on chain is permanent", func(t *testing.T) {
		srv, calls := rpcServer(t, map[string]func(json.RawMessage) interface{}{
			"getSignatureStatuses": func(json.RawMessage) interface{} {
				status := map[string]interface{}{"slot": 10, "err": map[string]interface{}{"InstructionError": []interface{}{0, "InvalidAccountData"}}, "confirmationStatus": "confirmed"}
				return map[string]interface{}{"context": map[string]interface{}{"slot": 10}, "value": []interface{}{status}}
			},
		})
		c := newTestClient(t, srv.URL)

		err := c.WaitForTransactionConfirmation(context.Background(), sig, rpc.CommitmentConfirmed)
		assert.ErrorIs(t, err, ErrTransactionFailed)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("timeout", func(t *testing.T) {
		srv, _ := rpcServer(t, map[string]func(json.RawMessage) interface{}{
			"getSignatureStatuses": func(json.RawMessage) interface{} {
				return map[string]interface{}{"context": map[string]interface{}{"slot": 10}, "value": []interface{}{nil}}
			},
		})
		c := newTestClient(t, srv.URL)
		c.SetConfirmTimeout(time.Second)

		err := c.WaitForTransactionConfirmation(context.Background(), sig, rpc.CommitmentConfirmed)
		assert.ErrorIs(t, err, ErrConfirmationTimeout)
	})
}
