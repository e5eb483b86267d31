// internal/stream/types.go
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// JSON-RPC frames for the transaction subscription.

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type wsNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  *struct {
		Subscription int64           `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

// Transaction notification payload, "json" encoding with full details.

type txNotificationResult struct {
	Signature   string        `json:"signature"`
	Slot        uint64        `json:"slot"`
	BlockTime   *int64        `json:"blockTime"`
	Transaction txWithMeta    `json:"transaction"`
	Context     *txContextRef `json:"context"`
}

type txContextRef struct {
	Slot uint64 `json:"slot"`
}

type txWithMeta struct {
	Transaction txEnvelope `json:"transaction"`
	Meta        *txMeta    `json:"meta"`
}

type txEnvelope struct {
	Message txMessage `json:"message"`
}

type txMessage struct {
	AccountKeys  []string        `json:"accountKeys"`
	Instructions []txInstruction `json:"instructions"`
}

type txInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

type txMeta struct {
	Err         interface{} `json:"err"`
	LogMessages []string    `json:"logMessages"`
}

// parseTransactionNotification converts a transaction notification payload
// into a TransactionEvent. Instruction data arrives base58 encoded.
func parseTransactionNotification(raw json.RawMessage) (*domain.TransactionEvent, error) {
	var result txNotificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	if result.Signature == "" {
		return nil, fmt.Errorf("notification missing signature")
	}

	sig, err := solana.SignatureFromBase58(result.Signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", result.Signature, err)
	}

	msg := result.Transaction.Transaction.Message
	if len(msg.AccountKeys) == 0 {
		return nil, fmt.Errorf("notification missing account keys")
	}

	accounts := make([]solana.PublicKey, len(msg.AccountKeys))
	for i, key := range msg.AccountKeys {
		pk, err := solana.PublicKeyFromBase58(key)
		if err != nil {
			return nil, fmt.Errorf("invalid account key %q: %w", key, err)
		}
		accounts[i] = pk
	}

	instructions := make([]domain.CompiledInstruction, 0, len(msg.Instructions))
	for _, ins := range msg.Instructions {
		if ins.ProgramIDIndex < 0 || ins.ProgramIDIndex >= len(accounts) {
			return nil, fmt.Errorf("program id index %d out of range", ins.ProgramIDIndex)
		}
		resolved := make([]solana.PublicKey, len(ins.Accounts))
		for i, idx := range ins.Accounts {
			if idx < 0 || idx >= len(accounts) {
				return nil, fmt.Errorf("account index %d out of range", idx)
			}
			resolved[i] = accounts[idx]
		}
		var data []byte
		if ins.Data != "" {
			data, err = base58.Decode(ins.Data)
			if err != nil {
				return nil, fmt.Errorf("invalid instruction data: %w", err)
			}
		}
		instructions = append(instructions, domain.CompiledInstruction{
			ProgramID: accounts[ins.ProgramIDIndex],
			Accounts:  resolved,
			Data:      data,
		})
	}

	ev := &domain.TransactionEvent{
		Signature:    sig,
		Slot:         result.Slot,
		Accounts:     accounts,
		Instructions: instructions,
	}
	if result.BlockTime != nil {
		ev.BlockTime = time.Unix(*result.BlockTime, 0).UTC()
	}
	if result.Transaction.Meta != nil {
		ev.Logs = result.Transaction.Meta.LogMessages
		ev.Err = result.Transaction.Meta.Err
	}
	return ev, nil
}
