// ==================================
// File: internal/token/instructions.go
// ==================================
package token

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// SPL token program instruction codes used here.
const (
	closeAccountInstruction = 9
	syncNativeInstruction   = 17
)

// SyncNativeInstruction updates a WSOL token account's balance to match its
// lamports after a system transfer.
func SyncNativeInstruction(account solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
		},
		[]byte{syncNativeInstruction},
	)
}

// CloseAccountInstruction closes a token account, returning its lamports to
// the destination. Closing a WSOL account unwraps the balance back to SOL.
func CloseAccountInstruction(account, destination, owner solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.TokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: account, IsSigner: false, IsWritable: true},
			{PublicKey: destination, IsSigner: false, IsWritable: true},
			{PublicKey: owner, IsSigner: true, IsWritable: false},
		},
		[]byte{closeAccountInstruction},
	)
}

// TransferLamportsInstruction moves lamports between system accounts.
func TransferLamportsInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2) // system program transfer
	binary.LittleEndian.PutUint64(data[4:12], lamports)

	return solana.NewInstruction(
		solana.SystemProgramID,
		[]*solana.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsSigner: false, IsWritable: true},
		},
		data,
	)
}

// WrapInstructions funds the wallet's WSOL token account with lamports:
// create the account if missing, transfer, then sync.
func WrapInstructions(owner, wsolATA solana.PublicKey, createATA solana.Instruction, lamports uint64) []solana.Instruction {
	return []solana.Instruction{
		createATA,
		TransferLamportsInstruction(owner, wsolATA, lamports),
		SyncNativeInstruction(wsolATA),
	}
}

// WSOLMint is the wrapped SOL mint.
var WSOLMint = domain.WSOL
