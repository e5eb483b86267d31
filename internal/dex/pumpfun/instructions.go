// ==============================================
// File: internal/dex/pumpfun/instructions.go
// ==============================================
package pumpfun

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// InstructionAccounts are the venue accounts of a bonding curve swap,
// recovered from an observed instruction's route.
type InstructionAccounts struct {
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	EventAuthority         solana.PublicKey
	Program                solana.PublicKey
}

// accountsFromRoute recovers the venue accounts from an observed swap's
// account list.
func accountsFromRoute(route []solana.PublicKey) (InstructionAccounts, error) {
	if len(route) < swapAccountCount {
		return InstructionAccounts{}, fmt.Errorf("route has %d accounts, need %d", len(route), swapAccountCount)
	}
	return InstructionAccounts{
		Global:                 route[idxGlobal],
		FeeRecipient:           route[idxFeeRecipient],
		Mint:                   route[idxMint],
		BondingCurve:           route[idxBondingCurve],
		AssociatedBondingCurve: route[idxAssocBondingCurve],
		EventAuthority:         route[idxEventAuthority],
		Program:                route[idxProgram],
	}, nil
}

// BuildBuyInstruction builds a bonding curve buy: purchase amount tokens
// spending at most maxSolCost lamports.
func BuildBuyInstruction(
	accounts InstructionAccounts,
	userWallet *wallet.Wallet,
	amount, maxSolCost uint64,
) (solana.Instruction, error) {
	associatedUser, err := userWallet.GetATA(accounts.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get associated token account: %w", err)
	}

	data := encodeSwapData(buyDiscriminator, amount, maxSolCost)

	// Account list must be in the exact order expected by the program.
	insAccounts := []*solana.AccountMeta{
		{PublicKey: accounts.Global, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: associatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: userWallet.PublicKey, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: SysvarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.Program, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(accounts.Program, insAccounts, data), nil
}

// BuildSellInstruction builds a bonding curve sell: sell amount tokens for
// at least minSolOutput lamports.
func BuildSellInstruction(
	accounts InstructionAccounts,
	userWallet *wallet.Wallet,
	amount, minSolOutput uint64,
) (solana.Instruction, error) {
	associatedUser, err := userWallet.GetATA(accounts.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get associated token account: %w", err)
	}

	data := encodeSwapData(sellDiscriminator, amount, minSolOutput)

	insAccounts := []*solana.AccountMeta{
		{PublicKey: accounts.Global, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: accounts.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: associatedUser, IsSigner: false, IsWritable: true},
		{PublicKey: userWallet.PublicKey, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: AssociatedTokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: accounts.Program, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(accounts.Program, insAccounts, data), nil
}

func encodeSwapData(discriminator []byte, amount1, amount2 uint64) []byte {
	data := make([]byte, swapDataSize)
	copy(data[0:8], discriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount1)
	binary.LittleEndian.PutUint64(data[16:24], amount2)
	return data
}

func isBuyData(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], buyDiscriminator)
}

func isSellData(data []byte) bool {
	return len(data) >= 8 && bytes.Equal(data[:8], sellDiscriminator)
}
