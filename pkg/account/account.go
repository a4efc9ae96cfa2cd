// Package account describes the accounts presented to the program and the
// ownership gate every invocation passes through before any state is read.
package account

import (
	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"

	"github.com/ssargent/dataversion/pkg/programerr"
)

// Address identifies an account and the program that owns it.
type Address = solana.PublicKey

// AddressLength is the width of an encoded address in bytes.
const AddressLength = solana.PublicKeyLength

// Account is a view over an externally allocated account slot. Data is the
// fixed-size buffer the program reads and writes in place; its length never
// changes.
type Account struct {
	Address Address
	Owner   Address
	Data    []byte
}

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	return solana.PublicKeyFromBase58(s)
}

// CheckOwnership verifies that every tracking account is owned by programID.
// The target account is not part of tracking; it is authorized implicitly
// because it is the account being decoded and mutated. The check stops at the
// first mismatch.
func CheckOwnership(programID Address, tracking []Account) error {
	for _, acct := range tracking {
		if !acct.Owner.Equals(programID) {
			klog.Warningf("Fail: the tracking account %s owner is %s and it should be %s",
				acct.Address, acct.Owner, programID)
			return programerr.Wrap(programerr.ErrIncorrectProgramID,
				"account %s is owned by %s", acct.Address, acct.Owner)
		}
	}
	return nil
}
