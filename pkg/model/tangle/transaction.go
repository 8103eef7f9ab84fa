package tangle

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/guards"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"
)

// ErrInvalidTransaction is returned by FromTrytes when
// the wire bytes do not decode into a well-formed transaction.
var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is the immutable, fully-decoded representation of a single
// tangle transaction. It is created once from wire bytes after hash
// validation and is never mutated afterwards; mutable node-local state
// lives in the accompanying Metadata.
type Transaction struct {
	Hash    trinary.Hash
	Tx      *transaction.Transaction
	RawTrytes trinary.Trytes
}

// Address returns the transaction's address.
func (t *Transaction) Address() trinary.Hash { return t.Tx.Address }

// Value returns the transaction's signed value.
func (t *Transaction) Value() int64 { return t.Tx.Value }

// Trunk returns the trunk transaction hash (first parent).
func (t *Transaction) Trunk() trinary.Hash { return t.Tx.TrunkTransaction }

// Branch returns the branch transaction hash (second parent).
func (t *Transaction) Branch() trinary.Hash { return t.Tx.BranchTransaction }

// Bundle returns the bundle hash this transaction belongs to.
func (t *Transaction) Bundle() trinary.Hash { return t.Tx.Bundle }

// Tag returns the transaction's tag.
func (t *Transaction) Tag() trinary.Trytes { return t.Tx.Tag }

// IsTail reports whether this transaction is the bundle tail (index 0).
func (t *Transaction) IsTail() bool { return t.Tx.CurrentIndex == 0 }

// IsHead reports whether this transaction is the bundle head (last index).
func (t *Transaction) IsHead() bool { return t.Tx.CurrentIndex == t.Tx.LastIndex }

// CurrentIndex returns the transaction's position within its bundle.
func (t *Transaction) CurrentIndex() uint64 { return t.Tx.CurrentIndex }

// LastIndex returns the highest index within the transaction's bundle.
func (t *Transaction) LastIndex() uint64 { return t.Tx.LastIndex }

// FromTrytes decodes a canonical transaction from its trytes wire form and
// attaches the given, already computed hash.
func FromTrytes(trytes trinary.Trytes, hash trinary.Hash) (*Transaction, error) {
	if !guards.IsTransactionTrytes(trytes) {
		return nil, errors.Wrap(ErrInvalidTransaction, "malformed trytes")
	}

	tx, err := transaction.ParseTransaction(trinary.MustTrytesToTrits(trytes), true)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidTransaction, err.Error())
	}
	tx.Hash = hash

	return &Transaction{
		Hash:      hash,
		Tx:        tx,
		RawTrytes: trytes,
	}, nil
}

// Compress drops the trailing zero-trytes of the signature/message fragment
// (the only field routinely padded with zeros) before transmission. The
// decoder restores them to the fixed transaction length.
func Compress(trytes trinary.Trytes) []byte {
	trimmed := len(trytes)
	for trimmed > 0 && trytes[trimmed-1] == '9' {
		trimmed--
	}
	return []byte(trytes[:trimmed])
}

// Decompress restores compressed transaction bytes to the fixed-length
// transaction trytes representation by re-padding with '9' (the trinary
// zero-tryte).
func Decompress(compressed []byte) trinary.Trytes {
	trytes := trinary.Trytes(compressed)
	if len(trytes) >= transaction.TransactionTrytesSize {
		return trytes[:transaction.TransactionTrytesSize]
	}
	padding := make([]byte, transaction.TransactionTrytesSize-len(trytes))
	for i := range padding {
		padding[i] = '9'
	}
	return trytes + trinary.Trytes(padding)
}
