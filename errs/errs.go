// Package errs defines the typed error kinds surfaced across dagchaind's
// core, per the taxonomy in the component design: StorageError,
// ClassificationError, BlockInvalidError, TransactionInvalidError,
// ExecutionError, MempoolError and ConfigError. Each kind wraps an inner
// cause with github.com/pkg/errors so callers keep a stack trace, while
// call sites can still discriminate on kind with errors.As.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// StorageCode enumerates StorageError causes.
type StorageCode int

const (
	StorageCommit StorageCode = iota
	StorageCorruption
	StorageNotFound
)

// StorageError wraps a persistent-store failure.
type StorageError struct {
	Code StorageCode
	Err  error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error: %s", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps cause as a StorageError of the given code.
func NewStorageError(code StorageCode, cause error) *StorageError {
	return &StorageError{Code: code, Err: errors.WithStack(cause)}
}

// ClassificationCode enumerates ClassificationError causes.
type ClassificationCode int

const (
	ClassificationMissingAncestor ClassificationCode = iota
	ClassificationKClusterViolation
)

// ClassificationError wraps a GhostDAG classification failure.
type ClassificationError struct {
	Code ClassificationCode
	Err  error
}

func (e *ClassificationError) Error() string { return fmt.Sprintf("classification error: %s", e.Err) }
func (e *ClassificationError) Unwrap() error { return e.Err }

func NewClassificationError(code ClassificationCode, cause error) *ClassificationError {
	return &ClassificationError{Code: code, Err: errors.WithStack(cause)}
}

// BlockInvalidCode enumerates the reasons a block can fail validation.
type BlockInvalidCode int

const (
	BlockInvalidStructure BlockInvalidCode = iota
	BlockInvalidUnknownParent
	BlockInvalidTooManyParents
	BlockInvalidTimestamp
	BlockInvalidSignature
	BlockInvalidBlueScoreMismatch
	BlockInvalidStateRootMismatch
	BlockInvalidTxRootMismatch
	BlockInvalidReceiptRootMismatch
	BlockInvalidFinalityViolation
	BlockInvalidValidationTimeout
)

func (c BlockInvalidCode) String() string {
	switch c {
	case BlockInvalidStructure:
		return "Structure"
	case BlockInvalidUnknownParent:
		return "UnknownParent"
	case BlockInvalidTooManyParents:
		return "TooManyParents"
	case BlockInvalidTimestamp:
		return "Timestamp"
	case BlockInvalidSignature:
		return "Signature"
	case BlockInvalidBlueScoreMismatch:
		return "BlueScoreMismatch"
	case BlockInvalidStateRootMismatch:
		return "StateRootMismatch"
	case BlockInvalidTxRootMismatch:
		return "TxRootMismatch"
	case BlockInvalidReceiptRootMismatch:
		return "ReceiptRootMismatch"
	case BlockInvalidFinalityViolation:
		return "FinalityViolation"
	case BlockInvalidValidationTimeout:
		return "ValidationTimeout"
	}
	return "Unknown"
}

// BlockInvalidError reports why an ingested or built block was rejected.
type BlockInvalidError struct {
	Code BlockInvalidCode
	Err  error
}

func (e *BlockInvalidError) Error() string {
	return fmt.Sprintf("block invalid (%s): %s", e.Code, e.Err)
}
func (e *BlockInvalidError) Unwrap() error { return e.Err }

// NewBlockInvalidError builds a BlockInvalidError, wrapping a plain message.
func NewBlockInvalidError(code BlockInvalidCode, format string, args ...interface{}) *BlockInvalidError {
	return &BlockInvalidError{Code: code, Err: errors.Errorf(format, args...)}
}

// TransactionInvalidCode enumerates reasons a transaction is rejected.
type TransactionInvalidCode int

const (
	TransactionInvalidSignature TransactionInvalidCode = iota
	TransactionInvalidNonce
	TransactionInvalidBalance
	TransactionInvalidChainID
	TransactionInvalidEncoding
	TransactionInvalidGasLimit
)

func (c TransactionInvalidCode) String() string {
	switch c {
	case TransactionInvalidSignature:
		return "Signature"
	case TransactionInvalidNonce:
		return "Nonce"
	case TransactionInvalidBalance:
		return "Balance"
	case TransactionInvalidChainID:
		return "ChainID"
	case TransactionInvalidEncoding:
		return "Encoding"
	case TransactionInvalidGasLimit:
		return "GasLimit"
	}
	return "Unknown"
}

// TransactionInvalidError reports why a transaction was rejected.
type TransactionInvalidError struct {
	Code TransactionInvalidCode
	Err  error
}

func (e *TransactionInvalidError) Error() string {
	return fmt.Sprintf("transaction invalid (%s): %s", e.Code, e.Err)
}
func (e *TransactionInvalidError) Unwrap() error { return e.Err }

func NewTransactionInvalidError(code TransactionInvalidCode, format string, args ...interface{}) *TransactionInvalidError {
	return &TransactionInvalidError{Code: code, Err: errors.Errorf(format, args...)}
}

// ExecutionCode enumerates execution failure causes.
type ExecutionCode int

const (
	ExecutionOutOfGas ExecutionCode = iota
	ExecutionReverted
	ExecutionInterpreterFault
	ExecutionInvalidChainID
)

// ExecutionError wraps a state-transition failure.
type ExecutionError struct {
	Code ExecutionCode
	Err  error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execution error: %s", e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

func NewExecutionError(code ExecutionCode, format string, args ...interface{}) *ExecutionError {
	return &ExecutionError{Code: code, Err: errors.Errorf(format, args...)}
}

// MempoolCode enumerates mempool admission-rejection causes.
type MempoolCode int

const (
	MempoolFull MempoolCode = iota
	MempoolDuplicateTx
	MempoolUnderpriced
)

// MempoolError reports why a transaction was not admitted to the mempool.
type MempoolError struct {
	Code MempoolCode
	Err  error
}

func (e *MempoolError) Error() string { return fmt.Sprintf("mempool error: %s", e.Err) }
func (e *MempoolError) Unwrap() error { return e.Err }

func NewMempoolError(code MempoolCode, format string, args ...interface{}) *MempoolError {
	return &MempoolError{Code: code, Err: errors.Errorf(format, args...)}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config error: %s", e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Err: errors.Errorf(format, args...)}
}
