package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMaterialNotFound  = errors.New("material not found")
	ErrPersonNotFound    = errors.New("person not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStorageFailure    = errors.New("storage failure")

	ErrInvalidName         = errors.New("name must not be empty")
	ErrDuplicateName       = errors.New("name already exists")
	ErrStockRecordNotFound = errors.New("stock record not found")

	// ErrStockLimit is an ErrInvalidQuantity: the movement is valid on its
	// own but would push the stock on hand past MaxQuantity.
	ErrStockLimit = fmt.Errorf("%w: stock would exceed %d", ErrInvalidQuantity, MaxQuantity)
)

// Stable codes reported to clients. Values must never change.
const (
	CodeMaterialNotFound    = "material_not_found"
	CodePersonNotFound      = "person_not_found"
	CodeInvalidQuantity     = "invalid_quantity"
	CodeInsufficientStock   = "insufficient_stock"
	CodeStorageFailure      = "storage_failure"
	CodeInvalidName         = "invalid_name"
	CodeDuplicateName       = "duplicate_name"
	CodeStockRecordNotFound = "stock_record_not_found"
	CodeInternal            = "internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMaterialNotFound, CodeMaterialNotFound},
	{ErrPersonNotFound, CodePersonNotFound},
	{ErrInvalidQuantity, CodeInvalidQuantity},
	{ErrInsufficientStock, CodeInsufficientStock},
	{ErrInvalidName, CodeInvalidName},
	{ErrDuplicateName, CodeDuplicateName},
	{ErrStockRecordNotFound, CodeStockRecordNotFound},
	{ErrStorageFailure, CodeStorageFailure},
}

// ErrorCode returns the stable code for err. Validation kinds are checked
// before ErrStorageFailure so a wrapped validation error keeps its own code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}
