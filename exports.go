package parkledger

import (
	"github.com/xraph/parkledger/address"
	"github.com/xraph/parkledger/id"
	"github.com/xraph/parkledger/types"
)

// Re-export common types so callers rarely need the sub-packages.

// Address is re-exported from the address package.
type Address = address.Address

// Entity is re-exported from types package.
type Entity = types.Entity

// ID identifies receipts and requests.
type ID = id.ID

var (
	ParseAddress = address.Parse
	ProgramID    = address.ProgramID
	FormatUnits  = types.FormatUnits
	ParseUnits   = types.ParseUnits
)
