package receipt

import (
	"context"

	"github.com/xraph/parkledger/address"
)

type Store interface {
	ListReceipts(ctx context.Context, subject address.Address, opts ListOpts) ([]*Receipt, error)
}
