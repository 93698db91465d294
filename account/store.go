package account

import (
	"context"

	"github.com/xraph/parkledger/address"
)

type Store interface {
	GetAccount(ctx context.Context, addr address.Address) (*Account, error)
	ListAccounts(ctx context.Context, opts ListOpts) ([]*Account, error)
}
