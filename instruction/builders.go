package instruction

import (
	"github.com/xraph/parkledger/address"
)

// Addresses holds the derived addresses of one (tenant, user) pair.
type Addresses struct {
	Entry address.Address
	Vault address.Address
}

// DeriveEntry resolves the entry and vault addresses of user at tenant.
func DeriveEntry(program, tenant, user address.Address) (Addresses, error) {
	e, _, err := address.Derive(program, address.DomainEntry, tenant, user)
	if err != nil {
		return Addresses{}, err
	}
	v, _, err := address.Derive(program, address.DomainVault, tenant, user)
	if err != nil {
		return Addresses{}, err
	}
	return Addresses{Entry: e, Vault: v}, nil
}

func signer(a address.Address) Meta { return Meta{Address: a, Signer: true, Writable: true} }
func writable(a address.Address) Meta { return Meta{Address: a, Writable: true} }
func readonly(a address.Address) Meta { return Meta{Address: a} }

func build(c Call, metas ...Meta) (Instruction, error) {
	data, err := Encode(c)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Accounts: metas, Data: data}, nil
}

// CreateTenant builds a create_tenant instruction.
func CreateTenant(program, admin address.Address, name string) (Instruction, error) {
	t, _, err := address.Derive(program, address.DomainTenant, admin)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpCreateTenant, Name: name}, signer(admin), writable(t))
}

// OpenEntry builds an open_entry instruction.
func OpenEntry(program, tenant, user address.Address, plate string) (Instruction, error) {
	a, err := DeriveEntry(program, tenant, user)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpOpenEntry, Plate: plate},
		signer(user), readonly(tenant), writable(a.Entry), writable(a.Vault))
}

// Deposit builds a deposit instruction.
func Deposit(program, tenant, user address.Address, amount uint64) (Instruction, error) {
	a, err := DeriveEntry(program, tenant, user)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpDeposit, Amount: amount}, signer(user), writable(a.Vault), writable(a.Entry))
}

// Withdraw builds a withdraw instruction.
func Withdraw(program, tenant, user address.Address, amount uint64) (Instruction, error) {
	a, err := DeriveEntry(program, tenant, user)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpWithdraw, Amount: amount}, signer(user), writable(a.Vault), writable(a.Entry))
}

// StartSession builds a start_session instruction.
func StartSession(program, tenant, user address.Address) (Instruction, error) {
	a, err := DeriveEntry(program, tenant, user)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpStartSession}, signer(user), writable(a.Entry))
}

// ExitSession builds an exit_session instruction.
func ExitSession(program, tenant, user, feeRecipient address.Address) (Instruction, error) {
	a, err := DeriveEntry(program, tenant, user)
	if err != nil {
		return Instruction{}, err
	}
	return build(Call{Op: OpExitSession},
		signer(user), writable(a.Vault), writable(a.Entry), writable(feeRecipient))
}
