// Package domain holds a small bank-account aggregate used by the
// protocol tests.
package domain

import (
	"errors"
	"fmt"

	"github.com/codewandler/revent-go/core/rev"
)

type (
	// Account is a minimal event-sourced aggregate. Deposited and
	// Withdrawn are exact inverses of each other; Closed has no
	// inverse and is declared irreversible.
	Account struct {
		ID       string `json:"id"`
		Balance  int64  `json:"balance"`
		IsClosed bool   `json:"is_closed"`
	}

	Deposited struct {
		Amount int64 `json:"amount"`
	}
	Withdrawn struct {
		Amount int64 `json:"amount"`
	}
	Closed struct{}
)

func NewAccount(id string) *Account { return &Account{ID: id} }

func (a *Account) AggregateID() string { return a.ID }

func (a *Account) Register(r rev.Registrar) {
	rev.RegisterEvents(r,
		rev.Event[Deposited](),
		rev.Event[Withdrawn](),
		rev.Event[Closed](),
	)
}

func (a *Account) Apply(event any) (any, error) {
	switch e := event.(type) {
	case *Deposited:
		if a.IsClosed {
			return nil, errors.New("account is closed")
		}
		if e.Amount <= 0 {
			return nil, fmt.Errorf("deposit amount must be positive, got %d", e.Amount)
		}
		a.Balance += e.Amount
		return &Withdrawn{Amount: e.Amount}, nil

	case *Withdrawn:
		if a.IsClosed {
			return nil, errors.New("account is closed")
		}
		if e.Amount <= 0 {
			return nil, fmt.Errorf("withdraw amount must be positive, got %d", e.Amount)
		}
		if e.Amount > a.Balance {
			return nil, fmt.Errorf("insufficient funds: balance=%d withdraw=%d", a.Balance, e.Amount)
		}
		a.Balance -= e.Amount
		return &Deposited{Amount: e.Amount}, nil

	case *Closed:
		if a.IsClosed {
			return nil, errors.New("account is already closed")
		}
		if a.Balance != 0 {
			return nil, fmt.Errorf("cannot close account with balance %d", a.Balance)
		}
		a.IsClosed = true
		return nil, nil
	}
	return nil, fmt.Errorf("unknown event: %T", event)
}

func (a *Account) Irreversible(event any) bool {
	_, ok := event.(*Closed)
	return ok
}

var (
	_ rev.Aggregate       = (*Account)(nil)
	_ rev.Irreversibility = (*Account)(nil)
)
