package models

// Module is one of the business domains served by the campus wallet.
type Module string

const (
	ModuleLibrary Module = "library"
	ModuleFood    Module = "food"
	ModuleStore   Module = "store"
)

// Valid reports whether m is a known module.
func (m Module) Valid() bool {
	switch m {
	case ModuleLibrary, ModuleFood, ModuleStore:
		return true
	}
	return false
}

// Commerce reports whether the module sells items for wallet money.
func (m Module) Commerce() bool {
	return m == ModuleFood || m == ModuleStore
}

// Action is what a transaction does with its item.
type Action string

const (
	ActionBorrow   Action = "borrow"
	ActionReturn   Action = "return"
	ActionPurchase Action = "purchase"
	ActionApprove  Action = "approve"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionBorrow, ActionReturn, ActionPurchase, ActionApprove:
		return true
	}
	return false
}

// AllowedIn reports whether the action may be recorded against module m.
func (a Action) AllowedIn(m Module) bool {
	switch a {
	case ActionBorrow, ActionReturn:
		return m == ModuleLibrary
	case ActionPurchase:
		return m.Commerce()
	case ActionApprove:
		return m.Valid()
	}
	return false
}

// Status is the approval state of a transaction.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether a transaction may move from one status to another.
// Only pending transactions move, and only into a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.Terminal()
}

// WalletTxType distinguishes credits from debits in the wallet ledger.
type WalletTxType string

const (
	WalletCredit WalletTxType = "credit"
	WalletDebit  WalletTxType = "debit"
)

// Role names carried in auth tokens.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)
