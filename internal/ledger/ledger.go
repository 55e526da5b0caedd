package ledger

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is one user's collateral per asset and minted debt.
type Position struct {
	Collateral map[common.Address]*uint256.Int
	DebtMinted *uint256.Int
}

func newPosition() *Position {
	return &Position{
		Collateral: make(map[common.Address]*uint256.Int),
		DebtMinted: new(uint256.Int),
	}
}

func (p *Position) clone() *Position {
	c := &Position{
		Collateral: make(map[common.Address]*uint256.Int, len(p.Collateral)),
		DebtMinted: math.Copy(p.DebtMinted),
	}
	for asset, amount := range p.Collateral {
		c.Collateral[asset] = math.Copy(amount)
	}
	return c
}

// Ledger is the committed position store. It does no locking of its own:
// the engine serializes writers and admits readers only between commits.
type Ledger struct {
	positions map[common.Address]*Position
}

func New() *Ledger {
	return &Ledger{positions: make(map[common.Address]*Position)}
}

// GetCollateralBalance returns a copy; absent keys read as zero.
func (l *Ledger) GetCollateralBalance(user, asset common.Address) *uint256.Int {
	p, ok := l.positions[user]
	if !ok {
		return new(uint256.Int)
	}
	return math.Copy(p.Collateral[asset])
}

func (l *Ledger) GetDebt(user common.Address) *uint256.Int {
	p, ok := l.positions[user]
	if !ok {
		return new(uint256.Int)
	}
	return math.Copy(p.DebtMinted)
}

// Position returns a deep copy of the user's position.
func (l *Ledger) Position(user common.Address) Position {
	p, ok := l.positions[user]
	if !ok {
		return *newPosition()
	}
	return *p.clone()
}

// Users returns every user with a position, in address order.
func (l *Ledger) Users() []common.Address {
	users := make([]common.Address, 0, len(l.positions))
	for u := range l.positions {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return bytes.Compare(users[i][:], users[j][:]) < 0
	})
	return users
}

// Begin opens a working copy. Nothing it does is visible until Commit.
func (l *Ledger) Begin() *Tx {
	return &Tx{
		base:    l,
		touched: make(map[common.Address]*Position),
	}
}

// Apply replays a committed journal, used on restart and by projections.
func (l *Ledger) Apply(j Journal) error {
	if err := j.Validate(); err != nil {
		return err
	}
	tx := l.Begin()
	for _, e := range j {
		var err error
		switch e.Kind {
		case EntryCollateralCredit:
			err = tx.Credit(e.User, e.Asset, e.Amount)
		case EntryCollateralDebit:
			err = tx.Debit(e.User, e.Asset, e.Amount)
		case EntryDebtIncrease:
			err = tx.IncreaseDebt(e.User, e.Amount)
		case EntryDebtDecrease:
			err = tx.DecreaseDebt(e.User, e.Amount)
		}
		if err != nil {
			return fmt.Errorf("replay %s for %s: %w", e.Kind, e.User.Hex(), err)
		}
	}
	tx.Commit()
	return nil
}

// Tx is a copy-on-write view over a Ledger. Each touched position is cloned
// on first write, so a discarded Tx leaves the ledger exactly as it was.
type Tx struct {
	base    *Ledger
	touched map[common.Address]*Position
	journal Journal
	closed  bool
}

func (tx *Tx) read(user common.Address) (*Position, bool) {
	if p, ok := tx.touched[user]; ok {
		return p, true
	}
	p, ok := tx.base.positions[user]
	return p, ok
}

// write returns the working copy for user, creating the position if needed.
func (tx *Tx) write(user common.Address) *Position {
	if p, ok := tx.touched[user]; ok {
		return p
	}
	var p *Position
	if base, ok := tx.base.positions[user]; ok {
		p = base.clone()
	} else {
		p = newPosition()
	}
	tx.touched[user] = p
	return p
}

func (tx *Tx) GetCollateralBalance(user, asset common.Address) *uint256.Int {
	p, ok := tx.read(user)
	if !ok {
		return new(uint256.Int)
	}
	return math.Copy(p.Collateral[asset])
}

func (tx *Tx) GetDebt(user common.Address) *uint256.Int {
	p, ok := tx.read(user)
	if !ok {
		return new(uint256.Int)
	}
	return math.Copy(p.DebtMinted)
}

// Credit adds collateral. A zero amount is a no-op and creates no key.
func (tx *Tx) Credit(user, asset common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	p := tx.write(user)
	next, err := math.Add(math.Copy(p.Collateral[asset]), amount)
	if err != nil {
		return err
	}
	p.Collateral[asset] = next
	tx.record(user, asset, EntryCollateralCredit, amount)
	return nil
}

// Debit removes collateral, failing with ErrInsufficientCollateral rather
// than going below zero.
func (tx *Tx) Debit(user, asset common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	have := tx.GetCollateralBalance(user, asset)
	next, ok := math.Sub(have, amount)
	if !ok {
		return fmt.Errorf("%w: %s holds %s of %s, debit %s", dscerr.ErrInsufficientCollateral,
			user.Hex(), have.Dec(), asset.Hex(), amount.Dec())
	}
	tx.write(user).Collateral[asset] = next
	tx.record(user, asset, EntryCollateralDebit, amount)
	return nil
}

func (tx *Tx) IncreaseDebt(user common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	p := tx.write(user)
	next, err := math.Add(p.DebtMinted, amount)
	if err != nil {
		return err
	}
	p.DebtMinted = next
	tx.record(user, common.Address{}, EntryDebtIncrease, amount)
	return nil
}

// DecreaseDebt fails with ErrInsufficientDebt when amount exceeds the debt.
func (tx *Tx) DecreaseDebt(user common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	have := tx.GetDebt(user)
	next, ok := math.Sub(have, amount)
	if !ok {
		return fmt.Errorf("%w: %s owes %s, decrease %s", dscerr.ErrInsufficientDebt,
			user.Hex(), have.Dec(), amount.Dec())
	}
	tx.write(user).DebtMinted = next
	tx.record(user, common.Address{}, EntryDebtDecrease, amount)
	return nil
}

func (tx *Tx) record(user, asset common.Address, kind EntryKind, amount *uint256.Int) {
	tx.journal = append(tx.journal, Entry{
		User:   user,
		Asset:  asset,
		Kind:   kind,
		Amount: math.Copy(amount),
	})
}

// Journal returns the entries recorded so far.
func (tx *Tx) Journal() Journal {
	out := make(Journal, len(tx.journal))
	copy(out, tx.journal)
	return out
}

// Commit publishes the working copies to the ledger and returns the
// journal. A Tx can be committed once.
func (tx *Tx) Commit() Journal {
	if tx.closed {
		panic("ledger: commit of closed tx")
	}
	tx.closed = true
	for user, p := range tx.touched {
		tx.base.positions[user] = p
	}
	return tx.journal
}

// Discard drops the working copies.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.touched = nil
	tx.journal = nil
}
