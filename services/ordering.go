package services

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultReorderMargin is the minimum gap between the highest position in a
// scope and the temporary band used while renumbering.
const DefaultReorderMargin = 1000

// positionColumn stores the sibling order of every orderable table.
const positionColumn = "position"

// OrderScope identifies one sibling group of an orderable table, for example
// the fields of one questionnaire.
type OrderScope struct {
	Table string
	Conds map[string]interface{}
}

func (s OrderScope) String() string {
	return fmt.Sprintf("%s%v", s.Table, s.Conds)
}

type orderedRow struct {
	ID       uint
	Position int
}

// Sequencer keeps positions within an OrderScope dense (1..N) and unique.
// Every write is a single-row UPDATE, so a unique (scope, position) index is
// never violated by an intermediate statement. Methods must be called with a
// transaction handle.
type Sequencer struct {
	Margin int
}

// NewSequencer returns a Sequencer using margin for its temporary band.
func NewSequencer(margin int) *Sequencer {
	if margin < 1 {
		margin = DefaultReorderMargin
	}
	return &Sequencer{Margin: margin}
}

func (s *Sequencer) scoped(tx *gorm.DB, scope OrderScope) *gorm.DB {
	q := tx.Table(scope.Table)
	for col, val := range scope.Conds {
		q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: val})
	}
	return q
}

// lock reads the whole scope ordered by position with row locks held until
// the transaction ends.
func (s *Sequencer) lock(tx *gorm.DB, scope OrderScope) ([]orderedRow, error) {
	var rows []orderedRow
	err := s.scoped(tx, scope).
		Clauses(lockingClause()).
		Select("id", positionColumn).
		Order(positionColumn + " ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock scope %s: %w", scope, err)
	}
	return rows, nil
}

func (s *Sequencer) setPosition(tx *gorm.DB, table string, id uint, pos int) error {
	if err := tx.Table(table).Where("id = ?", id).Update(positionColumn, pos).Error; err != nil {
		return fmt.Errorf("failed to set %s %d position to %d: %w", table, id, pos, err)
	}
	return nil
}

// NextPosition returns max(position)+1 within the scope, or 1 when empty.
func (s *Sequencer) NextPosition(tx *gorm.DB, scope OrderScope) (int, error) {
	rows, err := s.lock(tx, scope)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 1, nil
	}
	return rows[len(rows)-1].Position + 1, nil
}

// Compact closes the gap left by a record removed from position removed.
// Records are shifted down one at a time in ascending order.
func (s *Sequencer) Compact(tx *gorm.DB, scope OrderScope, removed int) error {
	rows, err := s.lock(tx, scope)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Position <= removed {
			continue
		}
		if err := s.setPosition(tx, scope.Table, r.ID, r.Position-1); err != nil {
			return err
		}
	}
	return nil
}

// displace moves every row to a band above the current maximum.
func (s *Sequencer) displace(tx *gorm.DB, scope OrderScope, rows []orderedRow) error {
	if len(rows) == 0 {
		return nil
	}
	margin := s.Margin
	if len(rows) > margin {
		margin = len(rows)
	}
	base := rows[len(rows)-1].Position + margin
	for i, r := range rows {
		if err := s.setPosition(tx, scope.Table, r.ID, base+i); err != nil {
			return err
		}
	}
	return nil
}

// place writes 1..N down ids.
func (s *Sequencer) place(tx *gorm.DB, scope OrderScope, ids []uint) error {
	for i, id := range ids {
		if err := s.setPosition(tx, scope.Table, id, i+1); err != nil {
			return err
		}
	}
	return nil
}

// MoveTo moves record id to position target within its scope. Targets past
// the end clamp to last and targets below 1 clamp to first.
func (s *Sequencer) MoveTo(tx *gorm.DB, scope OrderScope, id uint, target int) error {
	rows, err := s.lock(tx, scope)
	if err != nil {
		return err
	}

	var others []uint
	found := false
	for _, r := range rows {
		if r.ID == id {
			found = true
			continue
		}
		others = append(others, r.ID)
	}
	if !found {
		return NotFound(scope.Table+" record", id)
	}

	idx := target - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(others) {
		idx = len(others)
	}

	final := make([]uint, 0, len(rows))
	final = append(final, others[:idx]...)
	final = append(final, id)
	final = append(final, others[idx:]...)

	if sameOrder(rows, final) {
		return nil
	}
	if err := s.displace(tx, scope, rows); err != nil {
		return err
	}
	return s.place(tx, scope, final)
}

// Reorder applies a partial id -> position mapping in two phases: every row
// is first displaced above the current maximum, then the final list is
// written as 1..N. Unmapped rows keep their relative order; mapped rows are
// inserted in ascending requested position, clamped to the list length.
func (s *Sequencer) Reorder(tx *gorm.DB, scope OrderScope, mapping map[uint]int) error {
	if len(mapping) == 0 {
		return nil
	}

	seen := make(map[int]uint, len(mapping))
	for id, pos := range mapping {
		if pos < 1 {
			return Validation(CodeValidation, "position for record %d must be at least 1, got %d", id, pos)
		}
		if other, dup := seen[pos]; dup {
			return ConstraintViolation(CodeDuplicatePosition, "records %d and %d both requested position %d", other, id, pos)
		}
		seen[pos] = id
	}

	rows, err := s.lock(tx, scope)
	if err != nil {
		return err
	}

	current := make(map[uint]int, len(rows))
	for _, r := range rows {
		current[r.ID] = r.Position
	}

	type move struct {
		id     uint
		target int
	}
	moves := make([]move, 0, len(mapping))
	for id, pos := range mapping {
		if _, ok := current[id]; !ok {
			return NotFound(scope.Table+" record", id)
		}
		moves = append(moves, move{id: id, target: pos})
	}
	sort.Slice(moves, func(i, j int) bool {
		if moves[i].target != moves[j].target {
			return moves[i].target < moves[j].target
		}
		return current[moves[i].id] < current[moves[j].id]
	})

	final := make([]uint, 0, len(rows))
	for _, r := range rows {
		if _, mapped := mapping[r.ID]; !mapped {
			final = append(final, r.ID)
		}
	}
	for _, m := range moves {
		idx := m.target - 1
		if idx > len(final) {
			idx = len(final)
		}
		final = append(final, 0)
		copy(final[idx+1:], final[idx:])
		final[idx] = m.id
	}

	if sameOrder(rows, final) {
		return nil
	}
	if err := s.displace(tx, scope, rows); err != nil {
		return err
	}
	return s.place(tx, scope, final)
}

// MoveAcross moves record id out of scope from into scope to at position
// target. The old scope is compacted. assign must update the record's scope
// columns to match to.
func (s *Sequencer) MoveAcross(tx *gorm.DB, from, to OrderScope, id uint, target int, assign map[string]interface{}) error {
	rows, err := s.lock(tx, from)
	if err != nil {
		return err
	}
	oldPos := -1
	for _, r := range rows {
		if r.ID == id {
			oldPos = r.Position
		}
	}
	if oldPos < 0 {
		return NotFound(from.Table+" record", id)
	}

	next, err := s.NextPosition(tx, to)
	if err != nil {
		return err
	}
	updates := make(map[string]interface{}, len(assign)+1)
	for k, v := range assign {
		updates[k] = v
	}
	updates[positionColumn] = next
	if err := tx.Table(from.Table).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to move %s %d to %s: %w", from.Table, id, to, err)
	}

	if err := s.Compact(tx, from, oldPos); err != nil {
		return err
	}
	return s.MoveTo(tx, to, id, target)
}

// lockingClause renders SELECT ... FOR UPDATE where the dialect supports it.
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func sameOrder(rows []orderedRow, final []uint) bool {
	if len(rows) != len(final) {
		return false
	}
	for i, r := range rows {
		if r.ID != final[i] || r.Position != i+1 {
			return false
		}
	}
	return true
}
