package delta

import (
	"iter"

	"github.com/roach88/configstore/internal/model"
)

// Versioned is anything a snapshot can hold.
type Versioned interface {
	comparable
	ID() string
	IDPrefix() string
	Version() string
}

type tagged[T Versioned] struct {
	change model.ChangeType
	entity T
}

func sortKey[T Versioned](v T) string {
	return v.IDPrefix() + v.ID()
}

// ordered returns a check that element i of s is strictly greater than
// element i-1.
func ordered[T Versioned](side string, s []T) func(i int) error {
	return func(i int) error {
		if i == 0 {
			return nil
		}
		prev, cur := sortKey(s[i-1]), sortKey(s[i])
		if cur <= prev {
			return model.NewError(model.ErrCodeOrderingViolation,
				"%s sequence out of order at index %d: %q follows %q", side, i, cur, prev)
		}
		return nil
	}
}

// merge yields start elements tagged DELETE and end elements tagged ADD in
// composite key order. Start elements win ties.
func merge[T Versioned](start, end []T) iter.Seq2[tagged[T], error] {
	return func(yield func(tagged[T], error) bool) {
		checkStart, checkEnd := ordered("start", start), ordered("end", end)
		i, j := 0, 0
		for i < len(start) || j < len(end) {
			takeStart := j >= len(end) || (i < len(start) && sortKey(start[i]) <= sortKey(end[j]))
			if takeStart {
				if err := checkStart(i); err != nil {
					yield(tagged[T]{}, err)
					return
				}
				if !yield(tagged[T]{change: model.ChangeDelete, entity: start[i]}, nil) {
					return
				}
				i++
				continue
			}
			if err := checkEnd(j); err != nil {
				yield(tagged[T]{}, err)
				return
			}
			if !yield(tagged[T]{change: model.ChangeAdd, entity: end[j]}, nil) {
				return
			}
			j++
		}
	}
}

// resolve turns one id group into at most one delta.
func resolve[T Versioned](group []tagged[T]) (model.Delta[T], bool, error) {
	switch len(group) {
	case 1:
		return model.Delta[T]{Type: group[0].change, Entity: group[0].entity}, true, nil
	case 2:
		before, after := group[0], group[1]
		if before.change == after.change {
			return model.Delta[T]{}, false, model.NewError(model.ErrCodeUnexpectedGroup,
				"id %q appears twice on the same side", before.entity.ID())
		}
		// A relocated entity can sort ahead of its old location.
		if before.change == model.ChangeAdd {
			before, after = after, before
		}
		if before.entity.Version() == after.entity.Version() {
			return model.Delta[T]{}, false, nil
		}
		return model.Delta[T]{Type: model.ChangeUpdate, Entity: after.entity}, true, nil
	}
	return model.Delta[T]{}, false, model.NewError(model.ErrCodeUnexpectedGroup,
		"id %q appears %d times across snapshots", group[0].entity.ID(), len(group))
}

// Deltas yields the changes that turn start into end. Iteration stops
// after the first error.
func Deltas[T Versioned](start, end []T) iter.Seq2[model.Delta[T], error] {
	return func(yield func(model.Delta[T], error) bool) {
		var group []tagged[T]
		flush := func() bool {
			if len(group) == 0 {
				return true
			}
			d, ok, err := resolve(group)
			group = group[:0]
			if err != nil {
				yield(model.Delta[T]{}, err)
				return false
			}
			if ok {
				return yield(d, nil)
			}
			return true
		}

		for t, err := range merge(start, end) {
			if err != nil {
				yield(model.Delta[T]{}, err)
				return
			}
			if len(group) > 0 && group[0].entity.ID() != t.entity.ID() {
				if !flush() {
					return
				}
			}
			group = append(group, t)
		}
		flush()
	}
}

// Diff collects Deltas into a slice.
func Diff[T Versioned](start, end []T) ([]model.Delta[T], error) {
	var out []model.Delta[T]
	for d, err := range Deltas(start, end) {
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// CheckOrder reports the first ordering violation in s.
func CheckOrder[T Versioned](s []T) error {
	check := ordered("snapshot", s)
	for i := range s {
		if err := check(i); err != nil {
			return err
		}
	}
	return nil
}
