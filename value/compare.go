package value

import (
	"github.com/waysome/waysome/object"
)

// CompareNamed orders values by name. A non-named (or absent) value sorts
// after a named one in the sense that CompareNamed returns 1 for it, a
// named value against a non-named one yields -1, and two named values
// compare by their names. Two non-named values compare equal.
func CompareNamed(a, b Value) int {
	an, bn := TypeOf(a) == TypeNamed, TypeOf(b) == TypeNamed
	switch {
	case !an && bn:
		return 1
	case an && !bn:
		return -1
	case !an && !bn:
		return 0
	}
	return a.(*Named).name.Cmp(b.(*Named).name)
}

// Compare is a total order over values of any tag. Named values use
// CompareNamed. Values of equal tags use the variant comparator (Int's
// inverted convention, code unit order for strings, object comparators
// for references); bools follow the integer convention with false < true.
// Differing tags order by tag, the lower tag yielding 1.
func Compare(a, b Value) int {
	ta, tb := TypeOf(a), TypeOf(b)
	if ta == TypeNamed || tb == TypeNamed {
		return CompareNamed(a, b)
	}
	if ta != tb {
		if ta < tb {
			return 1
		}
		return -1
	}

	switch ta {
	case TypeBool:
		x, _ := a.(*Bool).Get()
		y, _ := b.(*Bool).Get()
		return compareInts(boolInt(x), boolInt(y))
	case TypeInt:
		c, _ := a.(*Int).Compare(b.(*Int))
		return c
	case TypeString:
		x, _ := a.(*Str).Get()
		y, _ := b.(*Str).Get()
		if x == nil || y == nil {
			return compareInts(nilRank(x == nil), nilRank(y == nil))
		}
		return x.Cmp(y)
	case TypeObjectID:
		x, _ := a.(*ObjectID).Get()
		y, _ := b.(*ObjectID).Get()
		if x == nil || y == nil {
			return compareInts(nilRank(x == nil), nilRank(y == nil))
		}
		return object.Compare(x, y)
	}
	return 0
}

// Equal reports whether a and b have the same tag and compare equal.
func Equal(a, b Value) bool {
	return TypeOf(a) == TypeOf(b) && Compare(a, b) == 0
}

func compareInts(a, b int64) int {
	switch {
	case a == b:
		return 0
	case a > b:
		return -1
	}
	return 1
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nilRank(isNil bool) int64 {
	if isNil {
		return 0
	}
	return 1
}
