package xtest

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func nilString(x *string) string {
	if x == nil {
		return ""
	}

	return *x
}

// IgnoreTimestamps drops the fields the database fills in on write.
var IgnoreTimestamps = cmp.FilterPath(func(p cmp.Path) bool {
	switch p.Last().String() {
	case ".CreatedAt", ".UpdatedAt", ".ExpiresAt":
		return true
	default:
		return false
	}
}, cmp.Ignore())

// Equal provides semantic equality comparison: nil and empty strings match, times compare by instant.
func Equal(a, b any, opts ...cmp.Option) bool {
	return cmp.Equal(a, b, options(opts)...)
}

// Diff is Equal for test failure messages.
func Diff(a, b any, opts ...cmp.Option) string {
	return cmp.Diff(a, b, options(opts)...)
}

func options(opts []cmp.Option) []cmp.Option {
	all := make([]cmp.Option, 0, len(opts)+3)
	all = append(all, opts...)
	all = append(all,
		cmp.Transformer("", nilString),
		cmpopts.EquateApproxTime(time.Millisecond),
		cmpopts.EquateEmpty(),
	)

	return all
}
