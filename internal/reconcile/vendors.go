package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/farxc/dsd_reconciler/internal/store"
)

// VendorResolver finds vendors by a fragment of the name printed on the
// invoice, optionally creating them.
type VendorResolver struct {
	vendors vendorRepo
	matcher Matcher
}

func NewVendorResolver(vendors vendorRepo, matcher Matcher) *VendorResolver {
	if matcher == nil {
		matcher = DefaultVendorMatcher
	}
	return &VendorResolver{vendors: vendors, matcher: matcher}
}

// Find returns nil when no vendor matches.
func (vr *VendorResolver) Find(ctx context.Context, name string) (*store.Vendor, error) {
	fragment := vr.matcher.Pattern(name)
	if fragment == "" {
		return nil, nil
	}

	v, err := vr.vendors.FindByFragment(ctx, fragment)
	if hit, err := found(v, err); err != nil || !hit {
		return nil, err
	}
	return v, nil
}

// Resolve finds the vendor or creates it with a derived short code.
func (vr *VendorResolver) Resolve(ctx context.Context, name string) (*store.Vendor, bool, error) {
	v, err := vr.Find(ctx, name)
	if err != nil || v != nil {
		return v, false, err
	}

	name = strings.TrimSpace(name)
	code := ShortCode(name)
	v = &store.Vendor{Name: name, ShortCode: &code}
	if err := vr.vendors.Create(ctx, v); err != nil {
		return nil, false, fmt.Errorf("failed to create vendor %q: %w", name, err)
	}
	return v, true, nil
}
