package reconcile

import (
	"sync"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// Sales mirrors the sales list, newest first.
type Sales struct {
	*Mirror[uint, domain.Sale]
}

func NewSales() *Sales {
	return &Sales{Mirror: NewMirror[uint, domain.Sale]()}
}

func (s *Sales) Hydrate(sales []domain.Sale) {
	s.Reset(sales, func(v domain.Sale) uint { return v.ID })
}

func (s *Sales) Apply(ev domain.Event) bool {
	switch p := ev.Payload.(type) {
	case domain.SaleCreated:
		return s.Insert(p.Sale.ID, p.Sale, true)
	case domain.SaleDeleted:
		return s.Remove(p.SaleID)
	}
	return false
}

// Variants mirrors the variants of one jersey, or of every jersey when the
// scope is zero. Stock updates carry a per-SKU version; anything not newer than
// what the mirror holds is stale and dropped.
type Variants struct {
	*Mirror[uint, domain.Variant]

	scope uint
	mu    sync.Mutex
	bySKU map[string]uint
}

func NewVariants(jerseyID uint) *Variants {
	return &Variants{Mirror: NewMirror[uint, domain.Variant](), scope: jerseyID, bySKU: make(map[string]uint)}
}

func (v *Variants) Scope() uint {
	return v.scope
}

func (v *Variants) Hydrate(variants []domain.Variant) {
	v.mu.Lock()
	defer v.mu.Unlock()

	scoped := make([]domain.Variant, 0, len(variants))
	for _, vr := range variants {
		if v.inScope(vr.JerseyID) {
			scoped = append(scoped, vr)
		}
	}
	v.Reset(scoped, func(vr domain.Variant) uint { return vr.ID })
	v.bySKU = make(map[string]uint, len(scoped))
	for _, vr := range scoped {
		v.bySKU[vr.SKU] = vr.ID
	}
}

func (v *Variants) BySKU(sku string) (domain.Variant, bool) {
	v.mu.Lock()
	id, ok := v.bySKU[sku]
	v.mu.Unlock()
	if !ok {
		return domain.Variant{}, false
	}
	return v.Get(id)
}

func (v *Variants) Apply(ev domain.Event) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch p := ev.Payload.(type) {
	case domain.StockUpdated:
		if !v.inScope(p.JerseyID) {
			return false
		}
		id, ok := v.bySKU[p.SKU]
		if !ok {
			return false
		}
		return v.Update(id, func(cur domain.Variant) (domain.Variant, bool) {
			if p.Version != 0 && p.Version <= cur.StockVersion {
				return cur, false
			}
			if p.Version == 0 && cur.StockQuantity == p.NewQuantity {
				return cur, false
			}
			cur.StockQuantity = p.NewQuantity
			if p.Version != 0 {
				cur.StockVersion = p.Version
			}
			return cur, true
		})

	case domain.VariantCreated:
		if !v.inScope(p.JerseyID) {
			return false
		}
		if !v.Insert(p.Variant.ID, p.Variant, false) {
			return false
		}
		v.bySKU[p.Variant.SKU] = p.Variant.ID
		return true

	case domain.VariantDeleted:
		if !v.inScope(p.JerseyID) {
			return false
		}
		cur, ok := v.Get(p.VariantID)
		if !ok {
			return false
		}
		delete(v.bySKU, cur.SKU)
		return v.Remove(p.VariantID)

	case domain.JerseyDeleted:
		if !v.inScope(p.JerseyID) {
			return false
		}
		n := v.RemoveIf(func(vr domain.Variant) bool {
			if vr.JerseyID != p.JerseyID {
				return false
			}
			delete(v.bySKU, vr.SKU)
			return true
		})
		return n > 0
	}
	return false
}

func (v *Variants) inScope(jerseyID uint) bool {
	return v.scope == 0 || v.scope == jerseyID
}

// Coupons mirrors the available coupon list in import order.
type Coupons struct {
	*Mirror[uint, domain.Coupon]
}

func NewCoupons() *Coupons {
	return &Coupons{Mirror: NewMirror[uint, domain.Coupon]()}
}

func (c *Coupons) Hydrate(coupons []domain.Coupon) {
	c.Reset(coupons, func(v domain.Coupon) uint { return v.ID })
}

func (c *Coupons) Apply(ev domain.Event) bool {
	switch p := ev.Payload.(type) {
	case domain.CouponImported:
		return c.Insert(p.Coupon.ID, p.Coupon, false)
	case domain.CouponClaimed:
		return c.Remove(p.CouponID)
	}
	return false
}

// Jerseys mirrors the jersey list; only deletions arrive as events.
type Jerseys struct {
	*Mirror[uint, domain.Jersey]
}

func NewJerseys() *Jerseys {
	return &Jerseys{Mirror: NewMirror[uint, domain.Jersey]()}
}

func (j *Jerseys) Hydrate(jerseys []domain.Jersey) {
	j.Reset(jerseys, func(v domain.Jersey) uint { return v.ID })
}

func (j *Jerseys) Apply(ev domain.Event) bool {
	if p, ok := ev.Payload.(domain.JerseyDeleted); ok {
		return j.Remove(p.JerseyID)
	}
	return false
}
