package loyalty

import (
	"fmt"

	"communityhub/internal/config"
	"communityhub/internal/pkg/apperr"
)

// Tier is a membership bracket over cumulative spend: [MinSpend, MaxSpend).
// MaxSpend is nil only on the top tier.
type Tier struct {
	Name       string `json:"name"`
	MinSpend   int64  `json:"min_spend"`
	MaxSpend   *int64 `json:"max_spend"`
	PointValue int64  `json:"point_value"`
}

func (t Tier) Contains(spend int64) bool {
	return spend >= t.MinSpend && (t.MaxSpend == nil || spend < *t.MaxSpend)
}

// Table is an ordered, contiguous partition of [0, ∞) by spend.
// It is immutable after construction.
type Table struct {
	tiers []Tier
}

func NewTable(tiers []Tier) (*Table, error) {
	if len(tiers) == 0 {
		return nil, invalidTable("at least one tier is required")
	}
	if tiers[0].MinSpend != 0 {
		return nil, invalidTable("first tier must start at 0, got %d", tiers[0].MinSpend)
	}

	names := make(map[string]bool, len(tiers))
	out := make([]Tier, len(tiers))
	last := len(tiers) - 1
	for i, t := range tiers {
		if t.Name == "" {
			return nil, invalidTable("tier %d has no name", i)
		}
		if names[t.Name] {
			return nil, invalidTable("duplicate tier %q", t.Name)
		}
		names[t.Name] = true
		if t.PointValue <= 0 {
			return nil, invalidTable("tier %q point value must be positive", t.Name)
		}

		if i == last {
			if t.MaxSpend != nil {
				return nil, invalidTable("top tier %q must be unbounded", t.Name)
			}
		} else {
			if t.MaxSpend == nil {
				return nil, invalidTable("only the top tier may be unbounded, %q is not last", t.Name)
			}
			if *t.MaxSpend <= t.MinSpend {
				return nil, invalidTable("tier %q is empty", t.Name)
			}
			if tiers[i+1].MinSpend != *t.MaxSpend {
				return nil, invalidTable("tier %q must start at %d", tiers[i+1].Name, *t.MaxSpend)
			}
		}

		if t.MaxSpend != nil {
			upper := *t.MaxSpend
			t.MaxSpend = &upper
		}
		out[i] = t
	}

	return &Table{tiers: out}, nil
}

// TableFromConfig builds the table from the catalog's tier section.
func TableFromConfig(cfg []config.TierConfig) (*Table, error) {
	tiers := make([]Tier, 0, len(cfg))
	for _, c := range cfg {
		tiers = append(tiers, Tier{
			Name:       c.Name,
			MinSpend:   c.MinSpend,
			MaxSpend:   c.MaxSpend,
			PointValue: c.PointValue,
		})
	}
	return NewTable(tiers)
}

func DefaultTable() *Table {
	t, err := TableFromConfig(config.DefaultCatalog().Loyalty.Tiers)
	if err != nil {
		panic(err)
	}
	return t
}

// TierFor returns the single tier containing spend.
func (t *Table) TierFor(spend int64) (Tier, error) {
	i, err := t.index(spend)
	if err != nil {
		return Tier{}, err
	}
	return t.tiers[i], nil
}

// Next returns the tier above the named one; ok is false for the top tier
// and for unknown names.
func (t *Table) Next(name string) (Tier, bool) {
	for i, tier := range t.tiers {
		if tier.Name == name && i+1 < len(t.tiers) {
			return t.tiers[i+1], true
		}
	}
	return Tier{}, false
}

// Progress is (spend - tier.min) / (next.min - tier.min), or 1 on the top tier.
func (t *Table) Progress(spend int64) (float64, error) {
	i, err := t.index(spend)
	if err != nil {
		return 0, err
	}
	if i == len(t.tiers)-1 {
		return 1, nil
	}

	cur, next := t.tiers[i], t.tiers[i+1]
	p := float64(spend-cur.MinSpend) / float64(next.MinSpend-cur.MinSpend)
	switch {
	case p < 0:
		return 0, nil
	case p > 1:
		return 1, nil
	}
	return p, nil
}

// Tiers returns a copy of the table rows, lowest first.
func (t *Table) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

func (t *Table) index(spend int64) (int, error) {
	if spend < 0 {
		return 0, ErrNegativeSpend
	}
	for i := len(t.tiers) - 1; i >= 0; i-- {
		if spend >= t.tiers[i].MinSpend {
			return i, nil
		}
	}
	return 0, ErrNegativeSpend
}

func invalidTable(format string, args ...any) error {
	return fmt.Errorf("%w: tier table: %s", apperr.ErrInvalidInput, fmt.Sprintf(format, args...))
}
