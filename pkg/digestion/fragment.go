package digestion

import (
	"fmt"

	"github.com/smith-chem-wisc/MetaMorpheus-sub002/pkg/core"
)

// ProductType is a fragment ion series.
type ProductType int

const (
	A ProductType = iota
	B
	C
	X
	Y
	ZDot
	ZPlusOne
	M // intact precursor
	D // diagnostic ion
)

var productTypeNames = []string{"a", "b", "c", "x", "y", "zDot", "z+1", "M", "D"}

func (t ProductType) String() string {
	if int(t) < 0 || int(t) >= len(productTypeNames) {
		return fmt.Sprintf("ProductType(%d)", int(t))
	}
	return productTypeNames[t]
}

// ParseProductType accepts the names produced by String.
func ParseProductType(s string) (ProductType, error) {
	for i, name := range productTypeNames {
		if s == name {
			return ProductType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown product type %q", s)
}

// Terminus is the peptide end a product ion contains.
type Terminus int

const (
	NoTerminus Terminus = iota
	NTerm
	CTerm
)

// Terminus returns which end of the peptide the series contains.
func (t ProductType) Terminus() Terminus {
	switch t {
	case A, B, C:
		return NTerm
	case X, Y, ZDot, ZPlusOne:
		return CTerm
	}
	return NoTerminus
}

// massShift is added to the summed residue masses of a fragment.
func (t ProductType) massShift() float64 {
	switch t {
	case A:
		return -(core.MassC + core.MassO)
	case C:
		return core.AmmoniaMass
	case X:
		return core.MassC + 2*core.MassO
	case Y:
		return core.WaterMass
	case ZDot:
		return core.WaterMass - core.AmmoniaMass + core.MassH
	case ZPlusOne:
		return core.WaterMass - core.AmmoniaMass + 2*core.MassH
	}
	return 0
}

// ProductTypes returns the ion series produced by a dissociation type. Custom and Unknown
// have no built-in series.
func ProductTypes(d core.DissociationType) []ProductType {
	switch d {
	case core.HCD, core.CID, core.LowCID, core.IRMPD:
		return []ProductType{B, Y}
	case core.ECD, core.ETD:
		return []ProductType{C, Y, ZDot}
	case core.EThcD:
		return []ProductType{B, Y, C, ZDot}
	}
	return nil
}

// Product is a theoretical fragment ion.
type Product struct {
	Type              ProductType
	FragmentNumber    int
	AminoAcidPosition int
	NeutralMass       float64
	NeutralLoss       float64
}

// Annotation renders the product as e.g. "b3" or "y5-97.98".
func (p Product) Annotation() string {
	if p.NeutralLoss != 0 {
		return fmt.Sprintf("%s%d-%.2f", p.Type, p.FragmentNumber, p.NeutralLoss)
	}
	return fmt.Sprintf("%s%d", p.Type, p.FragmentNumber)
}

// FragmentOptions select the products generated by Fragment.
type FragmentOptions struct {
	Types         []ProductType
	Terminus      FragmentationTerminus
	NeutralLosses bool
}

// NewFragmentOptions builds options for a dissociation type. custom is used for Custom
// dissociation only.
func NewFragmentOptions(d core.DissociationType, term FragmentationTerminus, custom []ProductType) FragmentOptions {
	types := ProductTypes(d)
	if d == core.Custom {
		types = custom
	}
	losses := d == core.HCD || d == core.CID || d == core.LowCID || d == core.EThcD
	return FragmentOptions{Types: types, Terminus: term, NeutralLosses: losses}
}

// Fragment appends the theoretical products of p to dst[:0] and returns it. Products
// covering a residue of unknown mass have NaN mass.
func (p *Peptide) Fragment(opts FragmentOptions, dst []Product) []Product {
	dst = dst[:0]
	seq := p.baseSequence
	n := len(seq)

	var nTypes, cTypes []ProductType
	for _, t := range opts.Types {
		switch t.Terminus() {
		case NTerm:
			if opts.Terminus != CTerminus {
				nTypes = append(nTypes, t)
			}
		case CTerm:
			if opts.Terminus != NTerminus {
				cTypes = append(cTypes, t)
			}
		}
	}

	if len(nTypes) > 0 {
		mass, loss := 0.0, 0.0
		if m := p.mods[1]; m != nil {
			mass += m.Mass
		}
		for k := 1; k < n; k++ {
			rm, _ := core.ResidueMass(seq[k-1])
			mass += rm
			if m := p.mods[k+1]; m != nil {
				mass += m.Mass
				if loss == 0 {
					loss = m.NeutralLoss
				}
			}
			for _, t := range nTypes {
				if t == C && seq[k] == 'P' {
					continue
				}
				dst = p.appendProduct(dst, t, k, k, mass+t.massShift(), loss, opts.NeutralLosses)
			}
		}
	}

	if len(cTypes) > 0 {
		mass, loss := 0.0, 0.0
		if m := p.mods[n+2]; m != nil {
			mass += m.Mass
		}
		for k := 1; k < n; k++ {
			i := n - k
			rm, _ := core.ResidueMass(seq[i])
			mass += rm
			if m := p.mods[i+2]; m != nil {
				mass += m.Mass
				if loss == 0 {
					loss = m.NeutralLoss
				}
			}
			for _, t := range cTypes {
				if (t == ZDot || t == ZPlusOne) && seq[i] == 'P' {
					continue
				}
				dst = p.appendProduct(dst, t, k, i, mass+t.massShift(), loss, opts.NeutralLosses)
			}
		}
	}
	return dst
}

func (p *Peptide) appendProduct(dst []Product, t ProductType, number, position int, mass, loss float64, losses bool) []Product {
	dst = append(dst, Product{Type: t, FragmentNumber: number, AminoAcidPosition: position, NeutralMass: mass})
	if losses && loss > 0 {
		dst = append(dst, Product{Type: t, FragmentNumber: number, AminoAcidPosition: position, NeutralMass: mass - loss, NeutralLoss: loss})
	}
	return dst
}
