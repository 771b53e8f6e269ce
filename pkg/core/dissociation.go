package core

import (
	"fmt"
	"strings"
)

// DissociationType is the fragmentation method used to produce an MS2 scan.
type DissociationType int

const (
	Unknown DissociationType = iota
	HCD
	CID
	ECD
	ETD
	EThcD
	IRMPD
	LowCID
	Custom
)

var dissociationNames = []string{"Unknown", "HCD", "CID", "ECD", "ETD", "EThcD", "IRMPD", "LowCID", "Custom"}

func (d DissociationType) String() string {
	if int(d) < 0 || int(d) >= len(dissociationNames) {
		return fmt.Sprintf("DissociationType(%d)", int(d))
	}
	return dissociationNames[d]
}

// ParseDissociationType parses a dissociation name case-insensitively.
func ParseDissociationType(s string) (DissociationType, error) {
	for i, name := range dissociationNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return DissociationType(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown dissociation type %q", s)
}
