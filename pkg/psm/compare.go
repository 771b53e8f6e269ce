package psm

// CompareHypotheses orders hypotheses canonically. It returns a negative number when a
// ranks before b, positive when after and zero when they are equivalent. The order is:
// notch ascending, missing candidate last, matched ion count descending with a nil ion
// list after an empty one, modification
// count ascending, full sequence ascending (non-letters before letters), accession
// ascending with parentless candidates last, start residue ascending.
func CompareHypotheses(a, b Hypothesis) int {
	if a.Notch != b.Notch {
		return sign(a.Notch - b.Notch)
	}

	switch ca, cb := a.Candidate == nil, b.Candidate == nil; {
	case ca && cb:
		return 0
	case ca:
		return 1
	case cb:
		return -1
	}

	if na, nb := len(a.Ions), len(b.Ions); na != nb {
		return sign(nb - na)
	}
	switch ia, ib := a.Ions == nil, b.Ions == nil; {
	case ia && !ib:
		return 1
	case !ia && ib:
		return -1
	}
	pa, pb := a.Candidate, b.Candidate
	if ma, mb := pa.NumMods(), pb.NumMods(); ma != mb {
		return sign(ma - mb)
	}
	if c := compareSequences(pa.FullSequence(), pb.FullSequence()); c != 0 {
		return c
	}
	if c := compareAccessions(pa, pb); c != 0 {
		return c
	}
	return sign(pa.OneBasedStartResidue() - pb.OneBasedStartResidue())
}

// seqRank places every non-letter byte before every letter, so a modification bracket
// sorts before a residue.
func seqRank(c byte) int {
	if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') {
		return 256 + int(c)
	}
	return int(c)
}

func compareSequences(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if ra, rb := seqRank(a[i]), seqRank(b[i]); ra != rb {
			return sign(ra - rb)
		}
	}
	return sign(len(a) - len(b))
}

func compareAccessions(a, b Candidate) int {
	acc := func(c Candidate) (string, bool) {
		if !c.HasParent() || c.Accession() == "" {
			return "", false
		}
		return c.Accession(), true
	}
	sa, oka := acc(a)
	sb, okb := acc(b)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func sign(x int) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	}
	return 0
}
