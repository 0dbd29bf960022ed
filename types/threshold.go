package types

// ThresholdParams holds the voting-power ratios that determine when a
// tally of votes constitutes a threshold event (spec.md §3 "Threshold
// parameters").
type ThresholdParams struct {
	// Quorum is the minimum fraction of total voting power needed to
	// consider a set of votes a quorum. Default 2/3.
	Quorum Ratio

	// Honest is the minimum fraction of total voting power that can only
	// be explained by at least one honest validator, used to justify a
	// round skip. Default 1/3 (f+1 in an n=3f+1 system).
	Honest Ratio

	// Certificate is used only in FaB mode, replacing the precommit
	// quorum: 4f+1 of n=5f+1, default 4/5.
	Certificate Ratio

	// Lock is used only in FaB mode: the 2f+1-of-n=5f+1 threshold a
	// value's prevote weight must meet, within an observed certificate,
	// to count as a lock a Prepropose proposer must honor (spec.md §4.3
	// "Locking rule", §9 FaB open question). Default 2/5.
	Lock Ratio
}

// DefaultTendermintParams returns the default quorum=2/3, honest=1/3
// thresholds used by the Tendermint variant.
func DefaultTendermintParams() ThresholdParams {
	return ThresholdParams{
		Quorum: Ratio{Num: 2, Denom: 3},
		Honest: Ratio{Num: 1, Denom: 3},
	}
}

// DefaultFaBParams returns the default quorum=4/5 (as Certificate),
// honest=1/3 thresholds used by the FaB variant.
func DefaultFaBParams() ThresholdParams {
	return ThresholdParams{
		Honest:      Ratio{Num: 1, Denom: 3},
		Certificate: Ratio{Num: 4, Denom: 5},
		Lock:        Ratio{Num: 2, Denom: 5},
	}
}

// Ratio is a simple fraction, used to avoid floating point error when
// comparing accumulated voting power against a total.
type Ratio struct {
	Num, Denom uint64
}

// MetBy reports whether weight out of total meets this ratio, i.e.
// weight*Denom >= Num*total.
func (r Ratio) MetBy(weight, total uint64) bool {
	if r.Denom == 0 {
		return false
	}
	return weight*r.Denom >= r.Num*total
}

// ThresholdKind names the kind of threshold a tally may have crossed.
// Tendermint mode uses PolkaAny/PolkaNil/PolkaValue/PrecommitAny/
// PrecommitValue/SkipRound; FaB mode uses CertificateAny/CertificateValue/
// SkipRound (spec.md §4.1).
type ThresholdKind uint8

const (
	_ ThresholdKind = iota

	PolkaAny
	PolkaNil
	PolkaValue
	PrecommitAny
	PrecommitValue
	SkipRoundThreshold

	CertificateAny
	CertificateValue
)

func (k ThresholdKind) String() string {
	switch k {
	case PolkaAny:
		return "PolkaAny"
	case PolkaNil:
		return "PolkaNil"
	case PolkaValue:
		return "PolkaValue"
	case PrecommitAny:
		return "PrecommitAny"
	case PrecommitValue:
		return "PrecommitValue"
	case SkipRoundThreshold:
		return "SkipRound"
	case CertificateAny:
		return "CertificateAny"
	case CertificateValue:
		return "CertificateValue"
	default:
		return "Unknown"
	}
}
