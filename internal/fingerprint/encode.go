package fingerprint

// Key is the translation-invariant hash of one anchor/partner peak pair:
// both frequency bins plus their frame separation. The anchor's absolute time
// is deliberately not part of the key, only of the stored value.
type Key struct {
	F1 uint32 // anchor frequency bin
	F2 uint32 // partner frequency bin
	DT uint32 // partner time - anchor time, in frames
}

// Pairing couples a key with the anchor's absolute frame index.
type Pairing struct {
	Key        Key
	AnchorTime uint32
}

// Group holds every pairing generated from one anchor peak.
type Group []Pairing

// EncodeFingerprints walks the ordered peak list and pairs each anchor peak i
// with the peaks at i+1 through i+fanout, truncated at the end of the list.
// Pairing is forward-only and never wraps, so under column-major peak ordering
// every DT is non-negative. One group is emitted per anchor, in anchor order;
// the trailing fanout-many groups are short or empty.
func EncodeFingerprints(peaks []Peak, cfg Config) ([]Group, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	groups := make([]Group, len(peaks))
	for i, anchor := range peaks {
		end := i + cfg.FanoutSize + 1
		if end > len(peaks) {
			end = len(peaks)
		}
		group := make(Group, 0, end-i-1)
		for _, partner := range peaks[i+1 : end] {
			group = append(group, Pairing{
				Key: Key{
					F1: uint32(anchor.Freq),
					F2: uint32(partner.Freq),
					DT: uint32(partner.Time - anchor.Time),
				},
				AnchorTime: uint32(anchor.Time),
			})
		}
		groups[i] = group
	}
	return groups, nil
}

// CountPairings returns the total number of pairings across all groups.
func CountPairings(groups []Group) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}
