package fields

// Merge replaces every field of one provenance wholesale: the result is existing
// minus the fields tagged with provenance, followed by incoming. Incoming records
// without a source are stamped with provenance; records tagged with a different
// provenance are dropped so one merge never mixes two origins. Neither input is
// modified, and merging the same batch twice gives the same list.
func Merge(existing, incoming []FieldRecord, provenance Provenance) []FieldRecord {
	merged := make([]FieldRecord, 0, len(existing)+len(incoming))
	merged = append(merged, Without(existing, provenance)...)

	for _, r := range incoming {
		switch r.Source {
		case "":
			r.Source = provenance
		case provenance:
		default:
			continue
		}
		merged = append(merged, r)
	}
	return merged
}
