package matcher

import "sort"

// SelectUnique picks the candidates safe to apply without review: scenes
// with exactly one candidate file at or above threshold, where that file is
// not also claimed by another scene. Everything else stays for manual
// review.
func SelectUnique(candidates []Candidate, threshold int) []Candidate {
	perScene := make(map[string][]Candidate)
	claims := make(map[string]int)
	for _, c := range candidates {
		if c.Primary() < threshold {
			continue
		}
		perScene[c.ForeignID] = append(perScene[c.ForeignID], c)
		claims[c.Path]++
	}

	var unique []Candidate
	for _, group := range perScene {
		if len(group) != 1 {
			continue
		}
		winner := group[0]
		if claims[winner.Path] > 1 {
			continue
		}
		unique = append(unique, winner)
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].ForeignID < unique[j].ForeignID
	})
	return unique
}
