// Package sais computes the suffix array of a byte sequence over the
// alphabet {$,A,C,G,T} using the SA-IS (suffix-array induced-sorting)
// algorithm, per spec.md §4.4 (C4). Any correct O(n) or O(n log n)
// algorithm satisfies the contract; SA-IS is linear time.
package sais

import "fmt"

// rank maps a base symbol to its lexicographic rank. '$' is smallest, as
// required by spec.md §3.
func rank(c byte) int {
	switch c {
	case '$':
		return 0
	case 'A':
		return 1
	case 'C':
		return 2
	case 'G':
		return 3
	case 'T':
		return 4
	default:
		panic(fmt.Sprintf("sais: symbol %q outside the {$,A,C,G,T} alphabet", c))
	}
}

// Compute returns the suffix array of seq: a permutation of [0,len(seq))
// such that the suffixes seq[SA[i]:] are in lexicographic order. seq must
// end with a unique, lexicographically-smallest '$' sentinel (spec.md §3).
func Compute(seq []byte) []int32 {
	n := len(seq)
	if n == 0 {
		return nil
	}
	ranked := make([]int, n)
	for i, c := range seq {
		ranked[i] = rank(c)
	}
	sa := saisRec(ranked, 5)
	out := make([]int32, n)
	for i, v := range sa {
		out[i] = int32(v)
	}
	return out
}

// saisRec computes the suffix array of s (an integer alphabet of size K,
// symbols in [0,K), with a unique minimal symbol at s[len(s)-1]) using the
// SA-IS reduction: classify S/L types, induce-sort LMS substrings, rename
// them, recurse on the reduced problem, then induce-sort the full array
// from the recursively-ordered LMS suffixes.
func saisRec(s []int, K int) []int {
	n := len(s)
	sa := make([]int, n)
	for i := range sa {
		sa[i] = -1
	}
	if n == 0 {
		return sa
	}
	if n == 1 {
		sa[0] = 0
		return sa
	}

	// t[i] = true means s[i] is S-type (s[i] < s[i+1], or equal and s[i+1] is S-type).
	t := make([]bool, n)
	t[n-1] = true
	for i := n - 2; i >= 0; i-- {
		switch {
		case s[i] < s[i+1]:
			t[i] = true
		case s[i] > s[i+1]:
			t[i] = false
		default:
			t[i] = t[i+1]
		}
	}
	isLMS := func(i int) bool { return i > 0 && t[i] && !t[i-1] }

	var lmsPositions []int
	for i := 1; i < n; i++ {
		if isLMS(i) {
			lmsPositions = append(lmsPositions, i)
		}
	}

	induceSort(s, sa, t, K, lmsPositions)

	var sortedLMS []int
	for _, pos := range sa {
		if isLMS(pos) {
			sortedLMS = append(sortedLMS, pos)
		}
	}

	lmsNames := make([]int, n)
	for i := range lmsNames {
		lmsNames[i] = -1
	}
	name := 0
	prev := -1
	for _, pos := range sortedLMS {
		if prev != -1 && !lmsSubstringEqual(s, t, isLMS, prev, pos) {
			name++
		}
		lmsNames[pos] = name
		prev = pos
	}
	numNames := name + 1

	reduced := make([]int, len(lmsPositions))
	for i, pos := range lmsPositions {
		reduced[i] = lmsNames[pos]
	}

	var reducedSA []int
	if numNames < len(reduced) {
		reducedSA = saisRec(reduced, numNames)
	} else {
		reducedSA = make([]int, len(reduced))
		for i, nm := range reduced {
			reducedSA[nm] = i
		}
	}

	orderedLMS := make([]int, len(reducedSA))
	for i, idx := range reducedSA {
		orderedLMS[i] = lmsPositions[idx]
	}

	for i := range sa {
		sa[i] = -1
	}
	induceSort(s, sa, t, K, orderedLMS)
	return sa
}

func induceSort(s []int, sa []int, t []bool, K int, lms []int) {
	bucketSizes := make([]int, K)
	for _, c := range s {
		bucketSizes[c]++
	}

	bucketTails := make([]int, K)
	sum := 0
	for i, sz := range bucketSizes {
		sum += sz
		bucketTails[i] = sum - 1
	}
	for i := len(lms) - 1; i >= 0; i-- {
		pos := lms[i]
		c := s[pos]
		sa[bucketTails[c]] = pos
		bucketTails[c]--
	}

	bucketHeads := make([]int, K)
	sum = 0
	for i, sz := range bucketSizes {
		bucketHeads[i] = sum
		sum += sz
	}
	for i := range sa {
		pos := sa[i]
		if pos > 0 && !t[pos-1] {
			c := s[pos-1]
			sa[bucketHeads[c]] = pos - 1
			bucketHeads[c]++
		}
	}

	bucketTails2 := make([]int, K)
	sum = 0
	for i, sz := range bucketSizes {
		sum += sz
		bucketTails2[i] = sum - 1
	}
	for i := len(sa) - 1; i >= 0; i-- {
		pos := sa[i]
		if pos > 0 && t[pos-1] {
			c := s[pos-1]
			sa[bucketTails2[c]] = pos - 1
			bucketTails2[c]--
		}
	}
}

func lmsSubstringEqual(s []int, t []bool, isLMS func(int) bool, i, j int) bool {
	n := len(s)
	for first := true; ; first = false {
		if s[i] != s[j] || t[i] != t[j] {
			return false
		}
		if !first {
			iLMS, jLMS := isLMS(i), isLMS(j)
			if iLMS && jLMS {
				return true
			}
			if iLMS != jLMS {
				return false
			}
		}
		i++
		j++
		if i >= n || j >= n {
			return false
		}
	}
}
