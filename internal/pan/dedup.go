package pan

import (
	"hash/fnv"
	"sort"
	"sync"
)

// DedupStats describes one deduplication pass.
type DedupStats struct {
	Input      int `json:"input"`
	Unique     int `json:"unique"`
	Duplicates int `json:"duplicates"`
}

// Dedupe keeps the first occurrence of every identifier and drops later
// copies. Output preserves first-seen order.
func Dedupe(ids []string) ([]string, DedupStats) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, statsFor(len(ids), len(out))
}

// DedupeParallel partitions identifiers by hash, dedupes the partitions
// concurrently and merges them. Membership and order match Dedupe.
func DedupeParallel(ids []string, partitions int) ([]string, DedupStats) {
	if partitions <= 1 || len(ids) < partitions {
		return Dedupe(ids)
	}

	buckets := make([][]int, partitions)
	for i, id := range ids {
		p := partitionOf(id, partitions)
		buckets[p] = append(buckets[p], i)
	}

	firsts := make([][]int, partitions)
	var wg sync.WaitGroup
	for p := range buckets {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			seen := make(map[string]struct{}, len(buckets[p]))
			for _, i := range buckets[p] {
				if _, ok := seen[ids[i]]; ok {
					continue
				}
				seen[ids[i]] = struct{}{}
				firsts[p] = append(firsts[p], i)
			}
		}(p)
	}
	wg.Wait()

	var merged []int
	for _, f := range firsts {
		merged = append(merged, f...)
	}
	sort.Ints(merged)

	out := make([]string, len(merged))
	for j, i := range merged {
		out[j] = ids[i]
	}
	return out, statsFor(len(ids), len(out))
}

func partitionOf(id string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(n))
}

func statsFor(input, unique int) DedupStats {
	return DedupStats{Input: input, Unique: unique, Duplicates: input - unique}
}
