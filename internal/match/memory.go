package match

import "runtime"

// Memory accounting is cooperative and process-local: sample heap usage
// around each agent invocation after a garbage-reclaim cycle and charge
// the growth to the agent. This is an approximation for catching runaway
// allocators, not a security boundary; concurrent matches bleed into each
// other's samples.

func memBaseline() uint64 {
	runtime.GC()
	return heapAlloc()
}

func heapAlloc() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.HeapAlloc
}

// memDelta charges only growth; a shrinking heap charges nothing.
func memDelta(before, after uint64) uint64 {
	if after <= before {
		return 0
	}
	return after - before
}
