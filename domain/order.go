package domain

// Partition returns tasks with every open task ahead of every completed one.
// Relative order inside each group is preserved.
func Partition(tasks []Task) []Task {
	return PartitionBy(tasks, func(t Task) bool { return t.Done })
}

// PartitionBy is Partition for any element type carrying a completion flag.
func PartitionBy[T any](items []T, done func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !done(it) {
			out = append(out, it)
		}
	}
	for _, it := range items {
		if done(it) {
			out = append(out, it)
		}
	}
	return out
}

// Ordered reports whether no open task follows a completed one.
func Ordered(tasks []Task) bool {
	seenDone := false
	for _, t := range tasks {
		if t.Done {
			seenDone = true
			continue
		}
		if seenDone {
			return false
		}
	}
	return true
}
