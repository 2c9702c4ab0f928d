package poller

type pollMetrics struct {
	totalSelected int
	created       int
	updated       int
	itemFailures  int
	errored       int
}

func (m *pollMetrics) Add(other *pollMetrics) {
	m.totalSelected += other.totalSelected
	m.created += other.created
	m.updated += other.updated
	m.itemFailures += other.itemFailures
	m.errored += other.errored
}
