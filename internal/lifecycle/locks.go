package lifecycle

import "sync"

// PairLocks serializes writes to one (student, job) pair. The state machine
// and the outreach coordinator mutate the same records, so both must lock
// through the same registry; separate registries would leave the store's
// version check as the only guard between them.
type PairLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPairLocks() *PairLocks {
	return &PairLocks{locks: make(map[string]*sync.Mutex)}
}

// Get returns the mutex for the pair, creating it on first use.
func (p *PairLocks) Get(studentID, jobID string) *sync.Mutex {
	key := studentID + "|" + jobID

	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	return lock
}
