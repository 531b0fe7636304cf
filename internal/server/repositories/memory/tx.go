package memory

// Tx journals the file and version writes made through its repositories so
// that Rollback can reverse them. Writes to the other tables are not undone.
type Tx struct {
	s    *Store
	undo []func()
}

func (s *Store) Begin() *Tx {
	return &Tx{s: s}
}

func (t *Tx) Files() *FileRepository       { return &FileRepository{s: t.s, tx: t} }
func (t *Tx) Versions() *VersionRepository { return &VersionRepository{s: t.s, tx: t} }

// record adds an undo step. The caller holds s.mu.
func (t *Tx) record(fn func()) {
	if t != nil {
		t.undo = append(t.undo, fn)
	}
}

// Rollback undoes the journaled writes, newest first.
func (t *Tx) Rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
