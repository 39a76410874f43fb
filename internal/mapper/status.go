package mapper

// Status is the state of a [Manager] reported by the debug API.
type Status struct {
	// Generation is the generation of the published snapshot or zero if there
	// isn't one.
	Generation uint64 `json:"generation"`

	// Epoch is the current publish epoch.
	Epoch uint64 `json:"epoch"`

	// Readers is the number of registered readers.
	Readers int `json:"readers"`
}

// Status returns the current state of m.  It doesn't block on publishes.
func (m *Manager) Status() (st Status) {
	if s := m.current.Load(); s != nil {
		st.Generation = s.Generation()
	}

	st.Epoch = m.epoch.Load()

	m.readersMu.Lock()
	defer m.readersMu.Unlock()

	for range m.readers.Range {
		st.Readers++
	}

	return st
}
