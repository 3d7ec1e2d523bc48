package bridge

// Stats summarizes the bridge for status reporting.
type Stats struct {
	Instances int    `json:"instances"`
	Queued    int    `json:"queued"`
	Cooking   bool   `json:"cooking"`
	Session   string `json:"session"`
	Halted    bool   `json:"halted"`
	Lost      bool   `json:"lost"`
	// Reconnecting is set while an automatic reopen is in flight.
	Reconnecting bool `json:"reconnecting"`
	Failed       int  `json:"failed"`
	Restored     int  `json:"restored"`
}

// Stats returns a point-in-time summary.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	s := Stats{
		Instances:    b.reg.Len(),
		Queued:       b.sched.Queued(),
		Cooking:      b.sched.Busy(),
		Session:      b.channel.State().String(),
		Halted:       b.sched.Halted(),
		Lost:         b.lost,
		Reconnecting: b.reconnect != nil,
	}
	b.mu.Unlock()

	for _, inst := range b.reg.List() {
		if inst.LastFailure != nil {
			s.Failed++
		}
		if inst.Restored {
			s.Restored++
		}
	}
	return s
}
