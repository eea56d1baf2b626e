package endpoint

// Append adds rec to the end of an endpoint's history and returns the record
// as stored. A timestamp earlier than the last record's is raised to it so
// the history never goes backwards, e.g. after a wall clock adjustment.
func (r *Registry) Append(id string, rec StatusRecord) (StatusRecord, error) {
	l, err := r.lane(id)
	if err != nil {
		return StatusRecord{}, err
	}
	if rec.Description == "" {
		rec.Description = UnknownStatus
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if n := len(l.ep.History); n > 0 {
		if last := l.ep.History[n-1].Timestamp; rec.Timestamp.Before(last) {
			rec.Timestamp = last
		}
	}
	l.ep.History = append(l.ep.History, rec)
	if r.maxRecords > 0 && len(l.ep.History) > r.maxRecords {
		trimmed := make([]StatusRecord, r.maxRecords)
		copy(trimmed, l.ep.History[len(l.ep.History)-r.maxRecords:])
		l.ep.History = trimmed
	}
	return rec, nil
}

// Records returns a copy of an endpoint's history, oldest first.
func (r *Registry) Records(id string) ([]StatusRecord, error) {
	l, err := r.lane(id)
	if err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]StatusRecord, len(l.ep.History))
	copy(out, l.ep.History)
	return out, nil
}
