package object

// WithRead runs fn while holding o's read lock.
func WithRead(o Object, fn func()) error {
	b := baseOf(o)
	if b == nil {
		return ErrInvalid
	}
	b.RLock()
	defer b.RUnlock()
	fn()
	return nil
}

// WithWrite runs fn while holding o's write lock.
func WithWrite(o Object, fn func()) error {
	b := baseOf(o)
	if b == nil {
		return ErrInvalid
	}
	b.Lock()
	defer b.Unlock()
	fn()
	return nil
}

// LockPair acquires the write lock of w and the read lock of r in creation
// order, so two goroutines combining the same objects in opposite argument
// order cannot deadlock. If w and r are the same object only the write
// lock is taken. The returned function releases both.
func LockPair(w, r Object) (unlock func(), err error) {
	bw, br := baseOf(w), baseOf(r)
	if bw == nil || br == nil {
		return nil, ErrInvalid
	}
	if bw == br {
		bw.Lock()
		return bw.Unlock, nil
	}
	if bw.serial < br.serial {
		bw.Lock()
		br.RLock()
	} else {
		br.RLock()
		bw.Lock()
	}
	return func() {
		br.RUnlock()
		bw.Unlock()
	}, nil
}

// RLockPair read-locks a and b in creation order.
func RLockPair(a, b Object) (unlock func(), err error) {
	ba, bb := baseOf(a), baseOf(b)
	if ba == nil || bb == nil {
		return nil, ErrInvalid
	}
	if ba == bb {
		ba.RLock()
		return ba.RUnlock, nil
	}
	first, second := ba, bb
	if bb.serial < ba.serial {
		first, second = bb, ba
	}
	first.RLock()
	second.RLock()
	return func() {
		second.RUnlock()
		first.RUnlock()
	}, nil
}
