package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler passes the first num events out of every den and drops
// the rest. A zero ratio disables sampling entirely.
type ratioSampler struct {
	mu   sync.Mutex
	num  int
	den  int
	seen int
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the window.
func (s *ratioSampler) Set(num, den int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if num <= 0 || den <= 0 {
		num, den = 0, 0
	} else if num > den {
		num = den
	}
	s.num = num
	s.den = den
	s.seen = 0
}

// Allow reports whether the next event falls inside the sampled window.
func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.den <= 0 {
		return true
	}
	s.seen++
	if s.seen > s.den {
		s.seen = 1
	}
	return s.seen <= s.num
}

// parseRatioSpec accepts "num/den" or a bare "n" meaning 1/n.
func parseRatioSpec(v string) (int, int) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, 0
	}
	if num, den, ok := strings.Cut(v, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(num))
		d, err2 := strconv.Atoi(strings.TrimSpace(den))
		if err1 == nil && err2 == nil {
			return n, d
		}
		return 0, 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return 1, n
	}
	return 0, 0
}
