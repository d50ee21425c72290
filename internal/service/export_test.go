package service

import "time"

func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *CheckInService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

func HashToken(raw string) string {
	return hashToken(raw)
}
