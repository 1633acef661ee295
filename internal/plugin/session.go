package plugin

// Session carries per-run state between the host and its plugins. It replaces
// process-wide flags: the host owns one Session per run and resets it at the
// start of every configure pass.
type Session struct {
	active    map[string]bool
	testFlags []string
	testEnv   []string
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{active: make(map[string]bool)}
}

// Reset clears activation markers and test instrumentation left by a
// previous pass.
func (s *Session) Reset() {
	s.active = make(map[string]bool)
	s.testFlags = nil
	s.testEnv = nil
}

// Activate marks the plugin called name as the active one for this session.
func (s *Session) Activate(name string) {
	if s.active == nil {
		s.active = make(map[string]bool)
	}
	s.active[name] = true
}

// Deactivate clears the marker for name. It is a no-op when none is set.
func (s *Session) Deactivate(name string) {
	delete(s.active, name)
}

// Active reports whether name was activated during the current pass.
func (s *Session) Active(name string) bool {
	return s.active[name]
}

// AddTestFlags appends flags passed to the test command.
func (s *Session) AddTestFlags(flags ...string) {
	s.testFlags = append(s.testFlags, flags...)
}

// TestFlags returns a copy of the extra test-command flags.
func (s *Session) TestFlags() []string {
	out := make([]string, len(s.testFlags))
	copy(out, s.testFlags)
	return out
}

// AddTestEnv appends KEY=VALUE pairs set for the test command.
func (s *Session) AddTestEnv(pairs ...string) {
	s.testEnv = append(s.testEnv, pairs...)
}

// TestEnv returns a copy of the extra test-command environment.
func (s *Session) TestEnv() []string {
	out := make([]string, len(s.testEnv))
	copy(out, s.testEnv)
	return out
}
