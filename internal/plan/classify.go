package plan

// PhaseLookup resolves the static phase declared by a tool.
type PhaseLookup interface {
	PhaseOf(tool string) (Phase, bool)
}

// Classify splits steps into the group that can run now and the group that
// needs the host to rebuild first. Unknown tools are placed in the pre-reset
// group so that they are reported without waiting for a reload.
func Classify(p Plan, lookup PhaseLookup) (pre, post []Step) {
	for _, s := range p.Steps {
		phase, ok := lookup.PhaseOf(s.Tool)
		if ok && phase == PhasePostReset {
			post = append(post, s)
			continue
		}
		pre = append(pre, s)
	}
	return pre, post
}
