package state

// ApplyUnlocks re-derives the lock status of the gated processes from the
// two completion flags. Pure and idempotent: it only ever upgrades
// locked → unlocked, never the reverse. Returns the names of processes that
// transitioned on this call.
func ApplyUnlocks(p *Project) []string {
	if !(p.ResearchDefinitionComplete && p.ExperimentDesignComplete) {
		return nil
	}
	var unlocked []string
	if p.Processes.LiteratureSearch.Status != StatusUnlocked {
		p.Processes.LiteratureSearch.Status = StatusUnlocked
		unlocked = append(unlocked, ProcessLiteratureSearch)
	}
	if p.Processes.PaperWriting.Status != StatusUnlocked {
		p.Processes.PaperWriting.Status = StatusUnlocked
		unlocked = append(unlocked, ProcessPaperWriting)
	}
	return unlocked
}

// CompleteResearchDefinition marks the research definition flag (one-way).
// Returns whether the flag was already set, and which processes unlocked.
func (p *Project) CompleteResearchDefinition() (already bool, unlocked []string) {
	if p.ResearchDefinitionComplete {
		return true, nil
	}
	p.ResearchDefinitionComplete = true
	unlocked = ApplyUnlocks(p)
	p.Touch()
	return false, unlocked
}

// CompleteExperimentDesign marks the experiment design flag (one-way).
func (p *Project) CompleteExperimentDesign() (already bool, unlocked []string) {
	if p.ExperimentDesignComplete {
		return true, nil
	}
	p.ExperimentDesignComplete = true
	unlocked = ApplyUnlocks(p)
	p.Touch()
	return false, unlocked
}

// SwitchPhase changes the current Research & Experiment phase. Returns false
// if the target equals the current phase (no-op). Artifact handoff between
// the live agent and the phase slots is the caller's responsibility; this
// only moves the pointer.
func (p *Project) SwitchPhase(target Phase) bool {
	if p.Processes.ResearchExperiment.CurrentPhase == target {
		return false
	}
	p.Processes.ResearchExperiment.CurrentPhase = target
	p.Touch()
	return true
}

// LiteratureSearchAccessible reports whether the gated search process may be
// used. Derived from the flags, not the stored status, so a stale record
// cannot grant access.
func (p *Project) LiteratureSearchAccessible() bool {
	return p.ResearchDefinitionComplete && p.ExperimentDesignComplete
}

// PaperWritingAccessible reports whether the drafting process may be used.
func (p *Project) PaperWritingAccessible() bool {
	return p.ResearchDefinitionComplete && p.ExperimentDesignComplete
}
