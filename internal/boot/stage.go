package boot

// Stage is a state of the start-up sequence.
//
//	Start → EnvSelected → AllocatorConfigured →
//	    ParseFailed → Terminated
//	    ParseSucceeded → DiagnosticsLogged → Handoff → Terminated
//	    Terminated                     (--help, --version)
//
// The help edge enters neither parse stage: nothing was parsed and nothing
// failed.
type Stage int

const (
	StageStart Stage = iota
	StageEnvSelected
	StageAllocatorConfigured
	StageParseFailed
	StageParseSucceeded
	StageDiagnosticsLogged
	StageHandoff
	StageTerminated
)

var stageNames = [...]string{
	StageStart:               "start",
	StageEnvSelected:         "env_selected",
	StageAllocatorConfigured: "allocator_configured",
	StageParseFailed:         "parse_failed",
	StageParseSucceeded:      "parse_succeeded",
	StageDiagnosticsLogged:   "diagnostics_logged",
	StageHandoff:             "handoff",
	StageTerminated:          "terminated",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}
