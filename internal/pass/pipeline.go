package pass

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"gneiss/internal/errors"
	"gneiss/internal/inject"
	"gneiss/internal/ir"
	"gneiss/internal/setup"
)

var log = commonlog.GetLogger("gneiss.pass")

// State is the position of a run in the driver's lifecycle
type State int

const (
	Start State = iota
	SetupEnsured
	FunctionsInstrumented
	Verified
	Done
	FatalAbort
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case SetupEnsured:
		return "setup-ensured"
	case FunctionsInstrumented:
		return "functions-instrumented"
	case Verified:
		return "verified"
	case Done:
		return "done"
	case FatalAbort:
		return "fatal-abort"
	}
	return "unknown"
}

// FunctionReport holds the site counts of one function
type FunctionReport struct {
	Pass     string
	Function string
	Stats    inject.Stats
}

// Report describes one pipeline run
type Report struct {
	State     State
	Functions []FunctionReport
	Total     inject.Stats
	// Skipped lists passes whose marker was already present.
	Skipped []string
}

func (r *Report) record(pass, fn string, stats inject.Stats) {
	r.Functions = append(r.Functions, FunctionReport{Pass: pass, Function: fn, Stats: stats})
	r.Total.Add(stats)
}

// Stats returns the counts recorded for fn, summed over all passes.
func (r *Report) Stats(fn string) inject.Stats {
	var total inject.Stats
	for _, f := range r.Functions {
		if f.Function == fn {
			total.Add(f.Stats)
		}
	}
	return total
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "state: %s\n", r.State)
	for _, f := range r.Functions {
		if f.Stats.Total() == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %s @%s: %s\n", f.Pass, f.Function, f.Stats)
	}
	for _, name := range r.Skipped {
		fmt.Fprintf(&sb, "  %s: already applied\n", name)
	}
	fmt.Fprintf(&sb, "total: %d trace call(s)\n", r.Total.Total())
	return sb.String()
}

// Pipeline manages the sequence of passes applied to a module
type Pipeline struct {
	passes []Pass
}

// NewPipeline resolves pass names into a pipeline. Repeated names collapse
// into one; the two profiles exclude each other.
func NewPipeline(names ...string) (*Pipeline, error) {
	p := &Pipeline{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		pass, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		if err := p.AddPass(pass); err != nil {
			return nil, err
		}
	}
	if len(p.passes) == 0 {
		return nil, errors.NewPassError(errors.StageConfig, errors.ErrorEmptyPipeline, "no pass selected").
			WithNote("available passes: " + strings.Join(Names(), ", "))
	}
	return p, nil
}

// AddPass appends a pass. Adding a pass twice is a no-op; adding a second
// profile is a configuration error.
func (p *Pipeline) AddPass(pass Pass) error {
	if len(p.passes) > 0 {
		existing := p.passes[0]
		if existing.Name() == pass.Name() {
			return nil
		}
		return errors.ConflictingPasses(existing.Name(), pass.Name())
	}
	p.passes = append(p.passes, pass)
	return nil
}

// Passes returns the passes in execution order.
func (p *Pipeline) Passes() []Pass {
	return p.passes
}

// Run ensures the log sink, applies every pass to every function definition
// and verifies the result. The module is left in whatever state the failing
// step produced; there is no rollback.
func (p *Pipeline) Run(m *ir.Module) (*Report, error) {
	report := &Report{State: Start}

	sink, err := setup.Ensure(m)
	if err != nil {
		report.State = FatalAbort
		return report, err
	}
	report.State = SetupEnsured

	for _, pass := range p.passes {
		if m.HasNamedMetadata(pass.Marker()) {
			log.Infof("%s: module %s is already instrumented, skipping", pass.Name(), m.SourceFilename)
			report.Skipped = append(report.Skipped, pass.Name())
			continue
		}
		log.Infof("%s: %s", pass.Name(), pass.Description())
		for _, fn := range m.Functions {
			if fn.Declaration {
				continue
			}
			stats, err := pass.Apply(sink, fn)
			if err != nil {
				report.State = FatalAbort
				return report, err
			}
			report.record(pass.Name(), fn.Name, stats)
		}
		m.AddNamedMetadata(pass.Marker(), "!{}")
	}
	report.State = FunctionsInstrumented

	if violations := ir.VerifyModule(m); len(violations) > 0 {
		texts := make([]string, len(violations))
		for i, v := range violations {
			texts[i] = v.Error()
			log.Errorf("%s", texts[i])
		}
		report.State = FatalAbort
		return report, errors.VerificationFailed(texts, ir.Print(m))
	}
	report.State = Verified

	log.Infof("%s: inserted %d trace call(s)", m.SourceFilename, report.Total.Total())
	report.State = Done
	return report, nil
}
