package reporter

import (
	"fmt"
	gplugin "plugin"
)

// PluginReporter loads an externally-compiled Go plugin (built with
// `go build -buildmode=plugin`) exposing a Reporter and forwards every
// call to it. The reporter is the engine's only pluggable surface.
type PluginReporter struct {
	name    string
	version string
	inner   Reporter
}

// LoadPluginReporter opens the shared object at path and looks up its
// Name/Version/NewReporter symbols.
func LoadPluginReporter(path string) (*PluginReporter, error) {
	p, err := gplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reporter plugin %s: %w", path, err)
	}

	nameSym, err := p.Lookup("Name")
	if err != nil {
		return nil, fmt.Errorf("reporter plugin %s missing Name: %w", path, err)
	}
	nameFn, ok := nameSym.(func() string)
	if !ok {
		return nil, fmt.Errorf("reporter plugin %s: Name has wrong signature", path)
	}

	versionSym, err := p.Lookup("Version")
	if err != nil {
		return nil, fmt.Errorf("reporter plugin %s missing Version: %w", path, err)
	}
	versionFn, ok := versionSym.(func() string)
	if !ok {
		return nil, fmt.Errorf("reporter plugin %s: Version has wrong signature", path)
	}

	newSym, err := p.Lookup("NewReporter")
	if err != nil {
		return nil, fmt.Errorf("reporter plugin %s missing NewReporter: %w", path, err)
	}
	// The exported symbol must be exactly `func NewReporter() reporter.Reporter`;
	// plugin symbols assert against the unnamed func type, not a local alias.
	newFn, ok := newSym.(func() Reporter)
	if !ok {
		return nil, fmt.Errorf("reporter plugin %s: NewReporter has wrong signature", path)
	}

	return &PluginReporter{
		name:    nameFn(),
		version: versionFn(),
		inner:   newFn(),
	}, nil
}

func (p *PluginReporter) Name() string    { return p.name }
func (p *PluginReporter) Version() string { return p.version }

func (p *PluginReporter) Init(suiteNames []string, runnerCount int) { p.inner.Init(suiteNames, runnerCount) }
func (p *PluginReporter) Log(e LogEvent)                            { p.inner.Log(e) }
func (p *PluginReporter) Status(e StatusEvent)                       { p.inner.Status(e) }
func (p *PluginReporter) Action(e ActionEvent)                       { p.inner.Action(e) }
func (p *PluginReporter) SuiteError(e SuiteErrorEvent)               { p.inner.SuiteError(e) }
func (p *PluginReporter) Finish()                                    { p.inner.Finish() }
