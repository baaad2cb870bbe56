package models

// ProjectInfo is the best-effort classification of a cloned workspace.
// The zero value is the "unknown" classification: detection failure is
// never fatal, it only reduces plan specificity.
type ProjectInfo struct {
	Languages      []string `json:"languages" yaml:"languages"`
	Frameworks     []string `json:"frameworks" yaml:"frameworks"`
	TestFrameworks []string `json:"test_frameworks" yaml:"test_frameworks"`
	BuildSystems   []string `json:"build_systems" yaml:"build_systems"`
	FileCount      int      `json:"file_count" yaml:"file_count"`
	HasTests       bool     `json:"has_tests" yaml:"has_tests"`
	HasCI          bool     `json:"has_ci" yaml:"has_ci"`
}

// Unknown returns true when no language could be classified.
func (p ProjectInfo) Unknown() bool {
	return len(p.Languages) == 0
}

// PrimaryLanguage returns the most common detected language, or "unknown".
func (p ProjectInfo) PrimaryLanguage() string {
	if len(p.Languages) == 0 {
		return "unknown"
	}
	return p.Languages[0]
}

// HasLanguage reports whether lang was detected.
func (p ProjectInfo) HasLanguage(lang string) bool {
	for _, l := range p.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// HasTestFramework reports whether fw was detected.
func (p ProjectInfo) HasTestFramework(fw string) bool {
	for _, f := range p.TestFrameworks {
		if f == fw {
			return true
		}
	}
	return false
}
