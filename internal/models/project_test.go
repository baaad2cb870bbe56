package models

import "testing"

func classify(languages ...string) ProjectInfo {
	return ProjectInfo{
		Languages:      languages,
		TestFrameworks: []string{"jest"},
	}
}

func TestProjectInfoOnReturnedValues(t *testing.T) {
	// The accessors take value receivers so they work directly on
	// function return values.
	if !classify().Unknown() {
		t.Error("no languages should classify as unknown")
	}
	if classify().PrimaryLanguage() != "unknown" {
		t.Error("unknown project should report unknown language")
	}
	if classify("javascript", "typescript").PrimaryLanguage() != "javascript" {
		t.Error("primary language should be the first detected")
	}
	if !classify("go").HasLanguage("go") || classify("go").HasLanguage("rust") {
		t.Error("HasLanguage mismatch")
	}
	if !classify("javascript").HasTestFramework("jest") || classify("javascript").HasTestFramework("pytest") {
		t.Error("HasTestFramework mismatch")
	}
}
