// Package classify is the boundary to the external job-title rule engine.
// The core treats classification as opaque and mandatory: any failure here
// fails the whole ingestion attempt.
package classify

import "context"

// Verdict is the rule engine's answer for one title.
type Verdict struct {
	IsSenior bool
	Level    string
}

// Classifier is the synchronous classification boundary.
type Classifier interface {
	Classify(ctx context.Context, title string) (Verdict, error)
	// RulesVersion identifies the rule set, stamped onto detection records.
	RulesVersion() string
}
