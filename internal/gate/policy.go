// Package gate decides whether a group message may stay.
package gate

import "strings"

// Reason is the enforcement cause attached to a warning verdict.
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonNotSubscribed  Reason = "NotSubscribed"
	ReasonNoPublicHandle Reason = "NoPublicHandle"
)

// Verdict is the outcome of Evaluate. A zero Verdict is a pass.
type Verdict struct {
	Reason Reason
}

// Pass reports whether the message may stay untouched.
func (v Verdict) Pass() bool { return v.Reason == ReasonNone }

// Warn returns a warning verdict with the given reason.
func Warn(reason Reason) Verdict { return Verdict{Reason: reason} }

// Evaluate applies the gate rules in order, first match wins:
//  1. sender not subscribed to the gating channel: warn NotSubscribed
//  2. sender without a public username posting the keyword: warn NoPublicHandle
//  3. pass
//
// Keyword matching is a case-insensitive substring test. An empty keyword
// never matches.
func Evaluate(subscribed, hasPublicHandle bool, text, keyword string) Verdict {
	if !subscribed {
		return Warn(ReasonNotSubscribed)
	}
	if !hasPublicHandle && containsFold(text, keyword) {
		return Warn(ReasonNoPublicHandle)
	}
	return Verdict{}
}

func containsFold(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(keyword))
}
