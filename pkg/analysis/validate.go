package analysis

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// MaxSessions is the default upper bound on sessions per request (§3).
const MaxSessions = 1000

// MaxPayloadBytes bounds AttackSession.Payload length (§3).
const MaxPayloadBytes = 10_000

// MaxBulkBatches bounds BulkSubmit (§4.1).
const MaxBulkBatches = 100

// ValidateSession checks a single AttackSession's structural constraints.
func ValidateSession(s AttackSession, now time.Time) error {
	if net.ParseIP(s.SourceIP) == nil {
		return newValidationError("source_ip", "must be a valid IPv4 or IPv6 address")
	}
	if s.Timestamp.IsZero() {
		return newValidationError("timestamp", "must be set")
	}
	if s.Timestamp.After(now) {
		return newValidationError("timestamp", "must not be in the future")
	}
	if len(s.Payload) == 0 {
		return newValidationError("payload", "must not be empty")
	}
	if len(s.Payload) > MaxPayloadBytes {
		return newValidationError("payload", fmt.Sprintf("must be at most %d octets", MaxPayloadBytes))
	}
	if s.TargetPort != nil && (*s.TargetPort < 1 || *s.TargetPort > 65535) {
		return newValidationError("target_port", "must be in 1..65535")
	}
	if s.Protocol != nil {
		p := *s.Protocol
		if len(p) < 2 || len(p) > 10 || p != strings.ToUpper(p) {
			return newValidationError("protocol", "must be uppercase, 2..10 chars")
		}
	}
	return nil
}

// ValidateRequest checks an AnalysisRequest's structural and semantic
// constraints (§3, §4.1, boundary behaviors §8). maxSessions overrides the
// default when positive (0 means use MaxSessions).
func ValidateRequest(req AnalysisRequest, maxSessions int, now time.Time) error {
	if maxSessions <= 0 {
		maxSessions = MaxSessions
	}
	n := len(req.Sessions)
	if n < 2 {
		return newValidationError("attack_sessions", "must contain at least 2 sessions")
	}
	if n > maxSessions {
		return newValidationError("attack_sessions", fmt.Sprintf("must contain at most %d sessions", maxSessions))
	}
	if !req.Depth.Valid() {
		return newValidationError("analysis_depth", "must be one of minimal, standard, deep")
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return newValidationError("callback_url", "must be an http(s) URL")
		}
	}
	for i, s := range req.Sessions {
		if err := ValidateSession(s, now); err != nil {
			ve := err.(*ValidationError)
			return newValidationError(fmt.Sprintf("attack_sessions[%d].%s", i, ve.Field), ve.Reason)
		}
	}
	return nil
}

// ValidateBulk checks a BulkSubmit request's batch-count limit and each
// contained request individually.
func ValidateBulk(batches []AnalysisRequest, maxSessions int, now time.Time) error {
	if len(batches) == 0 {
		return newValidationError("session_batches", "must contain at least 1 batch")
	}
	if len(batches) > MaxBulkBatches {
		return newValidationError("session_batches", fmt.Sprintf("must contain at most %d batches", MaxBulkBatches))
	}
	for i, b := range batches {
		if err := ValidateRequest(b, maxSessions, now); err != nil {
			ve := err.(*ValidationError)
			return newValidationError(fmt.Sprintf("session_batches[%d].%s", i, ve.Field), ve.Reason)
		}
	}
	return nil
}
