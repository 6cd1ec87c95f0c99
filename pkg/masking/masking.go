// Package masking redacts credential material that attackers submit as part
// of a session payload (harvested passwords, API keys, private key blocks)
// before it is persisted or logged.
package masking

import "regexp"

// compiledPattern holds a pre-compiled regex pattern with its replacement.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// builtinPatterns are the fixed set of credential-shaped substrings masked in
// every session payload. Unlike the teacher's masking service, there is no
// per-server config to resolve patterns against here: a honeypot payload has
// no notion of an MCP server, so the set is simply always-on.
var builtinPatterns = []compiledPattern{
	{
		name:        "api_key",
		regex:       regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
		replacement: `"api_key": "[MASKED_API_KEY]"`,
	},
	{
		name:        "password",
		regex:       regexp.MustCompile(`(?i)(?:password|pwd|pass)["']?\s*[:=]\s*["']?([^"'\s\n]{3,})["']?`),
		replacement: `"password": "[MASKED_PASSWORD]"`,
	},
	{
		name:        "private_key_block",
		regex:       regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`),
		replacement: `[MASKED_PRIVATE_KEY]`,
	},
	{
		name:        "bearer_token",
		regex:       regexp.MustCompile(`(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`),
		replacement: `"token": "[MASKED_TOKEN]"`,
	},
	{
		name:        "ssh_key",
		regex:       regexp.MustCompile(`ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`),
		replacement: `[MASKED_SSH_KEY]`,
	},
	{
		name:        "aws_access_key_id",
		regex:       regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		replacement: `[MASKED_AWS_KEY]`,
	},
}

// MaskPayload applies the built-in pattern sweep to a session's raw payload.
// Masking is fail-open by construction: every pattern is compiled once at
// package init, so there is no runtime error path to fall back from.
func MaskPayload(data string) string {
	masked := data
	for _, p := range builtinPatterns {
		masked = p.regex.ReplaceAllString(masked, p.replacement)
	}
	return masked
}
