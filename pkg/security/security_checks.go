// Package security flags credentials in generated file content before it is
// committed.
package security

import (
	"regexp"
	"sort"
)

type pattern struct {
	concern string
	re      *regexp.Regexp
}

var patterns = []pattern{
	{"API Key Exposure", regexp.MustCompile(`(?i)(api_key|apikey|api-key|access_key|access-key|secret_key|secret-key|auth_token|auth-token|bearer_token|bearer-token|client_secret|client-secret|consumer_secret|consumer-secret|private_key|private-key|api_secret|auth_key)\s*(=|:)\s*['"]?[a-zA-Z0-9_.\-=/+]{16,128}['"]?`)},
	{"Password Exposure", regexp.MustCompile(`(?i)(password|passwd|pwd|passphrase)\s*(=|:)\s*['"][a-zA-Z0-9_.\-=/+!@#$%^&*]{8,64}['"]`)},
	{"Database/Service Creds Exposure", regexp.MustCompile(`(?i)(mongodb|mysql|postgresql|postgres|redis|amqp|sqlserver|ldap):\/\/[^\s'"/:@]+:[^\s'"/@]+@[^\s'"]+`)},
	{"SSH Private Key Exposure", regexp.MustCompile(`(?i)BEGIN (RSA|DSA|EC|OPENSSH) PRIVATE KEY`)},
	{"AWS Access Key ID Exposure", regexp.MustCompile(`\b(AKIA|AROA|AIDA|ASIA)[0-9A-Z]{16}\b`)},
	{"AWS Secret Access Key Exposure", regexp.MustCompile(`(?i)aws_secret_access_key\s*=\s*['"]?[a-zA-Z0-9\/+=]{40}['"]?`)},
	{"Generic Bearer Token Exposure", regexp.MustCompile(`(?i)Bearer\s+[a-zA-Z0-9\-_=\.]{30,}`)},
	{"JWT Token Exposure", regexp.MustCompile(`eyJ[A-Za-z0-9-_=]+\.eyJ[A-Za-z0-9-_=]+\.[A-Za-z0-9-_.+/=]*`)},
	{"GitHub PAT Exposure", regexp.MustCompile(`(ghp_[a-zA-Z0-9]{36}|github_pat_[a-zA-Z0-9_]{80})`)},
	{"GitLab PAT Exposure", regexp.MustCompile(`glpat-[a-zA-Z0-9\-_]{20,}`)},
	{"Stripe API Key Exposure", regexp.MustCompile(`(sk|pk)_(test|live)_[a-zA-Z0-9]{24,}`)},
	{"Slack Token Exposure", regexp.MustCompile(`(xoxb|xapp)-[0-9]{10,15}-[0-9]{10,15}-[a-zA-Z0-9]{10,}`)},
	{"Google API Key Exposure", regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)},
}

// DetectSecurityConcerns returns the sorted concern types found in content and
// the first matching snippet for each.
func DetectSecurityConcerns(content string) ([]string, map[string]string) {
	var concerns []string
	snippets := make(map[string]string)
	for _, p := range patterns {
		if match := p.re.FindString(content); match != "" {
			concerns = append(concerns, p.concern)
			snippets[p.concern] = match
		}
	}
	sort.Strings(concerns)
	return concerns, snippets
}

// IntroducedConcerns returns the concerns present in candidate that original
// did not already contain. Existing credentials are the author's business;
// new ones came from the generator.
func IntroducedConcerns(original, candidate string) []string {
	before, _ := DetectSecurityConcerns(original)
	had := make(map[string]bool, len(before))
	for _, c := range before {
		had[c] = true
	}
	after, _ := DetectSecurityConcerns(candidate)
	var introduced []string
	for _, c := range after {
		if !had[c] {
			introduced = append(introduced, c)
		}
	}
	return introduced
}
