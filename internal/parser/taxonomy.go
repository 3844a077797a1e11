package parser

import (
	"strings"

	"github.com/sentinel-logs/sentinel/pkg/types"
)

// categoryRules maps lowercase keywords to event categories. First match
// wins, so more specific rules come first.
var categoryRules = []struct {
	keywords []string
	category types.EventCategory
}{
	{[]string{"malware", "virus", "trojan", "ransomware", "backdoor"}, types.CategoryMalware},
	{[]string{"intrusion", "exploit", "injection", "brute force", "port scan"}, types.CategoryIntrusion},
	{[]string{"sudo", "privilege", "escalation", "setuid"}, types.CategoryPrivEscalation},
	{[]string{"failed password", "authentication failure", "invalid user", "login failed", "access denied"}, types.CategoryAuthFailure},
	{[]string{"accepted password", "accepted publickey", "session opened", "login succeeded"}, types.CategoryAuthSuccess},
	{[]string{"firewall", "iptables", "ufw block", "dropped packet", "blocked connection"}, types.CategoryFirewall},
	{[]string{"anomaly", "unusual", "unexpected", "suspicious"}, types.CategoryAnomaly},
}

// Classify assigns a message to one of the closed set of event categories.
// Anything unrecognized maps to CategoryOther.
func Classify(message string) types.EventCategory {
	lower := strings.ToLower(message)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return types.CategoryOther
}
