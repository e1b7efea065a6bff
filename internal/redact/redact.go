package redact

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
)

var (
	bearerRe       = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	accessKeyIDRe  = regexp.MustCompile(`\b(AKIA|ASIA)[0-9A-Z]{16}\b`)
	openAIKeyRe    = regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}`)
	secretFieldRe  = regexp.MustCompile(`(?i)((?:aws_)?secret(?:_access)?_key\s*[:=]\s*)(\S+)`)
	credentialsRe  = regexp.MustCompile(`(?i)(natural_language_credentials\s*[:=]\s*)(\S+)`)
	tokenishKeyRe  = regexp.MustCompile(`(?i)\b(api_key|token|password|secret)\s*[:=]\s*([A-Za-z0-9._\-+/=]{6,})`)
	urlRe          = regexp.MustCompile(`https?://[^\s"'<>]+`)
	repeatedMarker = "[REDACTED][REDACTED]"
)

// String redacts known secret patterns from free-form strings.
func String(s string) string {
	if s == "" {
		return s
	}

	out := s
	out = urlRe.ReplaceAllStringFunc(out, redactURL)
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = secretFieldRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = credentialsRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = accessKeyIDRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = openAIKeyRe.ReplaceAllString(out, "sk-[REDACTED]")
	out = tokenishKeyRe.ReplaceAllStringFunc(out, func(s string) string {
		if strings.Contains(s, "[REDACTED]") {
			return s
		}
		matches := tokenishKeyRe.FindStringSubmatch(s)
		if len(matches) < 3 {
			return s
		}
		return matches[1] + "=[REDACTED]"
	})
	for strings.Contains(out, repeatedMarker) {
		out = strings.ReplaceAll(out, repeatedMarker, "[REDACTED]")
	}
	return out
}

// Any formats the value with %+v and redacts secrets.
func Any(v any) string {
	return String(fmt.Sprintf("%+v", v))
}

// Sprintf formats like fmt.Sprintf and redacts the result.
func Sprintf(format string, args ...interface{}) string {
	return String(fmt.Sprintf(format, args...))
}

// Logf prints a redacted log line.
func Logf(format string, args ...interface{}) {
	log.Print(Sprintf(format, args...))
}

// Fatalf prints a redacted fatal log line.
func Fatalf(format string, args ...interface{}) {
	log.Fatal(Sprintf(format, args...))
}

// redactURL drops userinfo and query strings; scheme, host and path survive
// because they are what an operator needs to debug a transport.
func redactURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[REDACTED_URL]"
	}
	if u.User != nil {
		u.User = url.User("[REDACTED]")
	}
	if u.RawQuery != "" {
		u.RawQuery = "[REDACTED]"
	}
	u.Fragment = ""
	out := u.String()
	out = strings.ReplaceAll(out, "%5BREDACTED%5D", "[REDACTED]")
	return out
}
