package policy

import "strings"

const (
	defaultMinLength    = 12
	defaultMinDiversity = 3
)

// injectionPatterns are byte sequences that would be dangerous if a
// passphrase were ever interpolated into a shell command, even though
// the core itself never does so; the guard exists because downstream
// tooling (the CLI, Age invocation) might.
var injectionPatterns = []string{"$(", "`", ";", "&", "|", "\n", "\r", "\x00"}

// defaultBannedPassphrases is a small seed list of common long passwords
// that still clear the length/diversity bar; real deployments should
// supply a larger set via metadata/policy.toml.
var defaultBannedPassphrases = map[string]struct{}{
	"password1234":   {},
	"qwertyuiop123!": {},
	"letmein1234567": {},
	"changeme123456": {},
	"correcthorse1!": {},
}

// PassphraseStrength enforces minimum length, character-class diversity,
// a banned-passphrase set, and a shell-injection byte guard.
type PassphraseStrength struct {
	MinLength    int
	MinDiversity int
	Banned       map[string]struct{}
}

// NewPassphraseStrength returns the spec's documented defaults.
func NewPassphraseStrength() *PassphraseStrength {
	return &PassphraseStrength{
		MinLength:    defaultMinLength,
		MinDiversity: defaultMinDiversity,
		Banned:       defaultBannedPassphrases,
	}
}

func (p *PassphraseStrength) Name() string { return "passphrase-strength" }

func (p *PassphraseStrength) ValidatePassphrase(passphrase string, role Role) error {
	if !role.IsIgnitionTier() {
		if passphrase != "" {
			return newError(p.Name(), InvalidDraft, "passphrase supplied for a non-ignition-tier role")
		}
		return nil
	}

	for _, pattern := range injectionPatterns {
		if strings.Contains(passphrase, pattern) {
			return newError(p.Name(), InjectionBlocked, "passphrase contains a shell-injection byte pattern")
		}
	}

	if len(passphrase) < p.MinLength {
		return newError(p.Name(), PassphraseWeak, "length<12")
	}

	if diversity(passphrase) < p.MinDiversity {
		return newError(p.Name(), PassphraseWeak, "diversity<3")
	}

	if _, banned := p.Banned[strings.ToLower(passphrase)]; banned {
		return newError(p.Name(), PassphraseWeak, "passphrase is in the banned-common-passwords set")
	}

	return nil
}

func diversity(s string) int {
	var hasUpper, hasLower, hasDigit, hasOther bool
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasOther = true
		}
	}
	count := 0
	for _, has := range []bool{hasUpper, hasLower, hasDigit, hasOther} {
		if has {
			count++
		}
	}
	return count
}
