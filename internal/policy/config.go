package policy

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the decoded shape of metadata/policy.toml. Absence of the
// file means built-in defaults apply throughout.
type Config struct {
	Expiration struct {
		IgnitionDays    int     `toml:"ignition_days"`
		DistroDays      int     `toml:"distro_days"`
		WarningFraction float64 `toml:"warning_fraction"`
	} `toml:"expiration"`

	Passphrase struct {
		MinLength    int      `toml:"min_length"`
		MinDiversity int      `toml:"min_diversity"`
		BannedSet    []string `toml:"banned_set"`
		Argon2       struct {
			MemoryKiB   uint32 `toml:"memory_kib"`
			Time        uint32 `toml:"time"`
			Parallelism uint8  `toml:"parallelism"`
		} `toml:"argon2"`
	} `toml:"passphrase"`
}

// LoadConfig reads and decodes path. A missing file is not an error: the
// caller receives a Config populated with DefaultConfig's values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns the built-in defaults documented in SPEC_FULL.md;
// these are configuration, not core constants, and metadata/policy.toml
// may override any of them.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Expiration.IgnitionDays = 30
	cfg.Expiration.DistroDays = 7
	cfg.Expiration.WarningFraction = 0.20
	cfg.Passphrase.MinLength = defaultMinLength
	cfg.Passphrase.MinDiversity = defaultMinDiversity
	cfg.Passphrase.Argon2.MemoryKiB = 64 * 1024
	cfg.Passphrase.Argon2.Time = 3
	cfg.Passphrase.Argon2.Parallelism = 1
	return cfg
}

// Bundle builds the default Bundle (ExpirationDefaults + PassphraseStrength)
// configured from cfg.
func (cfg *Config) Bundle() *Bundle {
	exp := NewExpirationDefaults()
	exp.IgnitionLifetime = time.Duration(cfg.Expiration.IgnitionDays) * 24 * time.Hour
	exp.DistroLifetime = time.Duration(cfg.Expiration.DistroDays) * 24 * time.Hour
	exp.WarningFraction = cfg.Expiration.WarningFraction

	strength := NewPassphraseStrength()
	strength.MinLength = cfg.Passphrase.MinLength
	strength.MinDiversity = cfg.Passphrase.MinDiversity
	for _, banned := range cfg.Passphrase.BannedSet {
		strength.Banned[banned] = struct{}{}
	}

	return NewBundle(exp, strength)
}
