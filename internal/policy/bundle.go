package policy

// Bundle composes zero or more policies, applying each hook in
// registration order. A policy need only implement the interfaces it
// cares about (KeyDefaulter, KeyValidator, PassphraseValidator); Bundle
// type-asserts for each hook as it walks the list.
type Bundle struct {
	policies []any
}

// NewBundle returns a Bundle applying policies in the given order.
func NewBundle(policies ...any) *Bundle {
	return &Bundle{policies: policies}
}

// ApplyKeyDefaults runs every registered KeyDefaulter in order. Built-in
// defaulters only fill fields that are still zero-valued, so first
// registration wins regardless of call order within a single hook.
func (b *Bundle) ApplyKeyDefaults(draft *DraftKey) error {
	for _, p := range b.policies {
		if d, ok := p.(KeyDefaulter); ok {
			if err := d.ApplyKeyDefaults(draft); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateKey runs every registered KeyValidator, halting at the first
// rejection.
func (b *Bundle) ValidateKey(draft *DraftKey) error {
	for _, p := range b.policies {
		if v, ok := p.(KeyValidator); ok {
			if err := v.ValidateKey(draft); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidatePassphrase runs every registered PassphraseValidator, halting
// at the first rejection.
func (b *Bundle) ValidatePassphrase(passphrase string, role Role) error {
	for _, p := range b.policies {
		if v, ok := p.(PassphraseValidator); ok {
			if err := v.ValidatePassphrase(passphrase, role); err != nil {
				return err
			}
		}
	}
	return nil
}
