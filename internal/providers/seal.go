package providers

import (
	"encoding/json"
	"fmt"
)

// Cipher is the authenticated-encryption capability used to seal secrets.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SealConfig returns a copy of cfg with every sensitive field encrypted.
// Non-sensitive fields and empty values are left as they are.
func SealConfig(c Cipher, cfg ConnectionConfig, fields []ConfigField) (ConnectionConfig, error) {
	out := cfg.Clone()
	for _, f := range fields {
		if !f.Sensitive {
			continue
		}
		v := cfg.Value(f.Name)
		if v == "" {
			continue
		}
		sealed, err := c.Encrypt(v)
		if err != nil {
			return ConnectionConfig{}, fmt.Errorf("sealing %s: %w", f.Name, err)
		}
		out.Set(f.Name, sealed)
	}
	return out, nil
}

// OpenConfig reverses SealConfig.
func OpenConfig(c Cipher, cfg ConnectionConfig, fields []ConfigField) (ConnectionConfig, error) {
	out := cfg.Clone()
	for _, f := range fields {
		if !f.Sensitive {
			continue
		}
		v := cfg.Value(f.Name)
		if v == "" {
			continue
		}
		plain, err := c.Decrypt(v)
		if err != nil {
			return ConnectionConfig{}, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		out.Set(f.Name, plain)
	}
	return out, nil
}

// MarshalSealed seals cfg and encodes it for storage.
func MarshalSealed(c Cipher, cfg ConnectionConfig, fields []ConfigField) (string, error) {
	sealed, err := SealConfig(c, cfg, fields)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(sealed)
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return string(data), nil
}

// UnmarshalSealed decodes a stored config and opens it.
func UnmarshalSealed(c Cipher, stored string, fields []ConfigField) (ConnectionConfig, error) {
	var cfg ConnectionConfig
	if err := json.Unmarshal([]byte(stored), &cfg); err != nil {
		return ConnectionConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	return OpenConfig(c, cfg, fields)
}

// MaskConfig renders cfg for API responses. Sensitive values keep at most
// their first and last four characters.
func MaskConfig(cfg ConnectionConfig, fields []ConfigField) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v := cfg.Value(f.Name)
		if v == "" {
			continue
		}
		if f.Sensitive {
			v = maskValue(v)
		}
		out[f.Name] = v
	}
	return out
}

func maskValue(v string) string {
	if len(v) > 12 {
		return v[:4] + "****" + v[len(v)-4:]
	}
	return "****"
}
