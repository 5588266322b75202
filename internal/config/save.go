package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func SaveAtomic(path string, cfg Config) error {
	normalized, vr := NormalizeAndValidate(cfg)
	// a fresh default has no secret yet; only structural errors block the write
	if normalized.Auth.JWTSecret == "" {
		vr = structuralOnly(vr)
	}
	if err := vr.Err(); err != nil {
		return err
	}

	b, err := yaml.Marshal(&normalized)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	bak := path + ".bak"

	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}

	_ = os.Remove(bak)
	_ = os.Rename(path, bak)

	return os.Rename(tmp, path)
}

func structuralOnly(v Validation) Validation {
	var out Validation
	out.Warnings = v.Warnings
	for _, e := range v.Errors {
		if e == "auth.jwt_secret is required (or set JWT_SECRET)" {
			continue
		}
		out.Errors = append(out.Errors, e)
	}
	return out
}
