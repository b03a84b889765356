package oauthflow

import (
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const tokenFile = "token.json"

// SaveToken persists token under dir/token.json using the same
// temp-file-plus-rename discipline as the daemon metadata and schema cache,
// so a crash mid-write never leaves a corrupt cache file (spec.md §6.2
// "Shared resources" point 3: writes are serialized by filesystem atomic
// rename discipline).
func SaveToken(dir string, token *oauth2.Token) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, tokenFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadToken reads a previously cached token. A missing file is not an error;
// it reports a nil token so the caller starts a fresh authorization flow.
func LoadToken(dir string) (*oauth2.Token, error) {
	data, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// RemoveToken deletes the cached token, e.g. after a refresh failure that
// indicates revocation.
func RemoveToken(dir string) error {
	err := os.Remove(filepath.Join(dir, tokenFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
