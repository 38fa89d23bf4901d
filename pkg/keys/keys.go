// Package keys reads the invoking user's public SSH keys and builds the
// idempotent remote one-liners that add or remove them from a cell's
// authorized_keys file.
package keys

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cellsh/cellsh/pkg/config"
	"golang.org/x/crypto/ssh"
)

const (
	sshSubdir = ".ssh"
	dsaFile   = "id_dsa.pub"
	rsaFile   = "id_rsa.pub"
)

// Load reads the default public key files from the user's .ssh directory.
// The DSA key is read first, then the RSA key; both are validated as
// authorized_keys material. At least one key must exist.
func Load() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &config.EnvError{Msg: "cannot locate home directory", Err: err}
	}
	return LoadFrom(filepath.Join(home, sshSubdir))
}

// LoadFrom reads public keys from the given directory.
func LoadFrom(dir string) ([]string, error) {
	var keys []string
	for _, name := range []string{dsaFile, rsaFile} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		key := strings.TrimSpace(string(data))
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			return nil, &config.EnvError{Msg: "invalid public key file: " + path, Err: err}
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil, config.Envf("Neither RSA nor DSA keys have been generated for current user.\n" +
			"Run 'ssh-keygen -t rsa' to generate an ssh key pair.")
	}
	return keys, nil
}

// Fingerprints returns the SHA256 fingerprint of every key, for debug logs.
func Fingerprints(keys []string) []string {
	fps := make([]string, 0, len(keys))
	for _, k := range keys {
		pub, _, _, _, err := ssh.ParseAuthorizedKey([]byte(k))
		if err != nil {
			continue
		}
		fps = append(fps, ssh.FingerprintSHA256(pub))
	}
	return fps
}

// grepPattern joins the keys into the alternation pattern used to test for
// key presence on the remote side.
func grepPattern(keys []string) string {
	pattern := keys[0]
	if len(keys) > 1 {
		pattern += "\\|" + keys[1]
	}
	return pattern
}

// PushCommand returns the quoted remote shell fragment that adds the first
// key to authorized_keys unless any of the keys is already present. Running
// it twice reports "ssh key already exists" rather than duplicating the
// entry.
func PushCommand(keys []string) string {
	pattern := grepPattern(keys)
	return "\" cd; mkdir -pm 700 .ssh; if grep '" + pattern +
		"' .ssh/authorized_keys  > /dev/null 2>&1 ; then echo ssh key already exists ; elif echo '" +
		keys[0] + "' >> .ssh/authorized_keys ; then chmod 644 .ssh/authorized_keys ;" +
		" echo ssh key added ; fi \""
}

// DropCommand returns the quoted remote shell fragment that removes the keys
// from authorized_keys if present.
func DropCommand(keys []string) string {
	pattern := grepPattern(keys)
	return "\" if ! grep '" + pattern +
		"' .ssh/authorized_keys > /dev/null 2>&1 ; then echo ssh key did not exist ; elif sed '\\%" +
		pattern + "%d' .ssh/authorized_keys > .ssh/authorized_keys__ ; then " +
		" mv .ssh/authorized_keys__ .ssh/authorized_keys; echo ssh key dropped ; fi \""
}
