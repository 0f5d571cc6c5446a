package commands

import (
	"fmt"
	"io"

	mailService "github.com/allisson/mailqueue/internal/mail/service"
)

// RunHashAdminKey prints the ADMIN_API_KEY_HASH value for a key, single-quoted so .env
// loading does not expand the $ separators of the hash. When plainKey is empty a
// random key is generated and printed once; it cannot be recovered from the hash.
func RunHashAdminKey(keyService mailService.AdminKeyService, writer io.Writer, plainKey string) error {
	if plainKey == "" {
		generated, hash, err := keyService.Generate()
		if err != nil {
			return fmt.Errorf("failed to generate admin key: %w", err)
		}
		_, err = fmt.Fprintf(writer,
			"# Store the key securely, it is shown only once\nADMIN_API_KEY='%s'\nADMIN_API_KEY_HASH='%s'\n",
			generated,
			hash,
		)
		return err
	}

	hash, err := keyService.Hash(plainKey)
	if err != nil {
		return fmt.Errorf("failed to hash admin key: %w", err)
	}
	_, err = fmt.Fprintf(writer, "ADMIN_API_KEY_HASH='%s'\n", hash)
	return err
}
