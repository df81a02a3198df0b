package booking

import "golang.org/x/crypto/bcrypt"

// Edit secrets gate deletion of a booking. Only the bcrypt hash is stored;
// the plaintext is never persisted or echoed back. Rows created without a
// secret stay deletable with no credential at all.

func hashSecret(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func verifySecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
