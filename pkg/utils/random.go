// SPDX-FileCopyrightText: 2025 Store Provisioning Platform contributors
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"crypto/rand"
	"math/big"
)

// PasswordCharset is the alphabet used for generated database credentials. It deliberately
// contains no characters that require quoting in shell or YAML contexts because the values
// are passed to the packaging tool via --set flags.
const PasswordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString uses crypto/rand to generate a random string of the specified length <n>.
// The set of allowed characters is [A-Za-z0-9], thus no special characters are included in the output.
func GenerateRandomString(n int) (string, error) {
	return GenerateRandomStringFromCharset(n, PasswordCharset)
}

// GenerateRandomStringFromCharset generates a cryptographically secure random string of the
// specified length <n>. The set of allowed characters can be specified.
func GenerateRandomStringFromCharset(n int, allowedCharacters string) (string, error) {
	output := make([]byte, n)
	max := new(big.Int).SetInt64(int64(len(allowedCharacters)))

	for i := range output {
		randomCharacter, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		output[i] = allowedCharacters[randomCharacter.Int64()]
	}

	return string(output), nil
}
