package service

import (
	"crypto/rand"
	"math/big"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeLength   = 6
)

var alphabetSize = big.NewInt(int64(len(codeAlphabet)))

type CodeGenerator interface {
	NewCode() (string, error)
}

// RandomGenerator draws codeLength characters uniformly from codeAlphabet.
type RandomGenerator struct{}

func (RandomGenerator) NewCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[idx.Int64()]
	}
	return string(code), nil
}
