package notify

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateCode 生成 n 位数字验证码，使用 crypto/rand，允许前导零。
func GenerateCode(n int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < n; i++ {
		max.Mul(max, big.NewInt(10))
	}
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
