package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost 是 bcrypt 的计算成本，测试中可以调低。
var PasswordCost = bcrypt.DefaultCost

// HashPassword 使用 bcrypt 对密码进行哈希处理。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// CheckPasswordHash 验证提供的密码是否与其 bcrypt 哈希值匹配。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
