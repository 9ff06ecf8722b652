package util

import (
	"errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/studify-app/studify_backend/models"
	"time"
)

func JwtGenerate(user models.User, id string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)
	claims["email"] = user.Email
	claims["role"] = user.Role
	claims["id"] = id
	claims["iat"] = time.Now().Unix()
	claims["exp"] = time.Now().Add(time.Hour * 72).Unix()
	t, err := token.SignedString([]byte(JWTSecret))
	return t, err
}

// ParseJWT verifies the signature and returns the claims.
func ParseJWT(tokenString string) (jwt.MapClaims, error) {
	if len(tokenString) > 6 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// IsTokenValid rejects tokens issued before the user's last password change.
func IsTokenValid(claims jwt.MapClaims, user models.User) error {
	issuedAtUnix, ok := claims["iat"].(float64)
	if !ok {
		return errors.New("invalid token: no issued at timestamp")
	}

	issuedAt := time.Unix(int64(issuedAtUnix), 0)
	if user.PasswordChangedAt.Unix() > issuedAt.Unix() {
		return errors.New("token invalid: password was changed after the token was issued")
	}
	return nil
}
