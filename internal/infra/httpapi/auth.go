package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const adminIDKey contextKey = "admin_id"

// Claims are issued by the lodge's auth service. AdminID is the Telegram ID of the
// administrator the token acts for.
type Claims struct {
	AdminID int64 `json:"admin_id"`
	jwt.RegisteredClaims
}

// JWTAuth verifies HS256 bearer tokens and stores the admin ID in the request context.
func JWTAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Authorization token is required")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
				return
			}

			claims, err := verifyToken(parts[1], secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), adminIDKey, claims.AdminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.AdminID == 0 {
		return nil, errors.New("token carries no admin id")
	}
	return claims, nil
}

func adminIDFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(adminIDKey).(int64)
	return id
}
