package middleware

import (
	"strconv"

	"marketplace/internal/common"
	"marketplace/internal/services"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const tokenContextKey = "user"

// JWTMiddleware validates the HS256 bearer token and resolves its subject into a Principal.
func JWTMiddleware(secret string, users services.UserService) echo.MiddlewareFunc {
	validate := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: echojwt.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(jwt.RegisteredClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.Unauthorized("invalid or missing token")
		},
	})
	resolve := PrincipalResolver(users)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return validate(resolve(next))
	}
}

// PrincipalResolver loads the user named by the token's sub claim and stores the Principal
// in the request context.
func PrincipalResolver(users services.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(tokenContextKey).(*jwt.Token)
			if !ok {
				return common.Unauthorized("missing token")
			}
			claims, ok := token.Claims.(*jwt.RegisteredClaims)
			if !ok {
				return common.Unauthorized("invalid claims")
			}
			userID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || userID <= 0 {
				return common.Unauthorized("invalid subject")
			}

			ctx := c.Request().Context()
			principal, err := users.Principal(ctx, userID)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(common.WithPrincipal(ctx, principal)))
			return next(c)
		}
	}
}
