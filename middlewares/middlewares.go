package middlewares

import (
	"database/sql"
	"github.com/gofiber/fiber/v2"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"strconv"
)

func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   "Not Found",
	})
}

// Protected resolves the request's user from the JWT cookie and stores the
// row in c.Locals("user"). Handlers never fall back to a placeholder
// identity: no user means 401, full stop.
func Protected() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("token")
		if token == "" {
			token = c.Get("Authorization")
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "No token provided",
			})
		}
		claims, err := util.ParseJWT(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token " + err.Error(),
			})
		}

		idClaim, ok := claims["id"].(string)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token payload",
			})
		}
		userID, err := strconv.Atoi(idClaim)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token payload",
			})
		}

		var user models.User
		query := `SELECT id, name, email, password, role, password_changed_at, verified, profile_pic, about, deleted, created_at, updated_at
		          FROM users WHERE id = $1 AND deleted = false`

		row := util.DB.QueryRow(query, userID)
		err = row.Scan(
			&user.ID, &user.Name, &user.Email, &user.Password, &user.Role,
			&user.PasswordChangedAt, &user.Verified, &user.ProfilePic,
			&user.About, &user.Deleted, &user.CreatedAt, &user.UpdatedAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"success": false,
					"error":   "User not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Database error: " + err.Error(),
			})
		}

		if err := util.IsTokenValid(claims, user); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}

		c.Locals("user", user)
		return c.Next()
	}
}
