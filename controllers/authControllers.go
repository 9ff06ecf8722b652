package controllers

import (
	"database/sql"
	"encoding/json"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/studify-app/studify_backend/models"
	"github.com/studify-app/studify_backend/util"
	"golang.org/x/crypto/bcrypt"
	"io"
	"strconv"
	"time"
)

func Index(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true, "data": fiber.Map{"service": "studify-backend"}})
}

func setTokenCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  time.Now().Add(72 * time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
}

func CreateUser(c *fiber.Ctx) error {
	type CreateUserInput struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	validate := validator.New()

	var input CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Validation failed: " + err.Error()})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to hash password"})
	}

	var user models.User
	err = util.DB.QueryRow(`
		INSERT INTO users (name, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, role, created_at
	`, input.Name, input.Email, string(hash)).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Could not create user: " + err.Error()})
	}

	token, err := util.JwtGenerate(user, strconv.Itoa(user.ID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to generate token"})
	}
	setTokenCookie(c, token)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
			"token": token,
		},
	})
}

func LoginUser(c *fiber.Ctx) error {
	type LoginInput struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var input LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid input"})
	}
	if input.Email == "" || input.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "email and password are required"})
	}

	var user models.User
	err := util.DB.QueryRow(`
		SELECT id, name, email, password, role, password_changed_at
		FROM users
		WHERE email = $1 AND deleted = false
	`, input.Email).Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Role, &user.PasswordChangedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Invalid credentials"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Database error"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Invalid credentials"})
	}

	token, err := util.JwtGenerate(user, strconv.Itoa(user.ID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to generate token"})
	}
	setTokenCookie(c, token)

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"token": token}})
}

func GetUserDetails(c *fiber.Ctx) error {
	user := c.Locals("user").(models.User)
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":         user.ID,
			"name":       user.Name,
			"email":      user.Email,
			"role":       user.Role,
			"verified":   user.Verified,
			"profilePic": user.ProfilePic,
			"about":      user.About,
			"createdAt":  user.CreatedAt,
		},
	})
}

// GoogleLogin starts the OAuth flow. The state nonce is parked in a short
// lived cookie and checked on the way back.
func GoogleLogin(c *fiber.Ctx) error {
	state := uuid.NewString()
	c.Cookie(&fiber.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	url := util.GetGoogleConfig().AuthCodeURL(state)
	return c.Redirect(url, fiber.StatusTemporaryRedirect)
}

func GoogleCallback(c *fiber.Ctx) error {
	if c.Query("state") == "" || c.Query("state") != c.Cookies("oauth_state") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Invalid OAuth state"})
	}

	code := c.Query("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "error": "Missing code"})
	}

	conf := util.GetGoogleConfig()
	tok, err := conf.Exchange(c.Context(), code)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "error": "Code exchange failed: " + err.Error()})
	}

	client := conf.Client(c.Context(), tok)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch user info"})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to read user info"})
	}

	var info struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil || info.Email == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Invalid user info payload"})
	}

	var user models.User
	err = util.DB.QueryRow(`
		SELECT id, name, email, role, password_changed_at
		FROM users
		WHERE email = $1 AND deleted = false
	`, info.Email).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.PasswordChangedAt)
	if err == sql.ErrNoRows {
		err = util.DB.QueryRow(`
			INSERT INTO users (name, email, verified, profile_pic)
			VALUES ($1, $2, true, $3)
			RETURNING id, name, email, role, password_changed_at
		`, info.Name, info.Email, info.Picture).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.PasswordChangedAt)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to resolve user: " + err.Error()})
	}

	token, err := util.JwtGenerate(user, strconv.Itoa(user.ID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to generate token"})
	}
	setTokenCookie(c, token)

	return c.Redirect("/", fiber.StatusTemporaryRedirect)
}
