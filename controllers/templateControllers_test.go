package controllers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestPageParamsClampsBadInput(t *testing.T) {
	app := fiber.New()
	app.Get("/p", func(c *fiber.Ctx) error {
		page, limit, offset := pageParams(c, 10)
		return c.JSON(fiber.Map{"page": page, "limit": limit, "offset": offset})
	})

	cases := []struct {
		name                string
		query               string
		page, limit, offset int
	}{
		{"defaults", "", 1, 10, 0},
		{"normal", "?page=3&limit=20", 3, 20, 40},
		{"zero limit", "?limit=0", 1, 10, 0},
		{"negative limit", "?limit=-5", 1, 10, 0},
		{"garbage limit", "?limit=abc", 1, 10, 0},
		{"zero page", "?page=0&limit=20", 1, 20, 0},
		{"garbage page", "?page=x&limit=20", 1, 20, 0},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/p"+tc.query, nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("%s: read body: %v", tc.name, err)
		}
		var got struct {
			Page   int `json:"page"`
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if got.Page != tc.page || got.Limit != tc.limit || got.Offset != tc.offset {
			t.Errorf("%s: got %d/%d/%d, want %d/%d/%d",
				tc.name, got.Page, got.Limit, got.Offset, tc.page, tc.limit, tc.offset)
		}
	}
}
